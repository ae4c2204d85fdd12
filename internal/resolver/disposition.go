package resolver

import (
	"mime"
	"net/url"
	"regexp"
	"strings"
)

var dispositionFallback = regexp.MustCompile(`filename\*?=(UTF-8''|")?([^";]+)"?`)

// ParseContentDisposition extracts the filename from a Content-Disposition value.
// Both the quoted form and the RFC 5987 UTF-8'' form are accepted.
func ParseContentDisposition(header string) (string, bool) {
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if fn, ok := params["filename"]; ok && fn != "" {
			return fn, true
		}
		if fn, ok := params["filename*"]; ok && fn != "" {
			if decoded, ok := decodeExtValue(fn); ok {
				return decoded, true
			}
		}
	}
	// malformed headers (unquoted spaces, raw UTF-8) still tend to carry a usable name
	m := dispositionFallback.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[2])
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name, name != ""
}

func decodeExtValue(v string) (string, bool) {
	lower := strings.ToLower(v)
	if !strings.HasPrefix(lower, "utf-8''") {
		return "", false
	}
	decoded, err := url.PathUnescape(v[len("utf-8''"):])
	if err != nil {
		return "", false
	}
	return decoded, decoded != ""
}
