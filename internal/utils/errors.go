package utils

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

var retryablePatterns = []string{
	"connection closed",
	"protocol error",
	"target closed",
	"timeout",
	"econnreset",
	"etimedout",
	"connection reset",
	"connection timed out",
}

var browserLostPatterns = []string{
	"connection closed",
	"protocol error",
	"websocket: close",
}

// IsRetryable reports whether err belongs to the transient browser/network class.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return matchesAny(err, retryablePatterns)
}

// IsBrowserLost reports whether err means the browser connection itself is gone.
func IsBrowserLost(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err, browserLostPatterns)
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
