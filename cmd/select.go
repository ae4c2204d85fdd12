package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tanq16/coursefetch/internal/utils"
)

type selection struct {
	all     bool
	names   []string
	indexes string
}

func (s selection) validate() error {
	modes := 0
	if s.all {
		modes++
	}
	if len(s.names) > 0 {
		modes++
	}
	if s.indexes != "" {
		modes++
	}
	if modes == 0 {
		return errors.New("choose courses with --all, --course or --index (see `coursefetch list`)")
	}
	if modes > 1 {
		return errors.New("--all, --course and --index cannot be combined")
	}
	return nil
}

// apply returns the chosen courses in list order.
func (s selection) apply(courses []utils.Course) ([]utils.Course, error) {
	if s.all {
		return courses, nil
	}
	if s.indexes != "" {
		picked := make(map[int]bool)
		for _, part := range strings.Split(s.indexes, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil || n < 1 || n > len(courses) {
				return nil, fmt.Errorf("invalid course number %q (1-%d)", part, len(courses))
			}
			picked[n-1] = true
		}
		var selected []utils.Course
		for i, c := range courses {
			if picked[i] {
				selected = append(selected, c)
			}
		}
		return selected, nil
	}
	var selected []utils.Course
	for _, c := range courses {
		name := strings.ToLower(c.Name)
		for _, want := range s.names {
			if want = strings.ToLower(strings.TrimSpace(want)); want != "" && strings.Contains(name, want) {
				selected = append(selected, c)
				break
			}
		}
	}
	return selected, nil
}
