package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/coursefetch/internal/utils"
)

var courses = []utils.Course{
	{Name: "Linear Algebra", URL: "https://x/course/view.php?id=1", Category: "My Courses"},
	{Name: "History of Art", URL: "https://x/course/view.php?id=2", Category: "My Courses"},
	{Name: "Algebraic Topology", URL: "https://x/course/view.php?id=3", Category: "My Courses"},
}

func names(cs []utils.Course) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

func TestSelectionValidate(t *testing.T) {
	assert.Error(t, selection{}.validate())
	assert.Error(t, selection{all: true, indexes: "1"}.validate())
	assert.NoError(t, selection{names: []string{"algebra"}}.validate())
}

func TestSelectionApply(t *testing.T) {
	testCases := []struct {
		name     string
		sel      selection
		expected []string
	}{
		{"all", selection{all: true}, []string{"Linear Algebra", "History of Art", "Algebraic Topology"}},
		{"by name", selection{names: []string{"ALGEBRA"}}, []string{"Linear Algebra", "Algebraic Topology"}},
		{"by name no match", selection{names: []string{"physics"}}, []string{}},
		{"by index keeps list order", selection{indexes: "3, 1"}, []string{"Linear Algebra", "Algebraic Topology"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			selected, err := tc.sel.apply(courses)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, names(selected))
		})
	}
}

func TestSelectionApplyRejectsBadIndex(t *testing.T) {
	_, err := selection{indexes: "4"}.apply(courses)
	assert.Error(t, err)
	_, err = selection{indexes: "x"}.apply(courses)
	assert.Error(t, err)
}

func TestCourseTable(t *testing.T) {
	rendered := courseTable(courses)
	assert.True(t, strings.Contains(rendered, "History of Art"))
	assert.True(t, strings.Contains(rendered, "Category"))
}
