package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/tanq16/coursefetch/internal/output"
	"github.com/tanq16/coursefetch/internal/utils"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Log in and list the available courses",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := startApp(ctx)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			defer a.Close()
			courses, err := a.site.Courses(ctx, a.cfg.URLs.Courses)
			if err != nil {
				a.Close()
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if len(courses) == 0 {
				output.PrintWarning("No courses found")
				return
			}
			output.PrintHeader(fmt.Sprintf("%d course(s)", len(courses)))
			fmt.Println(courseTable(courses))
		},
	}
}

func courseTable(courses []utils.Course) string {
	rows := make([][]string, 0, len(courses))
	for i, c := range courses {
		rows = append(rows, []string{strconv.Itoa(i + 1), utils.Truncate(c.Name, 60), c.Category, c.URL})
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("#", "Course", "Category", "URL").
		Rows(rows...).
		String()
}
