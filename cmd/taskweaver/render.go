package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/therockpusher/taskweaver/internal/domain"
)

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
)

// renderTable writes one bordered table, or a placeholder line when rows is empty.
func renderTable(w io.Writer, empty string, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func taskRows(tasks []domain.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.Title,
			string(t.Status),
			strconv.Itoa(t.DurationMin),
			formatFloat(t.Value),
			formatFloat(t.IntrinsicPriority()),
		})
	}
	return rows
}

var taskHeaders = []string{"ID", "TITLE", "STATUS", "MIN", "VALUE", "PRIORITY"}

func countRows(tasks []domain.TaskWithCounts) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.Title,
			string(t.Status),
			strconv.Itoa(t.ActiveBlockerCount),
			strconv.Itoa(t.TasksBlockedCount),
			readyLabel(t.Ready()),
		})
	}
	return rows
}

var countHeaders = []string{"ID", "TITLE", "STATUS", "BLOCKERS", "BLOCKS", "READY"}

func rankedRows(tasks []domain.RankedTask) [][]string {
	rows := make([][]string, 0, len(tasks))
	for i, t := range tasks {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			t.ID,
			t.Title,
			string(t.Status),
			formatFloat(t.EffectivePriority),
			formatFloat(t.IntrinsicPriority),
			strconv.Itoa(t.ActiveBlockerCount),
			strconv.Itoa(t.TasksBlockedCount),
		})
	}
	return rows
}

var rankedHeaders = []string{"#", "ID", "TITLE", "STATUS", "EFFECTIVE", "OWN", "BLOCKERS", "BLOCKS"}

// writeFields writes aligned "label: value" lines.
func writeFields(w io.Writer, fields [][2]string) error {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}
	for _, f := range fields {
		label := labelStyle.Render(f[0] + ":" + strings.Repeat(" ", width-len(f[0])))
		if _, err := fmt.Fprintf(w, "%s %s\n", label, f[1]); err != nil {
			return err
		}
	}
	return nil
}

func readyLabel(ready bool) string {
	if ready {
		return "yes"
	}
	return "no"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
