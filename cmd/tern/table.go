package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"tern/internal/snapshot"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func renderResults(out io.Writer, results []checkResult) {
	rows := [][]string{{"CHECK", "RUNS", "TOTAL", "STATUS"}}
	styles := []lipgloss.Style{headerStyle}
	for _, r := range results {
		status, style := "ok", okStyle
		if r.err != nil {
			status, style = "fail", failStyle
		}
		rows = append(rows, []string{
			r.name,
			fmt.Sprintf("%d", r.runs),
			r.elapsed.String(),
			status,
		})
		styles = append(styles, style)
	}
	renderTable(out, rows, styles)
}

func renderSnapshot(out io.Writer, snap snapshot.Snapshot) {
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("snapshot taken %s, %d live slice(s)",
		snap.TakenAt.Format("2006-01-02 15:04:05 MST"), len(snap.Slices))))
	if len(snap.Slices) == 0 {
		return
	}
	rows := [][]string{{"ALLOC", "ORIGIN", "ELEM", "LEN", "CAPS", "SHARES", "GRANTS"}}
	styles := []lipgloss.Style{headerStyle}
	plain := lipgloss.NewStyle()
	for _, s := range snap.Slices {
		grants := fmt.Sprintf("value=%d place=%d", s.SharedValue, s.SharedPlace)
		if s.Exclusive {
			grants = "exclusive"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.AllocID),
			truncate(s.Origin, 32),
			s.Elem,
			fmt.Sprintf("%d", s.Len),
			s.Caps,
			fmt.Sprintf("%d", s.Shares),
			grants,
		})
		styles = append(styles, plain)
	}
	renderTable(out, rows, styles)
}

// renderTable prints rows with runewidth-aware column padding. Styles are
// applied per row after padding, so escape sequences never skew the widths.
func renderTable(out io.Writer, rows [][]string, styles []lipgloss.Style) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, col := range row {
			if w := runewidth.StringWidth(col); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for ri, row := range rows {
		cols := make([]string, len(row))
		for i, col := range row {
			cols[i] = col + strings.Repeat(" ", widths[i]-runewidth.StringWidth(col))
		}
		line := strings.TrimRight(strings.Join(cols, "  "), " ")
		fmt.Fprintln(out, styles[ri].Render(line))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
