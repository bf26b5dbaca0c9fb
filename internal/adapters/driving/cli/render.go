package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

var (
	accent = lipgloss.Color("99")

	headerStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	plainHeader = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// styled reports whether w is a terminal that can show colour.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderTable formats rows under headers. Output is coloured only when w
// is a terminal.
func renderTable(w io.Writer, headers []string, rows [][]string) string {
	color := styled(w)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow && color:
				return headerStyle.Padding(0, 1)
			case row == table.HeaderRow:
				return plainHeader.Padding(0, 1)
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	if color {
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(accent))
	}
	return t.String()
}

// paint applies style when w is a terminal.
func paint(w io.Writer, style lipgloss.Style, s string) string {
	if !styled(w) {
		return s
	}
	return style.Render(s)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
