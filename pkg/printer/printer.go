// Package printer renders command output: bordered tables for humans and
// JSON for pipeline consumption.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TablePrinter accumulates rows and renders them as a bordered table.
type TablePrinter struct {
	w       io.Writer
	headers []string
	rows    [][]string
}

func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{w: w}
}

func (t *TablePrinter) SetHeaders(headers ...string) {
	t.headers = headers
}

func (t *TablePrinter) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *TablePrinter) Render() error {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(t.w, tbl.Render())
	return err
}

// TruncateString shortens s to max runes, marking the cut with an ellipsis.
func TruncateString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// PrintError writes a highlighted error line to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+msg))
}
