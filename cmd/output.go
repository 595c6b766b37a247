package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Warn    lipgloss.Color
}

// DefaultTheme is a red accent on dimmed grey.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#ff5f87"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#ffaf00"),
}

type styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Label  lipgloss.Style
	Dim    lipgloss.Style
	Warn   lipgloss.Style
	Border lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		Warn:   lipgloss.NewStyle().Foreground(t.Warn),
		Border: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// tabular is implemented by results that have a table rendering.
type tabular interface {
	Table(s styles) string
}

// writeOutput renders result in the requested format. Table falls back to
// YAML for results without a table form.
func writeOutput(w io.Writer, format string, result any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		if t, ok := result.(tabular); ok {
			_, err := fmt.Fprintln(w, t.Table(newStyles(DefaultTheme)))
			return err
		}
		return writeOutput(w, "yaml", result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func renderTable(s styles, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		})
	return t.Render()
}

// renderPairs lays out label/value lines with aligned labels.
func renderPairs(s styles, pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, lipgloss.Width(p[0]))
	}
	var b strings.Builder
	for _, p := range pairs {
		label := s.Label.Render(p[0] + ":")
		b.WriteString(label)
		b.WriteString(strings.Repeat(" ", width-lipgloss.Width(p[0])+2))
		b.WriteString(p[1])
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	return fmt.Sprintf("%dm%.1fs", mins, secs-float64(mins*60))
}

func formatVector(v []float64, precision int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.*f", precision, x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
