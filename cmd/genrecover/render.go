package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"genrecover/internal/diff"
	"genrecover/internal/emergency"
	"genrecover/internal/recovery"
)

var (
	successColor = lipgloss.Color("#8BC34A")
	warningColor = lipgloss.Color("#FFC107")
	errorColor   = lipgloss.Color("#e53935")
	infoColor    = lipgloss.Color("#2196F3")
	mutedColor   = lipgloss.Color("#6b7280")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// actionStyle colors an action badge.
func actionStyle(a recovery.Action) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch a {
	case recovery.ActionSuccess:
		return base.Foreground(successColor)
	case recovery.ActionContinuation:
		return base.Foreground(infoColor)
	case recovery.ActionPartial:
		return base.Foreground(warningColor)
	default:
		return base.Foreground(errorColor)
	}
}

// renderResult prints result. When current is non-empty the file table also
// shows how each recovered file changes the existing tree.
func renderResult(w io.Writer, format string, result recovery.RecoveryResult, current map[string]string) error {
	if format == "json" {
		return writeJSON(w, result)
	}

	var sb strings.Builder
	sb.WriteString(actionStyle(result.Action).Render(strings.ToUpper(string(result.Action))))
	if result.Message != "" {
		sb.WriteString(" " + result.Message)
	}
	sb.WriteString("\n")

	files := resultFiles(result)
	if len(files) > 0 && len(current) > 0 {
		t := newTable("Files", "Path", "Bytes", "Change")
		for _, st := range diff.StatAll(current, files) {
			t.addRow(st.Path, fmt.Sprint(len(files[st.Path])), changeLabel(st))
		}
		sb.WriteString(t.view())
	} else if len(files) > 0 {
		t := newTable("Files", "Path", "Bytes")
		for _, p := range sortedPaths(files) {
			t.addRow(p, fmt.Sprint(len(files[p])))
		}
		sb.WriteString(t.view())
	}

	if len(result.FilesToRegenerate) > 0 {
		sb.WriteString(titleStyle.Render("Regenerate") + "\n")
		for _, p := range result.FilesToRegenerate {
			sb.WriteString("  " + p + "\n")
		}
	}

	if m := result.GenerationMeta; m != nil {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("batch %d/%d, %d planned, %d remaining",
			m.CurrentBatch, m.TotalBatches, m.TotalFilesPlanned, len(m.RemainingFiles))) + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func changeLabel(st diff.Stat) string {
	switch {
	case st.IsNew:
		return "new"
	case st.Unchanged():
		return "unchanged"
	default:
		return fmt.Sprintf("+%d -%d", st.Added, st.Removed)
	}
}

func renderExtraction(w io.Writer, format string, res emergency.Result) error {
	if format == "json" {
		return writeJSON(w, map[string]interface{}{
			"files":  res.Files,
			"found":  len(res.Files) > 0,
			"method": res.Method,
		})
	}

	if len(res.Files) == 0 {
		_, err := io.WriteString(w, actionStyle(recovery.ActionNone).Render("NOTHING RECOVERED")+"\n")
		return err
	}

	var sb strings.Builder
	sb.WriteString(actionStyle(recovery.ActionPartial).Render("RECOVERED"))
	sb.WriteString(fmt.Sprintf(" %d files via %s\n", len(res.Files), res.Method))
	t := newTable("Files", "Path", "Bytes")
	for _, p := range sortedPaths(res.Files) {
		t.addRow(p, fmt.Sprint(len(res.Files[p])))
	}
	sb.WriteString(t.view())

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// table renders static rows with aligned columns.
type table struct {
	title   string
	headers []string
	rows    [][]string
}

func newTable(title string, headers ...string) *table {
	return &table{title: title, headers: headers}
}

func (t *table) addRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) view() string {
	if len(t.rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(titleStyle.Render(t.title) + "\n")
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	// Width includes padding.
	total := len(widths) - 1
	for i := range widths {
		widths[i] += 2
		total += widths[i]
	}

	sep := mutedStyle.Render("|")
	cells := make([]string, 0, len(t.headers))
	for i, h := range t.headers {
		cells = append(cells, headerStyle.Width(widths[i]).Render(h))
	}
	sb.WriteString(strings.Join(cells, sep) + "\n")
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)) + "\n")

	for _, row := range t.rows {
		cells = cells[:0]
		for i, cell := range row {
			if i < len(widths) {
				cells = append(cells, cellStyle.Width(widths[i]).Render(cell))
			}
		}
		sb.WriteString(strings.Join(cells, sep) + "\n")
	}
	return sb.String()
}
