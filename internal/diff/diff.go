// Package diff measures how recovered files change the existing file tree,
// using the sergi/go-diff line-mode engine.
package diff

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"genrecover/internal/recovery"
)

// Stat summarizes the line changes a recovered file makes to its current version.
type Stat struct {
	Path    string
	Added   int
	Removed int
	IsNew   bool // no current version exists
}

// Unchanged reports whether the recovered content matches the current file.
func (s Stat) Unchanged() bool {
	return !s.IsNew && s.Added == 0 && s.Removed == 0
}

// Engine computes line diffs.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine creates a diff engine tuned for source files.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// DefaultEngine is a shared engine for general use.
var DefaultEngine = NewEngine()

// Stat diffs newContent against oldContent line by line.
func (e *Engine) Stat(path, oldContent, newContent string) Stat {
	s := Stat{Path: path}
	if oldContent == newContent {
		return s
	}

	a, b, lines := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lines)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			s.Removed += countLines(d.Text)
		}
	}
	return s
}

// StatAll diffs every recovered file against current, matching paths after
// normalization. Results are sorted by path.
func (e *Engine) StatAll(current, recovered map[string]string) []Stat {
	existing := make(map[string]string, len(current))
	for p, c := range current {
		existing[recovery.NormalizePath(p)] = c
	}

	stats := make([]Stat, 0, len(recovered))
	for p, content := range recovered {
		old, ok := existing[recovery.NormalizePath(p)]
		if !ok {
			stats = append(stats, Stat{Path: p, Added: countLines(content), IsNew: true})
			continue
		}
		stats = append(stats, e.Stat(p, old, content))
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats
}

// StatAll is a convenience function using the default engine.
func StatAll(current, recovered map[string]string) []Stat {
	return DefaultEngine.StatAll(current, recovered)
}

// countLines counts lines in s, including a final line without a newline.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
