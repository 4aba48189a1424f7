// Package recovery decides what to do with a model response that may have been
// cut short: continue generation, accept the files, salvage partial files, or
// give up. Every function here is pure and safe for concurrent use.
package recovery

import (
	"path"
	"sort"
	"strings"
)

// BatchSize is the number of files requested per continuation round.
const BatchSize = 5

// Action tags a RecoveryResult.
type Action string

const (
	ActionNone         Action = "none"
	ActionContinuation Action = "continuation"
	ActionSuccess      Action = "success"
	ActionPartial      Action = "partial"
)

// FilePlan is the orchestrator's intended file set for a multi-batch generation.
// The engine never mutates it.
type FilePlan struct {
	Create    []string `json:"create" yaml:"create"`
	Delete    []string `json:"delete,omitempty" yaml:"delete,omitempty"`
	Total     int      `json:"total" yaml:"total"`
	Completed []string `json:"completed,omitempty" yaml:"completed,omitempty"`
}

// PartialFile is file content the extractor saw cut off mid-structure.
type PartialFile struct {
	Content string `json:"content"`
	// TruncatedAt is the byte offset in the response where the content began,
	// when the extractor knows it.
	TruncatedAt *int `json:"truncatedAt,omitempty"`
}

// ExtractionOutcome is what a structured extractor recovered from a buffer.
type ExtractionOutcome struct {
	CompleteFiles map[string]string      `json:"completeFiles"`
	PartialFiles  map[string]PartialFile `json:"partialFiles"`
}

// GenerationMeta tracks progress across continuation rounds.
type GenerationMeta struct {
	TotalFilesPlanned int      `json:"totalFilesPlanned"`
	FilesInThisBatch  []string `json:"filesInThisBatch"`
	CompletedFiles    []string `json:"completedFiles"`
	RemainingFiles    []string `json:"remainingFiles"`
	CurrentBatch      int      `json:"currentBatch"`
	TotalBatches      int      `json:"totalBatches"`
	IsComplete        bool     `json:"isComplete"`
}

// RecoveryResult is the engine's verdict. Only the fields relevant to Action
// are populated.
type RecoveryResult struct {
	Action            Action            `json:"action"`
	Files             map[string]string `json:"files,omitempty"`
	GoodFiles         map[string]string `json:"goodFiles,omitempty"`
	FilesToRegenerate []string          `json:"filesToRegenerate,omitempty"`
	GenerationMeta    *GenerationMeta   `json:"generationMeta,omitempty"`
	Message           string            `json:"message,omitempty"`
	RecoveredCount    int               `json:"recoveredCount"`
}

// Extractor produces an ExtractionOutcome from a response buffer and the
// current file tree.
type Extractor interface {
	Extract(buffer string, currentFiles map[string]string) ExtractionOutcome
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(buffer string, currentFiles map[string]string) ExtractionOutcome

// Extract calls f.
func (f ExtractorFunc) Extract(buffer string, currentFiles map[string]string) ExtractionOutcome {
	return f(buffer, currentFiles)
}

// NormalizePath canonicalizes a generated file path so that spellings such as
// "./src/a.ts", "/src/a.ts" and "src//a.ts" share one key. Parent references
// are clamped at the project root. Returns "" for empty paths.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "`'\"")
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}

// BaseName returns the path tail after the last separator.
func BaseName(p string) string {
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// total is the planned file count used in progress messages.
func (p *FilePlan) total() int {
	if p.Total > 0 {
		return p.Total
	}
	return len(p.Create)
}

// pending returns create entries not already confirmed by earlier batches.
func (p *FilePlan) pending() []string {
	done := make(map[string]bool, len(p.Completed))
	for _, c := range p.Completed {
		done[NormalizePath(c)] = true
	}
	out := make([]string, 0, len(p.Create))
	for _, c := range p.Create {
		if !done[NormalizePath(c)] {
			out = append(out, c)
		}
	}
	return out
}

// missing returns pending entries absent from files, in plan order.
func (p *FilePlan) missing(files map[string]string) []string {
	have := normalizedKeys(files)
	var out []string
	for _, c := range p.pending() {
		if !have[NormalizePath(c)] {
			out = append(out, c)
		}
	}
	return out
}

// unrecovered returns create entries whose base name matches neither a
// recovered file nor an entry completed in an earlier batch.
func (p *FilePlan) unrecovered(files map[string]string) []string {
	bases := make(map[string]bool, len(files)+len(p.Completed))
	for k := range files {
		bases[BaseName(k)] = true
	}
	for _, c := range p.Completed {
		bases[BaseName(c)] = true
	}
	var out []string
	for _, c := range p.Create {
		if !bases[BaseName(c)] {
			out = append(out, c)
		}
	}
	return out
}

// batches returns ceil(n / BatchSize).
func batches(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + BatchSize - 1) / BatchSize
}

func normalizedKeys(files map[string]string) map[string]bool {
	out := make(map[string]bool, len(files))
	for k := range files {
		out[NormalizePath(k)] = true
	}
	return out
}

func sortedKeys(files map[string]string) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
