package recovery

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genrecover/internal/config"
)

var longBuffer = strings.Repeat("x", 1200)

const goodComponent = "export default function Widget() {\n  return <div>ok</div>;\n}\n"

func fixed(out ExtractionOutcome) Extractor {
	return ExtractorFunc(func(string, map[string]string) ExtractionOutcome { return out })
}

func newTestEngine(out ExtractionOutcome) *Engine {
	return NewEngine(fixed(out), config.DefaultRecoveryConfig())
}

func TestAnalyze_ShortBufferIsNone(t *testing.T) {
	called := false
	e := NewEngine(ExtractorFunc(func(string, map[string]string) ExtractionOutcome {
		called = true
		return ExtractionOutcome{}
	}), config.DefaultRecoveryConfig())

	res := e.Analyze(strings.Repeat("x", 999), nil, &FilePlan{Create: []string{"a.ts"}})

	assert.Equal(t, ActionNone, res.Action)
	assert.False(t, called, "extractor must not run on short buffers")
}

func TestAnalyze_ShortBufferCountsCharacters(t *testing.T) {
	e := newTestEngine(ExtractionOutcome{CompleteFiles: map[string]string{"src/a.ts": goodComponent}})

	// 600 characters, 1200 bytes.
	res := e.Analyze(strings.Repeat("é", 600), nil, nil)
	assert.Equal(t, ActionNone, res.Action)

	res = e.Analyze(strings.Repeat("é", 1000), nil, nil)
	assert.Equal(t, ActionSuccess, res.Action)
}

func TestAnalyze_NilExtractorIsNone(t *testing.T) {
	e := NewEngine(nil, config.DefaultRecoveryConfig())
	assert.Equal(t, ActionNone, e.Analyze(longBuffer, nil, nil).Action)
}

func TestAnalyze_NothingExtractedIsNone(t *testing.T) {
	e := newTestEngine(ExtractionOutcome{})
	assert.Equal(t, ActionNone, e.Analyze(longBuffer, nil, nil).Action)
}

func TestAnalyze_ExtractorPanicIsNone(t *testing.T) {
	e := NewEngine(ExtractorFunc(func(string, map[string]string) ExtractionOutcome {
		panic("boom")
	}), config.DefaultRecoveryConfig())

	assert.Equal(t, ActionNone, e.Analyze(longBuffer, nil, nil).Action)
}

func TestAnalyze_PlanCoveredIsSuccess(t *testing.T) {
	complete := map[string]string{
		"src/App.tsx":               goodComponent,
		"src/components/Widget.tsx": goodComponent,
	}
	e := newTestEngine(ExtractionOutcome{CompleteFiles: complete})
	plan := &FilePlan{Create: []string{"src/App.tsx", "./src/components/Widget.tsx"}}

	res := e.Analyze(longBuffer, nil, plan)

	want := RecoveryResult{
		Action:         ActionSuccess,
		Files:          complete,
		Message:        "Generated 2 files!",
		RecoveredCount: 2,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Analyze mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_MissingPlannedFilesIsContinuation(t *testing.T) {
	var create []string
	for i := 1; i <= 7; i++ {
		create = append(create, fmt.Sprintf("src/f%d.ts", i))
	}
	complete := map[string]string{
		"src/f3.ts": "export const f3 = 3;",
		"src/f1.ts": "export const f1 = 1;",
		"src/f2.ts": "export const f2 = 2;",
	}
	e := newTestEngine(ExtractionOutcome{CompleteFiles: complete})

	res := e.Analyze(longBuffer, nil, &FilePlan{Create: create})

	want := RecoveryResult{
		Action: ActionContinuation,
		Files:  complete,
		GenerationMeta: &GenerationMeta{
			TotalFilesPlanned: 7,
			FilesInThisBatch:  []string{"src/f1.ts", "src/f2.ts", "src/f3.ts"},
			CompletedFiles:    []string{"src/f1.ts", "src/f2.ts", "src/f3.ts"},
			RemainingFiles:    []string{"src/f4.ts", "src/f5.ts", "src/f6.ts", "src/f7.ts"},
			CurrentBatch:      1,
			TotalBatches:      2,
		},
		Message:        "Generating... 3/7 files",
		RecoveredCount: 3,
	}
	if diff := cmp.Diff(want, res, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Analyze mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_ContinuationCarriesEarlierBatches(t *testing.T) {
	e := newTestEngine(ExtractionOutcome{CompleteFiles: map[string]string{"src/b.ts": "b"}})
	plan := &FilePlan{
		Create:    []string{"src/a.ts", "src/b.ts", "src/c.ts"},
		Completed: []string{"src/a.ts"},
	}

	res := e.Analyze(longBuffer, nil, plan)

	require.Equal(t, ActionContinuation, res.Action)
	require.NotNil(t, res.GenerationMeta)
	assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, res.GenerationMeta.CompletedFiles)
	assert.Equal(t, []string{"src/c.ts"}, res.GenerationMeta.RemainingFiles)
	assert.Equal(t, 1, res.GenerationMeta.TotalBatches)
}

func TestAnalyze_BatchesFollowCreateEntries(t *testing.T) {
	e := newTestEngine(ExtractionOutcome{CompleteFiles: map[string]string{"src/a.ts": "a"}})
	plan := &FilePlan{Create: []string{"src/a.ts", "src/b.ts"}, Total: 12}

	res := e.Analyze(longBuffer, nil, plan)

	require.NotNil(t, res.GenerationMeta)
	assert.Equal(t, 2, res.GenerationMeta.TotalFilesPlanned)
	assert.Equal(t, 1, res.GenerationMeta.TotalBatches)
	assert.Equal(t, "Generating... 1/12 files", res.Message)
}

func TestAnalyze_SuspiciousFileIsRegenerated(t *testing.T) {
	complete := map[string]string{
		"src/A.tsx": goodComponent,
		"src/B.tsx": "export function B() {\n  if (x) {\n    return {",
	}
	e := newTestEngine(ExtractionOutcome{
		CompleteFiles: complete,
		PartialFiles:  map[string]PartialFile{"src/C.tsx": {Content: "export function C() {"}},
	})
	plan := &FilePlan{Create: []string{"src/A.tsx", "src/B.tsx"}}

	res := e.Analyze(longBuffer, nil, plan)

	want := RecoveryResult{
		Action:            ActionContinuation,
		GoodFiles:         map[string]string{"src/A.tsx": goodComponent},
		FilesToRegenerate: []string{"src/B.tsx"},
		GenerationMeta: &GenerationMeta{
			TotalFilesPlanned: 2,
			FilesInThisBatch:  []string{"src/A.tsx"},
			CompletedFiles:    []string{"src/A.tsx"},
			RemainingFiles:    []string{"src/B.tsx"},
			CurrentBatch:      1,
			TotalBatches:      1,
		},
		Message:        "Generating... 1/2 files",
		RecoveredCount: 1,
	}
	if diff := cmp.Diff(want, res, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Analyze mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_SuspiciousPartialFlagsLastPlannedFile(t *testing.T) {
	complete := map[string]string{
		"src/a.ts": "export const a = 1;",
		"src/b.ts": "export const b = 2;",
	}
	e := newTestEngine(ExtractionOutcome{
		CompleteFiles: complete,
		PartialFiles:  map[string]PartialFile{"src/c.ts": {Content: "export const c = { d: { e: {"}},
	})
	plan := &FilePlan{Create: []string{"src/a.ts", "src/b.ts"}}

	res := e.Analyze(longBuffer, nil, plan)

	require.Equal(t, ActionContinuation, res.Action)
	assert.Equal(t, []string{"src/b.ts"}, res.FilesToRegenerate)
	assert.Equal(t, map[string]string{"src/a.ts": "export const a = 1;"}, res.GoodFiles)
}

func TestAnalyze_CleanPartialWithCompleteIsSuccess(t *testing.T) {
	complete := map[string]string{"src/a.ts": "export const a = 1;"}
	e := newTestEngine(ExtractionOutcome{
		CompleteFiles: complete,
		PartialFiles:  map[string]PartialFile{"src/b.ts": {Content: "export const b = 2;"}},
	})

	res := e.Analyze(longBuffer, nil, &FilePlan{Create: []string{"src/a.ts"}})

	assert.Equal(t, ActionSuccess, res.Action)
	assert.Equal(t, complete, res.Files)
	assert.Equal(t, 1, res.RecoveredCount)
}

func TestAnalyze_NoPlanTakesCompleteFiles(t *testing.T) {
	complete := map[string]string{"src/B.tsx": "export function B() {"}
	e := newTestEngine(ExtractionOutcome{
		CompleteFiles: complete,
		PartialFiles:  map[string]PartialFile{"src/C.tsx": {Content: "{{{"}},
	})

	res := e.Analyze(longBuffer, nil, nil)

	assert.Equal(t, ActionSuccess, res.Action)
	assert.Equal(t, "Generated 1 files!", res.Message)
}

func TestAnalyze_PartialOnlyIsSalvaged(t *testing.T) {
	body := `export function Big() {\n` + strings.Repeat(`  console.log(\"line\");\n`, 8)
	e := newTestEngine(ExtractionOutcome{
		PartialFiles: map[string]PartialFile{
			"src/Big.ts":  {Content: body},
			"src/tiny.ts": {Content: "const t = 1"},
		},
	})

	res := e.Analyze(longBuffer, nil, nil)

	require.Equal(t, ActionPartial, res.Action)
	assert.Equal(t, 1, res.RecoveredCount)
	assert.Equal(t, "Recovered 1 partial files", res.Message)
	require.Contains(t, res.Files, "src/Big.ts")
	assert.True(t, strings.HasSuffix(res.Files["src/Big.ts"], "\n}"))
	assert.Contains(t, res.Files["src/Big.ts"], `console.log("line");`)
}

func TestAnalyze_PartialTooShortIsNone(t *testing.T) {
	e := newTestEngine(ExtractionOutcome{
		PartialFiles: map[string]PartialFile{"src/tiny.ts": {Content: "const t = 1"}},
	})

	assert.Equal(t, ActionNone, e.Analyze(longBuffer, nil, nil).Action)
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	var create []string
	complete := map[string]string{}
	for i := 0; i < 12; i++ {
		p := fmt.Sprintf("src/components/C%02d.tsx", i)
		create = append(create, p)
		if i%2 == 0 {
			complete[p] = goodComponent
		}
	}
	e := newTestEngine(ExtractionOutcome{CompleteFiles: complete})
	plan := &FilePlan{Create: create}

	first := e.Analyze(longBuffer, nil, plan)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, e.Analyze(longBuffer, nil, plan)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
	assert.Len(t, first.GenerationMeta.RemainingFiles, 6)
	assert.Equal(t, 3, first.GenerationMeta.TotalBatches)
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"src/a.ts":       "src/a.ts",
		"./src/a.ts":     "src/a.ts",
		"/src/a.ts":      "src/a.ts",
		"src//a.ts":      "src/a.ts",
		`src\a.ts`:       "src/a.ts",
		" `src/a.ts` ":   "src/a.ts",
		"../../etc/x.ts": "etc/x.ts",
		"":               "",
		".":              "",
		"/":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), "NormalizePath(%q)", in)
	}
}

func TestBatches(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 5: 1, 6: 2, 10: 2, 11: 3} {
		assert.Equal(t, want, batches(n), "batches(%d)", n)
	}
}
