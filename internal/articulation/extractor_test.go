package articulation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genrecover/internal/recovery"
)

func TestFileExtractor_Parse_JSON(t *testing.T) {
	fx := NewFileExtractor()

	raw := `{
	  "files": [
	    {"path": "src/a.ts", "content": "export const a = 1;\n"},
	    {"filePath": "./src/b.ts", "content": "export const b = 2;\n"}
	  ]
	}`

	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodJSON, res.Method)
	want := map[string]string{
		"src/a.ts": "export const a = 1;\n",
		"src/b.ts": "export const b = 2;\n",
	}
	if diff := cmp.Diff(want, res.Outcome.CompleteFiles); diff != "" {
		t.Errorf("CompleteFiles mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Outcome.PartialFiles)
}

func TestFileExtractor_Parse_MarkdownWrapped(t *testing.T) {
	fx := NewFileExtractor()

	raw := "```json\n" + `{"files":[{"path":"src/a.ts","content":"x"}]}` + "\n```"

	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodJSONMarkdown, res.Method)
	assert.Equal(t, map[string]string{"src/a.ts": "x"}, res.Outcome.CompleteFiles)
}

func TestFileExtractor_Parse_MarkdownDisabled(t *testing.T) {
	fx := &FileExtractor{AllowMarkdownWrapped: false}

	raw := "```json\n" + `{"files":[{"path":"src/a.ts","content":"x"}]}` + "\n```"

	// The embedded-candidate layer still finds the envelope.
	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodJSONEmbedded, res.Method)
	assert.Equal(t, map[string]string{"src/a.ts": "x"}, res.Outcome.CompleteFiles)
}

func TestFileExtractor_Parse_EmbeddedInProse(t *testing.T) {
	fx := NewFileExtractor()

	raw := `Sure! Here is the {"note": "decoy"} and the real output:
{"files":[{"path":"src/main.tsx","content":"import App from './App';\n"}]}
Let me know if you want changes.`

	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodJSONEmbedded, res.Method)
	assert.Equal(t, map[string]string{"src/main.tsx": "import App from './App';\n"}, res.Outcome.CompleteFiles)
}

func TestFileExtractor_Parse_PathMap(t *testing.T) {
	fx := NewFileExtractor()

	res := fx.Parse(`{"files":{"src/a.ts":"a","src/b.ts":"b"}}`, nil)
	assert.Equal(t, MethodJSON, res.Method)
	assert.Equal(t, map[string]string{"src/a.ts": "a", "src/b.ts": "b"}, res.Outcome.CompleteFiles)
}

func TestFileExtractor_Parse_Truncated(t *testing.T) {
	fx := NewFileExtractor()

	raw := `{"files":[` +
		`{"path":"src/a.ts","content":"export const a = \"done\";\n"},` +
		`{"path":"src/b.ts","content":"export function b() {\n  return \"unfin`

	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodScan, res.Method)
	assert.Equal(t, map[string]string{"src/a.ts": "export const a = \"done\";\n"}, res.Outcome.CompleteFiles)

	require.Contains(t, res.Outcome.PartialFiles, "src/b.ts")
	pf := res.Outcome.PartialFiles["src/b.ts"]
	assert.Equal(t, `export function b() {\n  return \"unfin`, pf.Content)
	require.NotNil(t, pf.TruncatedAt)
	assert.Equal(t, strings.Index(raw, "export function b"), *pf.TruncatedAt)
	assert.Len(t, res.Warnings, 1)
}

func TestFileExtractor_Parse_ContentBeforePath(t *testing.T) {
	fx := NewFileExtractor()

	raw := `{"files":[` +
		`{"content":"export const a = 1;\n","path":"src/a.ts"},` +
		`{"path":"src/b.ts","content":"export const b = 2;\n"},` +
		`{"content":"export const c`

	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodScan, res.Method)
	want := map[string]string{
		"src/a.ts": "export const a = 1;\n",
		"src/b.ts": "export const b = 2;\n",
	}
	if diff := cmp.Diff(want, res.Outcome.CompleteFiles); diff != "" {
		t.Errorf("CompleteFiles mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Outcome.PartialFiles)
}

func TestFileExtractor_Parse_PairsStayInsideEntries(t *testing.T) {
	fx := NewFileExtractor()

	raw := `{"files":[` +
		`{"path":"src/orphan.ts"},` +
		`{"content":"export const x = 1;\n","path":"src/x.ts"},` +
		`{"path":"src/y.ts","content":"unfin`

	res := fx.Parse(raw, nil)
	assert.Equal(t, map[string]string{"src/x.ts": "export const x = 1;\n"}, res.Outcome.CompleteFiles)
	require.Contains(t, res.Outcome.PartialFiles, "src/y.ts")
	assert.Equal(t, "unfin", res.Outcome.PartialFiles["src/y.ts"].Content)
	assert.NotContains(t, res.Outcome.PartialFiles, "src/orphan.ts")
}

func TestSameEntry(t *testing.T) {
	assert.True(t, sameEntry(`, `))
	assert.True(t, sameEntry(`, "lang": "{tsx}", `))
	assert.False(t, sameEntry("\n}, {"))
	assert.False(t, sameEntry(`},{`))
}

func TestFileExtractor_Parse_CompleteEnvelopeThenTruncatedOne(t *testing.T) {
	fx := NewFileExtractor()

	raw := `{"files":[{"path":"src/a.ts","content":"a"}]}` + "\n" +
		`{"files":[{"path":"src/b.ts","content":"b partial`

	res := fx.Parse(raw, nil)
	assert.Equal(t, MethodScan, res.Method)
	assert.Equal(t, map[string]string{"src/a.ts": "a"}, res.Outcome.CompleteFiles)
	require.Contains(t, res.Outcome.PartialFiles, "src/b.ts")
	assert.Equal(t, "b partial", res.Outcome.PartialFiles["src/b.ts"].Content)
}

func TestFileExtractor_Parse_NothingFound(t *testing.T) {
	fx := NewFileExtractor()

	res := fx.Parse("I could not generate the files, sorry.", nil)
	assert.Equal(t, MethodNone, res.Method)
	assert.Empty(t, res.Outcome.CompleteFiles)
	assert.Empty(t, res.Outcome.PartialFiles)
}

func TestFileExtractor_ResolvesBareNames(t *testing.T) {
	fx := NewFileExtractor()
	current := map[string]string{
		"src/App.tsx":            "old",
		"src/components/Nav.tsx": "old",
		"src/pages/index.ts":     "old",
		"src/utils/index.ts":     "old",
	}

	raw := `{"files":[` +
		`{"path":"App.tsx","content":"app"},` +
		`{"path":"index.ts","content":"idx"},` +
		`{"path":"New.tsx","content":"new"}]}`

	res := fx.Parse(raw, current)
	want := map[string]string{
		"src/App.tsx": "app",
		"index.ts":    "idx", // ambiguous, left alone
		"New.tsx":     "new",
	}
	if diff := cmp.Diff(want, res.Outcome.CompleteFiles); diff != "" {
		t.Errorf("CompleteFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestFileExtractor_SatisfiesRecoveryExtractor(t *testing.T) {
	var x recovery.Extractor = NewFileExtractor()
	out := x.Extract(`{"files":[{"path":"a.ts","content":"a"}]}`, nil)
	assert.Equal(t, map[string]string{"a.ts": "a"}, out.CompleteFiles)
}

func TestUncovered(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		covered []span
		want    []span
	}{
		{name: "none", n: 10, want: []span{{0, 10}}},
		{name: "middle", n: 10, covered: []span{{3, 5}}, want: []span{{0, 3}, {5, 10}}},
		{name: "edges", n: 10, covered: []span{{0, 4}, {6, 10}}, want: []span{{4, 6}}},
		{name: "all", n: 10, covered: []span{{0, 10}}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uncovered(tt.n, tt.covered)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(span{})); diff != "" {
				t.Errorf("uncovered mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
