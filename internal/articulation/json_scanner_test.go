package articulation

import (
	"strings"
	"testing"
)

func TestFindJSONCandidates(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple",
			input: `prefix {"key": "value"} suffix`,
			want:  []string{`{"key": "value"}`},
		},
		{
			name:  "nested",
			input: `start {"a": {"b": "c"}} end`,
			want:  []string{`{"a": {"b": "c"}}`},
		},
		{
			name:  "multiple",
			input: `obj1 {"id": 1} obj2 {"id": 2}`,
			want:  []string{`{"id": 1}`, `{"id": 2}`},
		},
		{
			name:  "string_with_braces",
			input: `{"key": "value with } inside"}`,
			want:  []string{`{"key": "value with } inside"}`},
		},
		{
			name:  "escaped_quote",
			input: `{"key": "value with \" inside"}`,
			want:  []string{`{"key": "value with \" inside"}`},
		},
		{
			name:  "incomplete",
			input: `prefix { incomplete`,
			want:  nil,
		},
		{
			name:  "truncated_envelope",
			input: `{"files":[{"path":"a.ts","content":"x"},{"path":"b.ts","content":"y`,
			want:  nil,
		},
		{
			name:  "malformed_braces",
			input: `} { valid } {`,
			want:  []string{`{ valid }`},
		},
		{
			name:  "escaped_backslash",
			input: `{"key": "value with \\ inside"}`,
			want:  []string{`{"key": "value with \\ inside"}`},
		},
		{
			name:  "multibyte",
			input: `note ✓ {"k": "ünïcödé } 🎉"} done`,
			want:  []string{`{"k": "ünïcödé } 🎉"}`},
		},
		{
			name:  "empty_object",
			input: `{}`,
			want:  []string{`{}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindJSONCandidates(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d", len(got), len(tt.want))
			}
			for i, cand := range got {
				if cand != tt.want[i] {
					t.Errorf("candidate[%d] = %q, want %q", i, cand, tt.want[i])
				}
			}
		})
	}
}

func TestScanString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "closed", input: `"abc" rest`, want: 5},
		{name: "escaped_quote", input: `"a\"b"`, want: 6},
		{name: "escaped_backslash_then_close", input: `"a\\"`, want: 5},
		{name: "unterminated", input: `"abc`, want: -1},
		{name: "dangling_escape", input: `"abc\`, want: -1},
		{name: "empty", input: `""`, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanString(tt.input, 0); got != tt.want {
				t.Errorf("scanString(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// BenchmarkFindJSONCandidates benchmarks the scanner on a large file envelope.
func BenchmarkFindJSONCandidates(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("Here are the generated files:\n")
	sb.WriteString(`{"files":[`)
	for i := 0; i < 2000; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"path":"src/components/Widget.tsx","content":"export function Widget() {\n  return <div>{\"}\"}</div>;\n}\n"}`)
	}
	sb.WriteString(`]}`)
	sb.WriteString("\nLet me know if you need changes.")
	input := sb.String()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		candidates := FindJSONCandidates(input)
		if len(candidates) == 0 {
			b.Fatal("no candidates found")
		}
	}
}
