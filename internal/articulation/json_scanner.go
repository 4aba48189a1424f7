package articulation

// span is a half-open byte range [start, end) within the scanned input.
type span struct {
	start, end int
}

// FindJSONCandidates scans the input string for top-level JSON object candidates.
// It handles nested braces and string escaping to correctly identify boundaries.
// An object still open at end of input is not a candidate.
func FindJSONCandidates(s string) []string {
	spans := findJSONCandidateSpans(s)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, s[sp.start:sp.end])
	}
	return out
}

// findJSONCandidateSpans is the byte-level state machine behind
// FindJSONCandidates.
//
// Iterating bytes is safe for the ASCII delimiters ({, }, ", \) because UTF-8
// never uses ASCII bytes inside a multi-byte sequence.
func findJSONCandidateSpans(s string) []span {
	var spans []span
	var depth int
	var start = -1
	var inString bool
	var escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		if b == '"' {
			inString = true
			continue
		}

		if b == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if b == '}' {
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					spans = append(spans, span{start: start, end: i + 1})
					start = -1
				}
			}
		}
	}

	return spans
}

// scanString reads a JSON string literal whose opening quote is at s[open].
// It returns the index just past the closing quote, or -1 when the input ends
// first.
func scanString(s string, open int) int {
	escape := false
	for i := open + 1; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		switch b {
		case '\\':
			escape = true
		case '"':
			return i + 1
		}
	}
	return -1
}
