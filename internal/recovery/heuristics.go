package recovery

import (
	"strings"

	"genrecover/internal/config"
)

// componentExtensions are UI component files expected to close with a brace.
var componentExtensions = []string{".tsx", ".jsx"}

// Signals describes the structural evidence gathered for one file.
type Signals struct {
	BraceDiff         int  // |count('{') - count('}')|
	ParenDiff         int  // |count('(') - count(')')|
	TrailingBackslash bool // trimmed content ends in an unescaped backslash
	IncompleteEnding  bool // component file not closed by '}'
	IsComponent       bool
}

// Inspect gathers truncation signals for content stored at path.
func Inspect(path, content string) Signals {
	trimmed := strings.TrimSpace(content)
	s := Signals{
		BraceDiff:         abs(strings.Count(content, "{") - strings.Count(content, "}")),
		ParenDiff:         abs(strings.Count(content, "(") - strings.Count(content, ")")),
		TrailingBackslash: endsWithUnescapedBackslash(trimmed),
		IsComponent:       isComponentPath(path),
	}
	if s.IsComponent {
		// A closing "};" counts as closed.
		tail := strings.TrimRight(trimmed, "; \t\r\n")
		s.IncompleteEnding = !strings.HasSuffix(tail, "}")
	}
	return s
}

// Suspicious reports whether the signals warrant doubting the whole response.
func (s Signals) Suspicious(cfg config.RecoveryConfig) bool {
	return s.BraceDiff > cfg.MaxBraceImbalance ||
		s.ParenDiff > cfg.MaxParenImbalance ||
		s.TrailingBackslash ||
		s.IncompleteEnding
}

// Truncated reports whether this particular file should be regenerated.
// Parenthesis balance is not part of the per-file verdict.
func (s Signals) Truncated(cfg config.RecoveryConfig) bool {
	return s.BraceDiff > cfg.MaxBraceImbalance ||
		s.TrailingBackslash ||
		s.IncompleteEnding
}

// IsSuspicious applies the suspicion heuristic with default thresholds.
func IsSuspicious(path, content string) bool {
	return Inspect(path, content).Suspicious(config.DefaultRecoveryConfig())
}

func endsWithUnescapedBackslash(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func isComponentPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range componentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
