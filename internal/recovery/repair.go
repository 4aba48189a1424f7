package recovery

import (
	"strings"
	"unicode/utf8"
)

// escapeReplacer undoes the JSON string escapes that survive in partial
// content cut off before its closing quote.
var escapeReplacer = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\"`, `"`,
	`\'`, `'`,
)

// FixPartialFiles repairs partial files into usable content. Files whose raw or
// repaired content is not longer than minLength characters are dropped.
func FixPartialFiles(partial map[string]PartialFile, minLength int) map[string]string {
	fixed := make(map[string]string)
	for path, pf := range partial {
		if utf8.RuneCountInString(pf.Content) <= minLength {
			continue
		}
		content := RepairContent(pf.Content)
		if utf8.RuneCountInString(content) <= minLength {
			continue
		}
		fixed[path] = content
	}
	return fixed
}

// RepairContent applies the partial-file repair rules to a single body.
func RepairContent(raw string) string {
	content := escapeReplacer.Replace(raw)
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, ",")
	content = strings.TrimSpace(content)
	content = repairTrailingQuote(content)
	content = closeDanglingObject(content)
	return content
}

// repairTrailingQuote fixes an odd number of double quotes: a final quote left
// over from the envelope is dropped, otherwise the open literal is closed.
func repairTrailingQuote(s string) string {
	if strings.Count(s, `"`)%2 == 0 {
		return s
	}
	if strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(strings.TrimSuffix(s, `"`))
	}
	return s + `"`
}

// closeDanglingObject appends a brace when the last '{' was never closed.
func closeDanglingObject(s string) string {
	open := strings.LastIndex(s, "{")
	if open == -1 {
		return s
	}
	if strings.LastIndex(s, "}") > open {
		return s
	}
	return s + "\n}"
}
