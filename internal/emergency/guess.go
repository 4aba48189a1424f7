package emergency

import (
	"fmt"
	"regexp"
	"strings"
)

// pathRule maps a content shape to a conventional location. Templates may
// reference the first capture group as {name}.
type pathRule struct {
	kind     string
	pattern  *regexp.Regexp
	template string
}

// pathRules is evaluated top to bottom; the first match wins. An exported
// App function is a component like any other; the app rule only catches
// unexported or const root entries.
var pathRules = []pathRule{
	{
		kind:     "component",
		pattern:  regexp.MustCompile(`(?m)^export\s+(?:default\s+)?function\s+([A-Z]\w*)`),
		template: "src/components/{name}.tsx",
	},
	{
		kind:     "hook",
		pattern:  regexp.MustCompile(`(?m)^export\s+(?:default\s+)?(?:function\s+|const\s+)(use[A-Z0-9]\w*)`),
		template: "src/hooks/{name}.ts",
	},
	{
		kind:     "types",
		pattern:  regexp.MustCompile(`(?m)^(?:export\s+)?(?:interface|type)\s+[A-Za-z_]\w*`),
		template: "src/types/index.ts",
	},
	{
		kind:     "app",
		pattern:  regexp.MustCompile(`(?m)^(?:export\s+(?:default\s+)?)?(?:function\s+App\s*[(<]|const\s+App\s*[:=])`),
		template: "src/App.tsx",
	},
}

// GuessPath infers a plausible project path for content with no stated path.
// It is a pure function of its arguments.
func GuessPath(content string, index int) string {
	path, _ := guessPath(content, index)
	return path
}

// guessPath also reports which rule fired ("fallback" when none did).
func guessPath(content string, index int) (string, string) {
	for _, rule := range pathRules {
		m := rule.pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		path := rule.template
		if len(m) > 1 {
			path = strings.ReplaceAll(path, "{name}", m[1])
		}
		return path, rule.kind
	}
	return fallbackPath(index), "fallback"
}

func fallbackPath(index int) string {
	return fmt.Sprintf("src/recovered%d.tsx", index)
}
