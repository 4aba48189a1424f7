package emergency

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"genrecover/internal/config"
	"genrecover/internal/recovery"
)

const fence = "```"

// pathToken matches a relative source path with a recognized extension.
const pathToken = `(?:[\w@.\-\[\]]+/)*[\w@.\-\[\]]+\.(?:tsx|ts|jsx|js|mjs|cjs|css|scss|json|html|vue|svelte)`

// pathComment matches "// src/a.ts" and "// File: src/a.ts".
const pathComment = `//[ \t]*(?:[Ff]ile:[ \t]*)?(` + pathToken + `)`

// scriptLabels are the fence labels whose blocks may hold project files.
// An unlabeled fence also qualifies.
var scriptLabels = map[string]bool{
	"": true, "tsx": true, "ts": true, "jsx": true, "js": true,
	"typescript": true, "javascript": true, "mjs": true, "cjs": true,
	"css": true, "scss": true, "json": true, "html": true, "vue": true, "svelte": true,
}

var (
	// fencedBlockPattern pairs an opening fence with any label and the next
	// fence that sits alone on its line. Groups: path comment, label, body.
	fencedBlockPattern = regexp.MustCompile(
		`(?m)(?:^[ \t]*` + pathComment + `[ \t]*\r?\n)?` +
			`^[ \t]*` + fence + `([\w+.\-]*)[ \t]*\r?\n` +
			`([\s\S]*?)\r?\n[ \t]*` + fence + `[ \t]*\r?$`)

	innerPathCommentPattern = regexp.MustCompile(`^[ \t]*` + pathComment + `[ \t]*$`)

	// nearbyPathPattern finds a path mentioned in prose just before a block.
	nearbyPathPattern = regexp.MustCompile(`(?:^|[\s"'(*:` + "`" + `])(` + pathToken + `)\b`)

	markerPattern = regexp.MustCompile(`(?m)^[ \t]*` + pathComment + `[ \t]*$`)

	// proseBoundaries mark where model commentary resumes after code.
	proseBoundaries = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\*{0,2}[A-Z][A-Za-z0-9 /()\-]{0,60}:\*{0,2}[ \t]*$`),
		regexp.MustCompile(`(?m)^[-*•][ \t]+\S`),
		regexp.MustCompile(`(?m)^\d+[.)][ \t]+\S`),
		regexp.MustCompile(`(?m)^(?:Created|Updated|Added|Fixed|Implemented) `),
	}

	leadingStatementPattern = regexp.MustCompile(`^(?:(?:import|export|const|let|var|function|interface|type|class)\b|['"][\w \-]+['"];?\s*$)`)
)

// fencedBlocks recovers files from complete code fences.
func fencedBlocks(buffer string, cfg config.EmergencyConfig) map[string]string {
	files := newFileSet()
	matches := fencedBlockPattern.FindAllStringSubmatchIndex(buffer, -1)

	for i, m := range matches {
		if label := strings.ToLower(buffer[m[4]:m[5]]); !scriptLabels[label] {
			continue
		}
		body := buffer[m[6]:m[7]]
		if charCount(strings.TrimSpace(body)) < cfg.MinBlockLength {
			continue
		}

		var path string
		if m[2] >= 0 {
			path = buffer[m[2]:m[3]]
		}

		// A path comment on the first line is either the path or a duplicate of it.
		firstLine, rest, _ := strings.Cut(body, "\n")
		if pm := innerPathCommentPattern.FindStringSubmatch(strings.TrimRight(firstLine, "\r")); pm != nil {
			if path == "" {
				path = pm[1]
			}
			body = rest
		}

		content := strings.TrimSpace(body)
		if charCount(content) < cfg.MinBlockLength {
			continue
		}

		if path == "" {
			path = pathBefore(buffer, m[0], cfg.LookbehindChars)
		}

		if path != "" {
			files.add(path, content)
			continue
		}

		guessed, kind := guessPath(content, i)
		recordGuess(kind)
		files.addGuessed(guessed, content, i)
	}

	return files.result()
}

// pathMarkers recovers files from bare "// path" markers with no fences.
func pathMarkers(buffer string, cfg config.EmergencyConfig) map[string]string {
	files := newFileSet()
	markers := markerPattern.FindAllStringSubmatchIndex(buffer, -1)

	for i, m := range markers {
		end := len(buffer)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}

		region := stripFences(buffer[m[1]:end])
		region = cutAtProse(region, cfg.BoundaryGrace)
		content := strings.TrimSpace(region)
		if charCount(content) <= cfg.MinBlockLength {
			continue
		}

		firstLine, _, _ := strings.Cut(content, "\n")
		if !leadingStatementPattern.MatchString(strings.TrimSpace(firstLine)) {
			continue
		}

		files.add(withRootPrefix(buffer[m[2]:m[3]], cfg.RootPrefix), content)
	}

	return files.result()
}

// pathBefore returns the last path-shaped token within window characters
// before pos.
func pathBefore(buffer string, pos, window int) string {
	start := pos
	for n := 0; n < window && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(buffer[:start])
		start -= size
	}
	found := nearbyPathPattern.FindAllStringSubmatch(buffer[start:pos], -1)
	if len(found) == 0 {
		return ""
	}
	return found[len(found)-1][1]
}

// cutAtProse trims region at the earliest prose boundary at least grace
// characters in.
func cutAtProse(region string, grace int) string {
	cut := len(region)
	for _, re := range proseBoundaries {
		for _, loc := range re.FindAllStringIndex(region, -1) {
			if charCount(region[:loc[0]]) < grace {
				continue
			}
			if loc[0] < cut {
				cut = loc[0]
			}
			break
		}
	}
	return region[:cut]
}

// stripFences drops an opening fence line left dangling at the start of a
// region and a closing fence at its end.
func stripFences(region string) string {
	trimmed := strings.TrimLeft(region, " \t\r\n")
	if strings.HasPrefix(trimmed, fence) {
		if _, rest, ok := strings.Cut(trimmed, "\n"); ok {
			region = rest
		} else {
			region = ""
		}
	}
	region = strings.TrimRight(region, " \t\r\n")
	region = strings.TrimSuffix(region, fence)
	return region
}

// withRootPrefix places a bare marker path under the project source root.
func withRootPrefix(path, prefix string) string {
	path = recovery.NormalizePath(path)
	if prefix == "" || strings.HasPrefix(path, prefix) {
		return path
	}
	return prefix + path
}

func charCount(s string) int {
	return utf8.RuneCountInString(s)
}
