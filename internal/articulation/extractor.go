// Package articulation turns structured model output into generated files.
// The expected protocol is a JSON envelope {"files":[{"path":..,"content":..}]};
// when the envelope was cut short, the byte-level scanner still separates
// files whose content string closed from files that were truncated mid-string.
package articulation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"genrecover/internal/logging"
	"genrecover/internal/recovery"
)

// Parse methods, from most to least trustworthy.
const (
	MethodJSON         = "json"
	MethodJSONMarkdown = "json_markdown"
	MethodJSONEmbedded = "json_extracted"
	MethodScan         = "scan"
	MethodNone         = "none"
)

var (
	pathKeyPattern    = regexp.MustCompile(`"(?:path|filePath|file_path|filename)"\s*:\s*"`)
	contentKeyPattern = regexp.MustCompile(`"content"\s*:\s*"`)
)

// fileEntry is one element of the envelope's file array.
type fileEntry struct {
	Path     string `json:"path"`
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// fileEnvelope accepts "files" as either an array of entries or a path map.
type fileEnvelope struct {
	Files json.RawMessage `json:"files"`
}

// ParseResult is the outcome of Parse plus how it was obtained.
type ParseResult struct {
	Outcome  recovery.ExtractionOutcome
	Method   string
	Warnings []string
}

// FileExtractor is the default recovery.Extractor.
type FileExtractor struct {
	AllowMarkdownWrapped bool
}

// NewFileExtractor creates a FileExtractor with default settings.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{AllowMarkdownWrapped: true}
}

// Extract implements recovery.Extractor.
func (fx *FileExtractor) Extract(buffer string, currentFiles map[string]string) recovery.ExtractionOutcome {
	return fx.Parse(buffer, currentFiles).Outcome
}

// Parse classifies the files in buffer as complete or partial.
func (fx *FileExtractor) Parse(buffer string, currentFiles map[string]string) ParseResult {
	// 1. The whole buffer is the envelope.
	if files, err := parseEnvelope(buffer); err == nil {
		return fx.finish(files, MethodJSON, currentFiles)
	}

	// 2. The envelope is wrapped in a ```json fence.
	if fx.AllowMarkdownWrapped {
		if files, err := parseEnvelope(unwrapMarkdown(buffer)); err == nil {
			return fx.finish(files, MethodJSONMarkdown, currentFiles)
		}
	}

	// 3. Complete envelopes embedded in prose, then a string scan of whatever
	// no envelope accounted for.
	c := newCollector(currentFiles)
	var covered []span
	for _, sp := range findJSONCandidateSpans(buffer) {
		files, err := parseEnvelope(buffer[sp.start:sp.end])
		if err != nil {
			continue
		}
		for path, content := range files {
			c.complete(path, content)
		}
		covered = append(covered, sp)
	}

	method := MethodNone
	if len(covered) > 0 {
		method = MethodJSONEmbedded
	}

	scanned := 0
	for _, region := range uncovered(len(buffer), covered) {
		scanned += scanPairs(buffer[region.start:region.end], region.start, c)
	}
	if scanned > 0 {
		method = MethodScan
	}

	var warnings []string
	if len(c.partial) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d files truncated mid-content", len(c.partial)))
	}

	logging.ArticulationDebug("parsed %d complete, %d partial files via %s", len(c.done), len(c.partial), method)
	return ParseResult{Outcome: c.outcome(), Method: method, Warnings: warnings}
}

func (fx *FileExtractor) finish(files map[string]string, method string, currentFiles map[string]string) ParseResult {
	c := newCollector(currentFiles)
	for path, content := range files {
		c.complete(path, content)
	}
	logging.ArticulationDebug("parsed %d files via %s", len(c.done), method)
	return ParseResult{Outcome: c.outcome(), Method: method}
}

// parseEnvelope decodes a complete envelope and returns its files.
func parseEnvelope(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)

	var env fileEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, err
	}
	if len(env.Files) == 0 {
		return nil, fmt.Errorf("missing files field")
	}

	var entries []fileEntry
	if err := json.Unmarshal(env.Files, &entries); err == nil {
		files := make(map[string]string, len(entries))
		for _, e := range entries {
			p := e.Path
			if p == "" {
				p = e.FilePath
			}
			if p == "" {
				continue
			}
			files[p] = e.Content
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no file entries")
		}
		return files, nil
	}

	var byPath map[string]string
	if err := json.Unmarshal(env.Files, &byPath); err != nil {
		return nil, fmt.Errorf("unsupported files shape: %w", err)
	}
	if len(byPath) == 0 {
		return nil, fmt.Errorf("no file entries")
	}
	return byPath, nil
}

// unwrapMarkdown handles ```json ... ``` wrapping.
func unwrapMarkdown(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// uncovered returns the gaps between sorted, non-overlapping spans.
func uncovered(n int, covered []span) []span {
	var out []span
	pos := 0
	for _, sp := range covered {
		if sp.start > pos {
			out = append(out, span{start: pos, end: sp.start})
		}
		pos = sp.end
	}
	if pos < n {
		out = append(out, span{start: pos, end: n})
	}
	return out
}

// scanPairs walks "path"/"content" string pairs in region. Either key may come
// first within an entry. A content string that closes is complete; one cut off
// by the end of region is partial and keeps its raw escaped text. offset
// locates region within the full buffer. Returns the number of files found.
func scanPairs(region string, offset int, c *collector) int {
	found := 0
	var (
		path    string
		pending *contentValue // content seen before its entry's path
		lastEnd int
	)

	for _, k := range fileKeys(region) {
		if k.start < lastEnd {
			continue
		}
		if (path != "" || pending != nil) && !sameEntry(region[lastEnd:k.start]) {
			path, pending = "", nil
		}

		open := k.end - 1
		end := scanString(region, open)

		if k.isPath {
			if end == -1 {
				break
			}
			lastEnd = end
			p, err := decodeString(region[open:end])
			if err != nil || p == "" {
				path, pending = "", nil
				continue
			}
			if pending != nil {
				pending.store(c, p)
				found++
				path, pending = "", nil
				continue
			}
			path = p
			continue
		}

		if end == -1 {
			if path != "" {
				c.truncated(path, region[open+1:], offset+open+1)
				found++
			}
			break
		}
		lastEnd = end
		v := contentValue{quoted: region[open:end], at: offset + open + 1}
		if path != "" {
			v.store(c, path)
			found++
			path = ""
			continue
		}
		pending = &v
	}

	return found
}

type fileKey struct {
	start, end int
	isPath     bool
}

// fileKeys returns path and content key matches in buffer order.
func fileKeys(region string) []fileKey {
	var keys []fileKey
	for _, loc := range pathKeyPattern.FindAllStringIndex(region, -1) {
		keys = append(keys, fileKey{start: loc[0], end: loc[1], isPath: true})
	}
	for _, loc := range contentKeyPattern.FindAllStringIndex(region, -1) {
		keys = append(keys, fileKey{start: loc[0], end: loc[1]})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].start < keys[j].start })
	return keys
}

// sameEntry reports whether gap, the text between two keys, stays inside one
// JSON object.
func sameEntry(gap string) bool {
	for i := 0; i < len(gap); i++ {
		switch gap[i] {
		case '"':
			end := scanString(gap, i)
			if end == -1 {
				return true
			}
			i = end - 1
		case '{', '}':
			return false
		}
	}
	return true
}

// contentValue is a closed content string literal and where its text starts.
type contentValue struct {
	quoted string
	at     int
}

func (v contentValue) store(c *collector, path string) {
	content, err := decodeString(v.quoted)
	if err != nil {
		c.truncated(path, v.quoted[1:len(v.quoted)-1], v.at)
		return
	}
	c.complete(path, content)
}

func decodeString(quoted string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(quoted), &s); err != nil {
		return "", err
	}
	return s, nil
}

// collector accumulates files under resolved, normalized paths.
type collector struct {
	current map[string]string
	done    map[string]string
	partial map[string]recovery.PartialFile
}

func newCollector(current map[string]string) *collector {
	return &collector{
		current: current,
		done:    make(map[string]string),
		partial: make(map[string]recovery.PartialFile),
	}
}

func (c *collector) complete(path, content string) {
	key := resolvePath(path, c.current)
	if key == "" {
		return
	}
	c.done[key] = content
	delete(c.partial, key)
}

func (c *collector) truncated(path, raw string, offset int) {
	key := resolvePath(path, c.current)
	if key == "" {
		return
	}
	if _, ok := c.done[key]; ok {
		return
	}
	at := offset
	c.partial[key] = recovery.PartialFile{Content: raw, TruncatedAt: &at}
}

func (c *collector) outcome() recovery.ExtractionOutcome {
	return recovery.ExtractionOutcome{CompleteFiles: c.done, PartialFiles: c.partial}
}

// resolvePath normalizes p and maps a bare file name onto the single existing
// file that shares it.
func resolvePath(p string, current map[string]string) string {
	p = recovery.NormalizePath(p)
	if p == "" || strings.Contains(p, "/") {
		return p
	}
	match := ""
	for existing := range current {
		if recovery.BaseName(existing) != p {
			continue
		}
		if match != "" {
			return p
		}
		match = recovery.NormalizePath(existing)
	}
	if match != "" {
		return match
	}
	return p
}
