// Package emergency recovers generated files straight from raw model text when
// no structured parse of the response succeeded. It knows two textual
// grammars: fenced code blocks and bare "// path" markers.
package emergency

import (
	"unicode/utf8"

	"genrecover/internal/config"
	"genrecover/internal/logging"
	"genrecover/internal/recovery"
)

// Strategy is one extraction grammar. It returns an empty map when it finds
// nothing.
type Strategy struct {
	Name string
	Run  func(buffer string, cfg config.EmergencyConfig) map[string]string
}

// DefaultStrategies lists the grammars in priority order. Later strategies
// only run when every earlier one came back empty.
var DefaultStrategies = []Strategy{
	{Name: "fenced", Run: fencedBlocks},
	{Name: "markers", Run: pathMarkers},
}

// Result carries the recovered files and the grammar that produced them.
type Result struct {
	Files  map[string]string
	Method string
}

// Extractor runs the strategies against raw text.
type Extractor struct {
	cfg        config.EmergencyConfig
	strategies []Strategy
}

// NewExtractor creates an extractor using DefaultStrategies.
func NewExtractor(cfg config.EmergencyConfig) *Extractor {
	return &Extractor{cfg: cfg, strategies: DefaultStrategies}
}

// WithStrategies returns a copy of x that tries strategies instead.
func (x *Extractor) WithStrategies(strategies ...Strategy) *Extractor {
	return &Extractor{cfg: x.cfg, strategies: strategies}
}

var defaultExtractor = NewExtractor(config.DefaultEmergencyConfig())

// Extract recovers files from buffer using the default thresholds.
// Returns nil when nothing could be recovered.
func Extract(buffer string, force bool) map[string]string {
	return defaultExtractor.Extract(buffer, force)
}

// Extract recovers path → content from buffer. Unless force is set, buffers
// shorter than the configured minimum (in characters) are ignored. Returns nil when nothing
// could be recovered.
func (x *Extractor) Extract(buffer string, force bool) map[string]string {
	return x.ExtractDetailed(buffer, force).Files
}

// ExtractDetailed is Extract plus the name of the grammar that matched.
func (x *Extractor) ExtractDetailed(buffer string, force bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryEmergency).Error("extraction aborted: %v", r)
			res = Result{}
		}
	}()

	if n := utf8.RuneCountInString(buffer); !force && n < x.cfg.MinBufferLength {
		logging.EmergencyDebug("buffer below emergency minimum: %d < %d characters", n, x.cfg.MinBufferLength)
		return Result{}
	}

	for _, s := range x.strategies {
		files := s.Run(buffer, x.cfg)
		if len(files) > 0 {
			logging.Emergency("%s strategy recovered %d files", s.Name, len(files))
			return Result{Files: files, Method: s.Name}
		}
		logging.EmergencyDebug("%s strategy found nothing", s.Name)
	}

	return Result{}
}

func recordGuess(kind string) {
	logging.EmergencyDebug("path guessed by %s rule", kind)
}

// fileSet collects recovered files under normalized keys. When two blocks
// claim the same path the longer body is kept; ties keep the first.
type fileSet struct {
	files map[string]string
}

func newFileSet() *fileSet {
	return &fileSet{files: make(map[string]string)}
}

func (fs *fileSet) add(path, content string) {
	key := recovery.NormalizePath(path)
	if key == "" {
		return
	}
	if prev, ok := fs.files[key]; ok && len(prev) >= len(content) {
		logging.EmergencyDebug("duplicate block for %s ignored", key)
		return
	}
	fs.files[key] = content
}

// addGuessed stores content under a guessed path, moving it to the indexed
// fallback when the guess is already taken.
func (fs *fileSet) addGuessed(path, content string, index int) {
	if _, taken := fs.files[recovery.NormalizePath(path)]; taken {
		path = fallbackPath(index)
	}
	fs.add(path, content)
}

func (fs *fileSet) result() map[string]string {
	return fs.files
}
