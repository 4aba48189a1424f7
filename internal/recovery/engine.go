package recovery

import (
	"fmt"
	"unicode/utf8"

	"genrecover/internal/config"
	"genrecover/internal/logging"
)

// Engine classifies response buffers into recovery results.
// An Engine holds only immutable configuration and is safe for concurrent use.
type Engine struct {
	extractor Extractor
	cfg       config.RecoveryConfig
}

// NewEngine creates an engine that asks extractor for complete/partial files.
func NewEngine(extractor Extractor, cfg config.RecoveryConfig) *Engine {
	return &Engine{extractor: extractor, cfg: cfg}
}

// Analyze inspects buffer and returns the next action for the orchestrator.
// It never panics; anything indeterminate yields ActionNone.
func (e *Engine) Analyze(buffer string, currentFiles map[string]string, plan *FilePlan) (result RecoveryResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryRecovery).Error("analysis aborted: %v", r)
			result = none()
		}
	}()

	// 1. Too little text to extract anything safely.
	if n := utf8.RuneCountInString(buffer); n < e.cfg.MinBufferLength {
		logging.RecoveryDebug("buffer too short: %d < %d characters", n, e.cfg.MinBufferLength)
		return none()
	}

	// 2. Ask the structured extractor.
	if e.extractor == nil {
		return none()
	}
	outcome := e.extractor.Extract(buffer, currentFiles)
	complete, partial := outcome.CompleteFiles, outcome.PartialFiles
	if len(complete) == 0 && len(partial) == 0 {
		logging.RecoveryDebug("extractor found no files in %d bytes", len(buffer))
		return none()
	}

	if plan != nil {
		// 3. Planned files still outstanding.
		if missing := plan.missing(complete); len(missing) > 0 {
			logging.Recovery("continuation: %d planned files missing", len(missing))
			return continuation(plan, complete, missing)
		}

		// 4. Everything the plan asked for is here and nothing is half-written.
		if len(partial) == 0 && len(plan.unrecovered(complete)) == 0 {
			logging.Recovery("plan satisfied with %d files", len(complete))
			return success(complete)
		}
	}

	// 5. Doubt the response when something was cut off.
	if len(partial) > 0 || (plan != nil && len(plan.unrecovered(complete)) > 0) {
		if e.suspicious(complete, partial) && plan != nil && len(plan.Create) > 0 {
			return e.regenerate(plan, complete)
		}
	}

	// 6. Take what we have.
	if len(complete) > 0 {
		return success(complete)
	}

	// 7. Salvage partial files.
	fixed := FixPartialFiles(partial, e.cfg.MinPartialLength)
	if len(fixed) > 0 {
		logging.Recovery("salvaged %d of %d partial files", len(fixed), len(partial))
		return RecoveryResult{
			Action:         ActionPartial,
			Files:          fixed,
			Message:        fmt.Sprintf("Recovered %d partial files", len(fixed)),
			RecoveredCount: len(fixed),
		}
	}

	return none()
}

// suspicious reports whether any complete or partial file looks truncated.
func (e *Engine) suspicious(complete map[string]string, partial map[string]PartialFile) bool {
	for path, content := range complete {
		if Inspect(path, content).Suspicious(e.cfg) {
			logging.RecoveryDebug("suspicious complete file: %s", path)
			return true
		}
	}
	for path, pf := range partial {
		if Inspect(path, pf.Content).Suspicious(e.cfg) {
			logging.RecoveryDebug("suspicious partial file: %s", path)
			return true
		}
	}
	return false
}

// regenerate splits complete files into good ones and ones to request again.
func (e *Engine) regenerate(plan *FilePlan, complete map[string]string) RecoveryResult {
	var flagged []string
	for _, path := range sortedKeys(complete) {
		if Inspect(path, complete[path]).Truncated(e.cfg) {
			flagged = append(flagged, path)
		}
	}
	if len(flagged) == 0 {
		// Nothing individually broken: the tail of the plan is the likeliest casualty.
		flagged = []string{plan.Create[len(plan.Create)-1]}
	}

	drop := make(map[string]bool, len(flagged))
	for _, f := range flagged {
		drop[NormalizePath(f)] = true
	}
	good := make(map[string]string, len(complete))
	for path, content := range complete {
		if !drop[NormalizePath(path)] {
			good[path] = content
		}
	}

	logging.Recovery("regenerating %d files, keeping %d", len(flagged), len(good))

	planned := len(plan.Create)
	goodPaths := sortedKeys(good)
	return RecoveryResult{
		Action:            ActionContinuation,
		GoodFiles:         good,
		FilesToRegenerate: flagged,
		GenerationMeta: &GenerationMeta{
			TotalFilesPlanned: planned,
			FilesInThisBatch:  goodPaths,
			CompletedFiles:    mergeUnique(plan.Completed, goodPaths),
			RemainingFiles:    flagged,
			CurrentBatch:      1,
			TotalBatches:      batches(planned),
			IsComplete:        false,
		},
		Message:        fmt.Sprintf("Generating... %d/%d files", len(good), plan.total()),
		RecoveredCount: len(good),
	}
}

func continuation(plan *FilePlan, complete map[string]string, missing []string) RecoveryResult {
	planned := len(plan.Create)
	have := normalizedKeys(complete)
	var covered []string
	for _, c := range plan.pending() {
		if have[NormalizePath(c)] {
			covered = append(covered, c)
		}
	}

	return RecoveryResult{
		Action: ActionContinuation,
		Files:  complete,
		GenerationMeta: &GenerationMeta{
			TotalFilesPlanned: planned,
			FilesInThisBatch:  sortedKeys(complete),
			CompletedFiles:    mergeUnique(plan.Completed, covered),
			RemainingFiles:    missing,
			CurrentBatch:      1,
			TotalBatches:      batches(planned),
			IsComplete:        false,
		},
		Message:        fmt.Sprintf("Generating... %d/%d files", len(complete), plan.total()),
		RecoveredCount: len(complete),
	}
}

func success(complete map[string]string) RecoveryResult {
	return RecoveryResult{
		Action:         ActionSuccess,
		Files:          complete,
		Message:        fmt.Sprintf("Generated %d files!", len(complete)),
		RecoveredCount: len(complete),
	}
}

// mergeUnique concatenates lists, dropping paths already seen.
func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, p := range list {
			key := NormalizePath(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

func none() RecoveryResult {
	return RecoveryResult{Action: ActionNone}
}

// Analyze runs an engine with default thresholds over buffer.
func Analyze(extractor Extractor, buffer string, currentFiles map[string]string, plan *FilePlan) RecoveryResult {
	return NewEngine(extractor, config.DefaultRecoveryConfig()).Analyze(buffer, currentFiles, plan)
}
