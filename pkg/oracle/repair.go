package oracle

import (
	"context"

	"github.com/charmbracelet/log"

	"mythforge/pkg/inference"
	"mythforge/pkg/metrics"
	"mythforge/pkg/utils"
)

// Repairer asks the generator, once, to reconcile a label with a narrative that never mentions it.
type Repairer struct {
	Generator   inference.Generator
	Parser      Parser
	System      string
	Temperature float64
	Metrics     *metrics.Pipeline
	Logger      *log.Logger
}

// Repair issues exactly one corrective generation for rawOriginal and re-parses it.
// ok is false when the call failed or the new output carries no label; callers then keep
// their pre-repair result. Repair never validates or retries.
func (r *Repairer) Repair(ctx context.Context, rawOriginal string) (ParseResult, bool) {
	outcome := r.Generator.Generate(ctx, r.System, RepairPrompt(rawOriginal), r.Temperature)
	r.Metrics.Generation("repair", string(outcome.Reason))
	if !outcome.OK() {
		r.Logger.Warn("repair generation failed", "reason", outcome.Reason, "error", outcome.Err)
		return ParseResult{}, false
	}

	res := r.Parser.Parse(outcome.Text)
	if !res.HasLabel {
		r.Logger.Warn("repair output has no label", "output", utils.LimitStr(outcome.Text, 200))
		return res, false
	}

	removed, added := utils.ChangedWords(rawOriginal, outcome.Text)
	r.Logger.Debug("repair rewrote narrative", "label", res.Label, "removed_words", removed, "added_words", added)
	return res, true
}
