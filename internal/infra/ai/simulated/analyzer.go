// Package simulated is the default analyzer: it produces a plausible
// analysis without calling a model.
package simulated

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/reclaimai/reclaim/internal/domain/ai"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/infra/ai/prompt"
)

const (
	minScore = 0.45
	maxScore = 0.85

	summary = "This is a simulated AI summary for the evidence provided. The analysis suggests the content is related to potential digital harassment."
)

var baseLabels = []string{"digital-harassment", "simulated-analysis"}

type Analyzer struct {
	Float64 func() float64
	Now     func() time.Time
}

var _ ai.Client = (*Analyzer)(nil)

func New() *Analyzer {
	return &Analyzer{Float64: rand.Float64, Now: time.Now}
}

// Analyze draws a score in [0.45, 0.85), raised by whatever content cues
// the text matches and capped at 1.
func (a *Analyzer) Analyze(ctx context.Context, in ai.Input) (evidence.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return evidence.Analysis{}, err
	}

	score := minScore + a.Float64()*(maxScore-minScore)
	labels := append([]string(nil), baseLabels...)
	if in.HasText() {
		labels = append(labels, "text-evidence")
	} else {
		labels = append(labels, "file-evidence")
	}
	for _, m := range prompt.DetectCues(in.Text) {
		labels = append(labels, m.Label)
		score += m.Weight
	}
	score = math.Min(1, math.Round(score*100)/100)

	return evidence.Analysis{
		Summary:    summary,
		Labels:     labels,
		Severity:   evidence.SeverityFromScore(score),
		Score:      &score,
		AnalyzedAt: a.Now().UTC(),
	}, nil
}
