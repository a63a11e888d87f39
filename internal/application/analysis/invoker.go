package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

const defaultFunction = "analyze-evidence"

// Invoker triggers the remote analysis function. Persisting the result on
// the evidence row is the function's job.
type Invoker struct {
	Functions evidence.FunctionInvoker
	Name      string
	Clock     application.Clock
}

func (i *Invoker) name() string {
	if i.Name == "" {
		return defaultFunction
	}
	return i.Name
}

// Analyze runs one analysis. Invocation failures, error envelopes and empty
// results all come back as a single error; nothing is retried.
func (i *Invoker) Analyze(ctx context.Context, evidenceID, filePath string) (evidence.Analysis, error) {
	if strings.TrimSpace(evidenceID) == "" || strings.TrimSpace(filePath) == "" {
		return evidence.Analysis{}, failure.Validation("Evidence id and file path are required for analysis")
	}

	op := "analyze evidence"
	var resp evidence.AnalyzeResponse
	err := i.Functions.Invoke(ctx, i.name(), evidence.AnalyzeRequest{EvidenceID: evidenceID, FilePath: filePath}, &resp)
	if err != nil {
		return evidence.Analysis{}, err
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return evidence.Analysis{}, failure.Backend(op, 0, msg)
	}
	if resp.Result == nil {
		return evidence.Analysis{}, failure.Backend(op, 0, "Analysis returned no result")
	}
	return i.normalize(*resp.Result)
}

func (i *Invoker) normalize(p evidence.AnalysisPayload) (evidence.Analysis, error) {
	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		return evidence.Analysis{}, failure.Backend("analyze evidence", 0, "Analysis returned an empty summary")
	}

	labels := make([]string, 0, len(p.Labels))
	for _, l := range p.Labels {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}

	sev := p.Severity
	if !sev.Valid() && p.Score != nil {
		sev = evidence.SeverityFromScore(*p.Score)
	}

	at, err := time.Parse(time.RFC3339, strings.TrimSpace(p.AnalyzedAt))
	if err != nil {
		clock := i.Clock
		if clock == nil {
			clock = application.SystemClock{}
		}
		at = clock.Now()
	}

	return evidence.Analysis{
		Summary:    summary,
		Labels:     labels,
		Severity:   sev,
		Score:      p.Score,
		AnalyzedAt: at.UTC(),
	}, nil
}
