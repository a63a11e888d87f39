package report

import (
	"context"
	"strings"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

const defaultFunction = "generate-report"

// Invoker asks the remote report function for a document covering a set of
// analyzed evidence. No rendering happens here.
type Invoker struct {
	Functions evidence.FunctionInvoker
	Name      string
	Clock     application.Clock
}

func (i *Invoker) Generate(ctx context.Context, evidenceIDs []string) (evidence.Report, error) {
	ids := make([]string, 0, len(evidenceIDs))
	seen := make(map[string]struct{}, len(evidenceIDs))
	for _, id := range evidenceIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return evidence.Report{}, failure.Validation("Please analyze at least one piece of evidence before generating a report")
	}

	name := i.Name
	if name == "" {
		name = defaultFunction
	}
	var resp evidence.ReportResponse
	if err := i.Functions.Invoke(ctx, name, evidence.ReportRequest{EvidenceIDs: ids}, &resp); err != nil {
		return evidence.Report{}, err
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return evidence.Report{}, failure.Backend("generate report", 0, msg)
	}
	if strings.TrimSpace(resp.ReportURL) == "" {
		return evidence.Report{}, failure.Backend("generate report", 0, "Report function returned no URL")
	}

	clock := i.Clock
	if clock == nil {
		clock = application.SystemClock{}
	}
	return evidence.Report{URL: resp.ReportURL, GeneratedAt: clock.Now()}, nil
}
