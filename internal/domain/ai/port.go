package ai

import (
	"context"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
)

// Input is what an analyzer sees of one evidence item.
type Input struct {
	FileName string
	FileType string
	Text     string
}

// HasText reports whether extracted content is available.
func (in Input) HasText() bool { return in.Text != "" }

type Client interface {
	Analyze(ctx context.Context, in Input) (evidence.Analysis, error)
}
