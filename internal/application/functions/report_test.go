package functions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

func analyzed(id, user string) evidence.Evidence {
	return evidence.Evidence{ID: id, UserID: user, FileName: id + ".txt", FilePath: user + "/" + id, FileType: "text/plain", AISummary: "s", AISeverity: evidence.SeverityLow}
}

func TestGenerateStoresOwnedAnalyzedOnly(t *testing.T) {
	pending := evidence.Evidence{ID: "e3", UserID: "u1", FileName: "p.png"}
	repo := newFakeRepo(analyzed("e1", "u1"), analyzed("e2", "u2"), pending)
	art := &fakeArtifacts{}
	svc := &ReportService{Records: repo, Artifacts: art, Expiry: time.Hour, Clock: application.FixedClock{T: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}}

	url, err := svc.Generate(context.Background(), "u1", evidence.ReportRequest{EvidenceIDs: []string{"e1", "e2", "e3", "nope"}})
	require.NoError(t, err)
	require.Len(t, art.keys, 1)
	assert.True(t, strings.HasPrefix(art.keys[0], "u1/reports/"))
	assert.True(t, strings.HasSuffix(art.keys[0], ".pdf"))
	assert.Positive(t, art.sizes[0])
	assert.Equal(t, "https://files.test/"+art.keys[0]+"?expires=3600", url)
}

func TestGenerateNothingAnalyzed(t *testing.T) {
	art := &fakeArtifacts{}
	svc := &ReportService{Records: newFakeRepo(analyzed("e2", "u2")), Artifacts: art}

	_, err := svc.Generate(context.Background(), "u1", evidence.ReportRequest{EvidenceIDs: []string{"e2"}})
	assert.True(t, failure.Is(err, failure.ErrValidation))
	assert.Empty(t, art.keys)
}

func TestGenerateEmptyIDs(t *testing.T) {
	svc := &ReportService{Records: newFakeRepo(), Artifacts: &fakeArtifacts{}}

	_, err := svc.Generate(context.Background(), "u1", evidence.ReportRequest{EvidenceIDs: []string{"", " "}})
	assert.True(t, failure.Is(err, failure.ErrValidation))
}

func TestGenerateStoreFailure(t *testing.T) {
	svc := &ReportService{Records: newFakeRepo(analyzed("e1", "u1")), Artifacts: &fakeArtifacts{putErr: errors.New("bucket gone")}}

	_, err := svc.Generate(context.Background(), "u1", evidence.ReportRequest{EvidenceIDs: []string{"e1"}})
	assert.ErrorContains(t, err, "bucket gone")
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "u1/reports/r1.pdf", ReportKey("u1", "r1"))
}
