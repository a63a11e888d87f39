package evidence

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimai/reclaim/internal/application"
	domain "github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

type fakeTable struct {
	rows      []domain.Evidence
	inserted  []domain.NewRecord
	listErr   error
	insertErr error
	deleteErr error
	calls     int
}

func (f *fakeTable) ListByUser(_ context.Context, userID string) ([]domain.Evidence, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Evidence
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTable) Insert(_ context.Context, rec domain.NewRecord) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeTable) Delete(_ context.Context, id string) error {
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

type fakeFiles struct {
	objects   map[string]string
	uploadErr error
	removeErr error
	calls     int
}

func (f *fakeFiles) Upload(_ context.Context, path string, body io.Reader, _ int64, _ string) error {
	f.calls++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	b, _ := io.ReadAll(body)
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[path] = string(b)
	return nil
}

func (f *fakeFiles) Remove(_ context.Context, paths ...string) error {
	f.calls++
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, p := range paths {
		delete(f.objects, p)
	}
	return nil
}

var uploadTime = time.UnixMilli(1714560000000)

func newService(tbl *fakeTable, files *fakeFiles) *Service {
	return &Service{Table: tbl, Files: files, Clock: application.FixedClock{T: uploadTime}}
}

func TestUploadWritesObjectThenRow(t *testing.T) {
	tbl, files := &fakeTable{}, &fakeFiles{}
	svc := newService(tbl, files)

	rec, err := svc.Upload(context.Background(), "u1", &File{
		Name:        "../chat log (1).png",
		ContentType: "image/png",
		Size:        3,
		Body:        strings.NewReader("png"),
	})
	require.NoError(t, err)

	assert.Equal(t, "u1/1714560000000-..chatlog1.png", rec.FilePath)
	assert.Equal(t, "png", files.objects[rec.FilePath])
	require.Len(t, tbl.inserted, 1)
	assert.Equal(t, domain.NewRecord{UserID: "u1", FileName: "../chat log (1).png", FilePath: rec.FilePath, FileType: "image/png"}, tbl.inserted[0])
	assert.Regexp(t, regexp.MustCompile(`^u1/\d+-[A-Za-z0-9._-]+$`), rec.FilePath)
}

func TestUploadWithoutFileMakesNoCalls(t *testing.T) {
	tbl, files := &fakeTable{}, &fakeFiles{}
	svc := newService(tbl, files)

	for _, f := range []*File{nil, {Name: "empty.txt", Size: 0, Body: strings.NewReader("")}} {
		_, err := svc.Upload(context.Background(), "u1", f)
		require.Error(t, err)
		assert.True(t, failure.Is(err, failure.ErrValidation))
	}
	assert.Zero(t, tbl.calls)
	assert.Zero(t, files.calls)
}

func TestUploadStorageFailureSkipsInsert(t *testing.T) {
	tbl := &fakeTable{}
	files := &fakeFiles{uploadErr: failure.Backend("upload file", 413, "Payload too large")}
	svc := newService(tbl, files)

	_, err := svc.Upload(context.Background(), "u1", &File{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	require.Error(t, err)
	assert.Equal(t, "Payload too large", failure.Message(err))
	assert.Zero(t, tbl.calls)
}

func TestUploadInsertFailureReportsOrphan(t *testing.T) {
	tbl := &fakeTable{insertErr: errors.New("insert denied")}
	files := &fakeFiles{}
	svc := newService(tbl, files)

	_, err := svc.Upload(context.Background(), "u1", &File{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	var orphan *domain.OrphanedUploadError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, "u1/1714560000000-a.txt", orphan.Path)
	assert.Contains(t, files.objects, orphan.Path)
}

func TestListWrapsFetchError(t *testing.T) {
	svc := newService(&fakeTable{listErr: errors.New("timeout")}, &fakeFiles{})

	_, err := svc.List(context.Background(), "u1")
	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "u1", fe.UserID)
}

func TestRemoveDeletesRowEvenWhenStorageFails(t *testing.T) {
	tbl := &fakeTable{rows: []domain.Evidence{{ID: "e1", UserID: "u1"}, {ID: "e2", UserID: "u1"}}}
	files := &fakeFiles{removeErr: errors.New("object locked")}
	svc := newService(tbl, files)

	out := svc.Remove(context.Background(), "e1", "u1/1-a.txt")
	assert.True(t, out.Partial())
	assert.Error(t, out.Err())

	items, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, domain.IDs(items))
}

func TestRemoveSuccess(t *testing.T) {
	tbl := &fakeTable{rows: []domain.Evidence{{ID: "e1", UserID: "u1"}}}
	files := &fakeFiles{objects: map[string]string{"u1/1-a.txt": "a"}}
	svc := newService(tbl, files)

	out := svc.Remove(context.Background(), "e1", "u1/1-a.txt")
	require.NoError(t, out.Err())
	assert.Empty(t, files.objects)
	assert.Empty(t, tbl.rows)
}
