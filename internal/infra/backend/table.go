package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
)

// Table is the evidence table behind the PostgREST endpoint. Row-level
// security on the backend scopes every call to the token's user.
type Table struct {
	c    *Client
	name string
}

func NewTable(c *Client, name string) *Table {
	return &Table{c: c, name: name}
}

var _ evidence.Table = (*Table)(nil)

func (t *Table) ListByUser(ctx context.Context, userID string) ([]evidence.Evidence, error) {
	var rows []evidence.Evidence
	err := t.c.sendJSON(ctx, request{
		op:     "list evidence",
		method: http.MethodGet,
		path:   "/rest/v1/" + t.name,
		query: url.Values{
			"select":  {"*"},
			"user_id": {"eq." + userID},
			"order":   {"created_at.desc"},
		},
	}, nil, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *Table) Insert(ctx context.Context, rec evidence.NewRecord) error {
	header := http.Header{}
	header.Set("Prefer", "return=minimal")
	return t.c.sendJSON(ctx, request{
		op:     "insert evidence",
		method: http.MethodPost,
		path:   "/rest/v1/" + t.name,
		header: header,
	}, rec, nil)
}

func (t *Table) Delete(ctx context.Context, id string) error {
	return t.c.sendJSON(ctx, request{
		op:     "delete evidence",
		method: http.MethodDelete,
		path:   "/rest/v1/" + t.name,
		query:  url.Values{"id": {"eq." + id}},
	}, nil, nil)
}
