package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "anon-key", 5*time.Second, nil)
}

func TestSignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body.Email)

		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_at":1700000000,"user":{"id":"u1","email":"ana@example.com"}}`)
	})

	s, err := NewAuth(c).SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "rt", s.RefreshToken)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, time.Unix(1700000000, 0), s.ExpiresAt)
}

func TestSignInFailureCarriesBackendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	})

	_, err := NewAuth(c).SignInWithPassword(context.Background(), "a@b.c", "bad")
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ErrBackend))
	assert.Equal(t, "Invalid login credentials", failure.Message(err))
}

func TestSignUpWithoutSessionNeedsConfirmation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"u2","email":"new@example.com"}`)
	})

	s, err := NewAuth(c).SignUp(context.Background(), "new@example.com", "secret")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRefreshReadsExpiryFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u3",
		"exp": exp.Unix(),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "refresh_token": "rt2"})
	})

	s, err := NewAuth(c).Refresh(context.Background(), "rt1")
	require.NoError(t, err)
	assert.Equal(t, "u3", s.User.ID)
	assert.True(t, exp.Equal(s.ExpiresAt))
}

func TestSignOutUsesGivenToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, NewAuth(c).SignOut(context.Background(), "user-token"))
}

func TestStorageUploadAndRemove(t *testing.T) {
	var uploaded string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/storage/v1/object/evidence-files/u1/1700000000000-shot.png", r.URL.Path)
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			uploaded = string(b)
			_, _ = io.WriteString(w, `{"Key":"evidence-files/u1/1700000000000-shot.png"}`)
		case http.MethodDelete:
			assert.Equal(t, "/storage/v1/object/evidence-files", r.URL.Path)
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"u1/1700000000000-shot.png"}, body["prefixes"])
			_, _ = io.WriteString(w, `[]`)
		}
	})

	ctx := auth.WithAccessToken(context.Background(), "user-token")
	s := NewStorage(c, "evidence-files")
	require.NoError(t, s.Upload(ctx, "u1/1700000000000-shot.png", strings.NewReader("pixels"), 6, "image/png"))
	assert.Equal(t, "pixels", uploaded)
	require.NoError(t, s.Remove(ctx, "u1/1700000000000-shot.png"))
}

func TestTableListByUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/evidence", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "eq.u1", q.Get("user_id"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		_, _ = io.WriteString(w, `[
			{"id":"e2","user_id":"u1","file_name":"b.txt","file_path":"u1/2-b.txt","file_type":"text/plain","created_at":"2024-05-02T10:00:00+00:00","ai_summary":"threat","ai_labels":["threat"],"ai_severity":"High"},
			{"id":"e1","user_id":"u1","file_name":"a.png","file_path":"u1/1-a.png","file_type":"image/png","created_at":"2024-05-01T10:00:00.123456+00:00","ai_summary":null,"ai_labels":null,"ai_severity":null}
		]`)
	})

	rows, err := NewTable(c, "evidence").ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "e2", rows[0].ID)
	assert.True(t, rows[0].Analyzed())
	assert.Equal(t, evidence.SeverityHigh, rows[0].AISeverity)
	assert.False(t, rows[1].Analyzed())
}

func TestTableInsertAndDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
			var rec evidence.NewRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
			assert.Equal(t, "u1/1-a.png", rec.FilePath)
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			assert.Equal(t, "eq.e1", r.URL.Query().Get("id"))
			w.WriteHeader(http.StatusNoContent)
		}
	})

	tbl := NewTable(c, "evidence")
	require.NoError(t, tbl.Insert(context.Background(), evidence.NewRecord{UserID: "u1", FileName: "a.png", FilePath: "u1/1-a.png", FileType: "image/png"}))
	require.NoError(t, tbl.Delete(context.Background(), "e1"))
}

func TestFunctionsInvokeDecodesResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/analyze-evidence", r.URL.Path)
		var req evidence.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "e1", req.EvidenceID)
		_, _ = io.WriteString(w, `{"result":{"summary":"ok","labels":["a"],"severity":"Low","analyzedAt":"2024-05-01T10:00:00Z"}}`)
	})

	var out evidence.AnalyzeResponse
	err := NewFunctions(c, BreakerSettings{}).Invoke(context.Background(), "analyze-evidence", evidence.AnalyzeRequest{EvidenceID: "e1", FilePath: "u1/1-a.png"}, &out)
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, "ok", out.Result.Summary)
}

func TestFunctionsErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"Function error: evidence not found"}`)
	})

	err := NewFunctions(c, BreakerSettings{MinRequests: 1, FailureRatio: 0.1}).Invoke(context.Background(), "analyze-evidence", map[string]string{}, nil)
	require.Error(t, err)
	assert.Equal(t, "Function error: evidence not found", failure.Message(err))
	assert.False(t, failure.Is(err, failure.ErrUnavailable))
}

func TestFunctionsBreakerOpensOnGatewayFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	fns := NewFunctions(c, BreakerSettings{MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute})
	err := fns.Invoke(context.Background(), "generate-report", map[string]any{}, nil)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ErrBackend))

	err = fns.Invoke(context.Background(), "generate-report", map[string]any{}, nil)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ErrUnavailable))
	assert.Equal(t, 1, calls)
}
