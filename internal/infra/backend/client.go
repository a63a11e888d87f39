package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

const maxResponseBytes = 8 << 20

// Client issues authenticated requests against the hosted backend. The
// caller's access token travels in the context (auth.WithAccessToken); without
// one, requests run with the anon key.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	log     *logger.Logger
}

func New(baseURL, anonKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	header      http.Header
}

// send executes r and returns the response body of a 2xx reply. Any other
// status is decoded into a *failure.BackendError.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", r.op, err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("apikey", c.anonKey)
	token := auth.AccessTokenFrom(ctx)
	if token == "" {
		token = c.anonKey
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend request failed", "op", r.op, "method", r.method, "path", r.path, "error", err)
		return nil, failure.Wrap(failure.ErrBackend, r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, failure.Wrap(failure.ErrBackend, r.op, err)
	}
	c.log.Debug("backend request", "op", r.op, "method", r.method, "path", r.path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(r.op, resp.StatusCode, data)
	}
	return data, nil
}

// sendJSON marshals in (when non-nil) as the body and decodes the reply into
// out (when non-nil).
func (c *Client) sendJSON(ctx context.Context, r request, in, out any) error {
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		r.body = bytes.NewReader(payload)
		r.contentType = "application/json"
	}
	data, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return failure.Wrap(failure.ErrBackend, r.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorBody covers the error shapes of the auth, storage, table and
// function services.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Error            any    `json:"error"`
}

func decodeError(op string, status int, data []byte) error {
	var body errorBody
	msg := ""
	if err := json.Unmarshal(data, &body); err == nil {
		for _, candidate := range []string{body.Message, body.ErrorDescription, body.Msg} {
			if strings.TrimSpace(candidate) != "" {
				msg = candidate
				break
			}
		}
		if msg == "" {
			if s, ok := body.Error.(string); ok {
				msg = s
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return failure.Backend(op, status, msg)
}

// escapePath escapes each segment of an object path.
func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
