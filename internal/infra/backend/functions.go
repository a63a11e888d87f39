package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

// Functions invokes the hosted serverless functions. A circuit breaker fails
// calls fast while the functions host is unreachable; nothing is retried.
type Functions struct {
	c       *Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var _ evidence.FunctionInvoker = (*Functions)(nil)

func NewFunctions(c *Client, bs BreakerSettings) *Functions {
	if bs.MinRequests == 0 {
		bs.MinRequests = 5
	}
	if bs.FailureRatio <= 0 {
		bs.FailureRatio = 0.6
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "functions",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bs.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bs.FailureRatio
		},
		IsSuccessful: hostHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Functions{c: c, breaker: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

// hostHealthy counts only transport failures and gateway statuses against the
// breaker. A function answering with its error envelope is a healthy host.
func hostHealthy(err error) bool {
	if err == nil {
		return true
	}
	var be *failure.BackendError
	if errors.As(err, &be) {
		switch be.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return false
		}
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (f *Functions) Invoke(ctx context.Context, name string, body any, out any) error {
	op := "invoke " + name
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}

	data, err := f.breaker.Execute(func() ([]byte, error) {
		return f.c.send(ctx, request{
			op:          op,
			method:      http.MethodPost,
			path:        "/functions/v1/" + name,
			body:        bytes.NewReader(payload),
			contentType: "application/json",
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return failure.Wrap(failure.ErrUnavailable, op, err)
		}
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return failure.Wrap(failure.ErrBackend, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
