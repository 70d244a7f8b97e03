package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Sumatoshi-tech/streamcdp/internal/event"
)

const (
	// defaultMaxElapsed bounds the total retry window per event.
	defaultMaxElapsed = 15 * time.Second

	// defaultInitialInterval is the first retry backoff delay.
	defaultInitialInterval = 100 * time.Millisecond
)

// HTTPSink posts events to an ingest endpoint, retrying transient failures
// with exponential backoff. Client errors (4xx) are not retried.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink for the given ingest URL. A nil client uses
// http.DefaultClient.
func NewHTTPSink(url string, client *http.Client) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPSink{url: url, client: client}
}

// Send posts one event, retrying on network errors and 5xx responses.
func (s *HTTPSink) Send(ctx context.Context, ev *event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = defaultInitialInterval
	policy.MaxElapsedTime = defaultMaxElapsed

	op := func() error {
		return s.post(ctx, body)
	}

	err = backoff.Retry(op, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("post event %s: %w", ev.ID, err)
	}

	return nil
}

func (s *HTTPSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode < http.StatusInternalServerError:
		return backoff.Permanent(fmt.Errorf("rejected: %s", resp.Status))
	default:
		return fmt.Errorf("server error: %s", resp.Status)
	}
}
