package remediation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxAttempts        = 4
)

// HTTPActuator drives a remote control plane. Capture reads the target's
// current state document, Apply posts the operation, Rollback restores the
// captured state. Transient failures are retried with exponential backoff;
// 4xx responses are not retried.
type HTTPActuator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPActuator(baseURL string, client *http.Client) *HTTPActuator {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &HTTPActuator{
		baseURL: baseURL,
		client:  client,
	}
}

func (a *HTTPActuator) Capture(ctx context.Context, target string) (Snapshot, error) {
	u := a.baseURL + "/targets/" + url.PathEscape(target) + "/state"
	body, err := a.retry(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("capture %s: %w", target, err)
	}

	var state map[string]string
	if err := json.Unmarshal(body, &state); err != nil {
		return Snapshot{}, fmt.Errorf("capture %s: decode state: %w", target, err)
	}

	return Snapshot{
		Target:  target,
		State:   state,
		TakenAt: time.Now(),
	}, nil
}

func (a *HTTPActuator) Apply(ctx context.Context, action Action) error {
	payload, err := json.Marshal(map[string]any{
		"action_id": action.ID,
		"operation": action.Operation,
		"params":    action.Params,
	})
	if err != nil {
		return err
	}

	u := a.baseURL + "/targets/" + url.PathEscape(action.Target) + "/apply"
	if _, err := a.retry(ctx, http.MethodPost, u, payload); err != nil {
		return fmt.Errorf("apply %s on %s: %w", action.Operation, action.Target, err)
	}

	return nil
}

func (a *HTTPActuator) Rollback(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot.State)
	if err != nil {
		return err
	}

	u := a.baseURL + "/targets/" + url.PathEscape(snapshot.Target) + "/state"
	if _, err := a.retry(ctx, http.MethodPut, u, payload); err != nil {
		return fmt.Errorf("rollback %s: %w", snapshot.Target, err)
	}

	return nil
}

// retry performs the request with exponential backoff. Requests carry the
// action payload idempotently, so replays after an ambiguous failure are
// safe.
func (a *HTTPActuator) retry(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, fmt.Errorf("control plane returned %d", resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return nil, backoff.Permanent(fmt.Errorf("control plane rejected request: %d", resp.StatusCode))
		}

		return data, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
}

var _ Actuator = (*HTTPActuator)(nil)
