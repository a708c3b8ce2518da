package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Transport posts one JSON payload and reports the HTTP status code and
// response body. A transport error (connection refused, timeout) is
// distinct from a non-200 status; the caller treats both as retryable.
type Transport interface {
	Post(ctx context.Context, url string, payload any, timeout time.Duration) (int, []byte, error)
}

// HTTPTransport is the production Transport over net/http.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport() *HTTPTransport {
	// Per-request timeouts come from the context; the client itself
	// stays unbounded so one generous delivery timeout and one short
	// heartbeat timeout can share it.
	return &HTTPTransport{client: &http.Client{}}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, payload any, timeout time.Duration) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	// Enough body for an error message, not a payload echo.
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))

	return res.StatusCode, body, nil
}
