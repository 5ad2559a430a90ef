// Package upstream reaches the provider operations over HTTP. The
// billing core only ever sees the status code and the response body;
// everything else about the transport stays in this package.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upstream-billing-gateway/internal/domain/provider"
)

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 4 << 20

// Params carries the caller's request through to the upstream operation.
type Params struct {
	Body  []byte
	Query url.Values
}

// Client invokes provider operations over HTTP.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates an upstream HTTP client. The timeout bounds every
// invocation that is not already bounded by its context.
func NewClient(logger *slog.Logger, timeout time.Duration) *Client {
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Invoke calls one upstream operation and returns its status code and
// body. A non-nil error means the provider was unreachable; non-2xx
// statuses are returned to the caller, not turned into errors.
func (c *Client) Invoke(ctx context.Context, prov *provider.Provider, op *provider.OperationDescriptor, params Params) (int, []byte, error) {
	target := strings.TrimRight(prov.BaseURL, "/") + op.Path
	if len(params.Query) > 0 {
		target = target + "?" + params.Query.Encode()
	}

	var reqBody io.Reader
	if len(params.Body) > 0 {
		reqBody = bytes.NewReader(params.Body)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build upstream request %s %s: %w", op.Method, target, err)
	}
	if len(params.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Upstream call failed",
			"provider_id", prov.ID,
			"operation_id", op.OperationID,
			"error", err,
		)
		return 0, nil, fmt.Errorf("upstream %s/%s unreachable: %w", prov.ID, op.OperationID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read upstream response from %s/%s: %w", prov.ID, op.OperationID, err)
	}

	c.logger.Debug("Upstream call completed",
		"provider_id", prov.ID,
		"operation_id", op.OperationID,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	return resp.StatusCode, body, nil
}
