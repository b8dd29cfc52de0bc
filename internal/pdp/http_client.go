package pdp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/pkg/types"
)

const evaluationPath = "/access/v1/evaluation"

// maxResponseBytes caps how much of a PDP response is read. A decision
// payload is small; anything larger is a protocol violation.
const maxResponseBytes = 1 << 20

// HTTPClient talks to an AuthZEN-style PDP over HTTP. Requests are JSON
// POSTs to the evaluation endpoint; the caller's bearer token, when present,
// is forwarded in the Authorization header.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates an HTTP PDP client. timeout bounds each evaluation
// call in addition to whatever deadline the request context carries.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Evaluate implements Client.
func (c *HTTPClient) Evaluate(ctx context.Context, req *types.EvaluationRequest) (*types.EvaluationResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+evaluationPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := req.Context.BearerToken; token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: pdp returned status %d", ErrUnreachable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: pdp returned status %d", ErrMalformedResponse, resp.StatusCode)
	}

	var out types.EvaluationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// EvaluateBatch implements Client by evaluating sequentially. The PDP's
// batch endpoint is not used; per-question calls keep the failure surface
// identical to single evaluation.
func (c *HTTPClient) EvaluateBatch(ctx context.Context, reqs []types.EvaluationRequest) ([]types.EvaluationResponse, error) {
	out := make([]types.EvaluationResponse, 0, len(reqs))
	for i := range reqs {
		resp, err := c.Evaluate(ctx, &reqs[i])
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		out = append(out, *resp)
	}
	return out, nil
}

// Close implements Client.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
