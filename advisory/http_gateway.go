package advisory

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"steward/bizerror"
	"steward/domain"
	"steward/misc"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// HTTPGateway posts initiative snapshots to the advisory service. Requests
// are rate limited and retried a bounded number of times; the advisory
// service being slow or down must never back-pressure the workflow engine.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (g *HTTPGateway) RequestComplianceCheck(ctx context.Context, snapshot domain.JSONDocument) (domain.JSONDocument, error) {
	return g.invoke(ctx, "/v1/compliance-checks", snapshot)
}

func (g *HTTPGateway) RequestRegulationMapping(ctx context.Context, snapshot domain.JSONDocument) (domain.JSONDocument, error) {
	return g.invoke(ctx, "/v1/regulation-mappings", snapshot)
}

func (g *HTTPGateway) invoke(ctx context.Context, path string, snapshot domain.JSONDocument) (domain.JSONDocument, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", bizerror.ErrAdvisoryUnavailable, err)
	}

	var result domain.JSONDocument
	err := retry.Do(ctx, retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond)),
		func(ctx context.Context) error {
			body, err := g.post(ctx, path, snapshot)
			if err != nil {
				return retry.RetryableError(err)
			}
			result = body
			return nil
		})
	if err != nil {
		misc.Log.WithField("path", path).Warn("advisory invocation failed: ", err)
		return nil, fmt.Errorf("%w: %v", bizerror.ErrAdvisoryUnavailable, err)
	}
	return result, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, snapshot domain.JSONDocument) (domain.JSONDocument, error) {
	reqBody := snapshot
	if len(reqBody) == 0 {
		reqBody = domain.JSONDocument(`{}`)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("advisory service responded %d: %s", resp.StatusCode, string(respBody))
	}
	return domain.JSONDocument(respBody), nil
}
