package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/golighter/pkg/ratelimit"
)

// httpClient is a thin resty wrapper. Client-level retry is disabled: retry
// policy lives with the caller, which knows which failures are transient.
type httpClient struct {
	client  *resty.Client
	limiter *ratelimit.TokenBucket
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	// resty reads proxy settings from HTTP_PROXY/HTTPS_PROXY automatically.
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0)
	return &httpClient{
		client:  client,
		limiter: ratelimit.NewTokenBucket(20, 10),
	}
}

type requestOptions struct {
	Headers map[string]string
	Params  map[string]string
	Body    any
}

func (c *httpClient) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	return r
}

func (c *httpClient) do(ctx context.Context, method, endpoint string, opt *requestOptions, out any) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	rc := c.newRequest(ctx)
	if opt != nil {
		if opt.Headers != nil {
			rc.SetHeaders(opt.Headers)
		}
		if opt.Params != nil {
			rc.SetQueryParams(opt.Params)
		}
		if opt.Body != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Body)
		}
	}
	if out != nil {
		rc.SetResult(out)
	}

	switch method {
	case http.MethodGet:
		return rc.Get(endpoint)
	case http.MethodPost:
		return rc.Post(endpoint)
	case http.MethodDelete:
		return rc.Delete(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

// apiError extracts the exchange's error body from a non-2xx response.
func apiError(resp *resty.Response) error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		return errors.Errorf("http %d: %s", resp.StatusCode(), body.Message)
	}
	return errors.Errorf("http %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
}
