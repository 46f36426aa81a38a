package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"quiz-engine/internal/domain"
)

// DefaultURL is the public Open Trivia Database endpoint.
const DefaultURL = "https://opentdb.com/api.php"

// Response codes documented by the Open Trivia Database.
const (
	codeSuccess     = 0
	codeRateLimited = 5
)

type response struct {
	ResponseCode *int              `json:"response_code"`
	Results      []domain.Question `json:"results"`
}

// Client fetches question batches over HTTP.
// The API allows one request per IP every few seconds, so concurrent fetches of the
// same batch share a single round trip.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
	sf      singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Fetch returns the requested batch or a *domain.ProviderError. No retry is attempted.
func (c *Client) Fetch(ctx context.Context, req domain.BatchRequest) ([]domain.Question, error) {
	endpoint, err := c.endpoint(req)
	if err != nil {
		return nil, domain.NewProviderError(domain.Unavailable, err)
	}

	// The shared request outlives any single caller; the http client timeout bounds it.
	flight := c.sf.DoChan(endpoint, func() (interface{}, error) {
		return c.get(context.WithoutCancel(ctx), endpoint)
	})
	select {
	case <-ctx.Done():
		return nil, domain.NewProviderError(domain.Unavailable, ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			c.log.WithError(res.Err).WithField("shared", res.Shared).Warn("fetch questions")
			return nil, res.Err
		}
		questions := res.Val.([]domain.Question)
		return append([]domain.Question(nil), questions...), nil
	}
}

func (c *Client) endpoint(req domain.BatchRequest) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse provider url: %w", err)
	}
	q := u.Query()
	q.Set("amount", strconv.Itoa(req.Amount))
	if req.Difficulty != "" {
		q.Set("difficulty", req.Difficulty)
	}
	if req.Type != "" {
		q.Set("type", req.Type)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]domain.Question, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.Unavailable, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("request questions: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("read response: %w", err))
	}

	// The response code travels in the payload, including on HTTP 429.
	var payload response
	if err := json.Unmarshal(body, &payload); err != nil || payload.ResponseCode == nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.NewProviderError(domain.RateLimited, fmt.Errorf("http %d", resp.StatusCode))
		}
		if err == nil {
			err = fmt.Errorf("missing response_code (http %d)", resp.StatusCode)
		}
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("decode response: %w", err))
	}

	switch code := *payload.ResponseCode; code {
	case codeSuccess:
	case codeRateLimited:
		return nil, domain.NewProviderError(domain.RateLimited, fmt.Errorf("response code %d", code))
	default:
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("response code %d", code))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("http %d", resp.StatusCode))
	}
	return payload.Results, nil
}
