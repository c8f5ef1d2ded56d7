package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/model"
)

const defaultTimeout = 4 * time.Second

// ErrIdentityNotFound is returned by CheckIdentity when the provider has no
// schedule for the identity.
var ErrIdentityNotFound = errors.New("identity has no schedule upstream")

// Client talks to the remote schedule provider. It performs no retries.
type Client struct {
	cfg    config.UpstreamConfig
	client *http.Client
	log    *zap.Logger
}

// NewClient creates a provider client with a bounded request timeout.
func NewClient(cfg config.UpstreamConfig, log *zap.Logger) *Client {
	log = log.Named("fetcher")

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy URL, fetching without proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		log: log,
	}
}

// scheduleRequest is the body posted to the schedule endpoint.
type scheduleRequest struct {
	Identity  string             `json:"identity"`
	Type      model.IdentityKind `json:"type"`
	DateBegin string             `json:"dateBegin"`
	DateEnd   string             `json:"dateEnd"`
}

// Fetch requests the lessons of identity within r and returns the raw
// payload. The payload is only checked to be JSON; shaping is up to the caller.
func (c *Client) Fetch(ctx context.Context, identity string, r model.DateRange) ([]byte, error) {
	jsonBody, err := json.Marshal(scheduleRequest{
		Identity:  identity,
		Type:      model.KindOf(identity),
		DateBegin: model.FormatDate(r.Start),
		DateEnd:   model.FormatDate(r.End),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ScheduleURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	body, err := c.do(req)
	if err != nil {
		c.log.Warn("schedule fetch failed",
			zap.String("identity", identity),
			zap.Stringer("range", r),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}
	c.log.Debug("schedule fetched",
		zap.String("identity", identity),
		zap.Stringer("range", r),
		zap.Int("days", r.Days()),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)),
	)
	return body, nil
}

// searchItem is one entry of the search endpoint response.
type searchItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Search looks up groups and teachers whose name matches query.
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	endpoint, err := url.Parse(c.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var items []searchItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &FetchError{Kind: KindMalformed, Err: err}
	}

	results := make([]model.SearchResult, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		kind := model.IdentityKind(it.Type)
		if kind != model.IdentityGroup && kind != model.IdentityTeacher {
			kind = model.KindOf(name)
		}
		results = append(results, model.SearchResult{Name: name, Kind: kind})
	}
	return results, nil
}

// CheckIdentity asks the provider whether it has a schedule for identity.
func (c *Client) CheckIdentity(ctx context.Context, identity string) error {
	endpoint, err := url.Parse(c.cfg.CheckURL)
	if err != nil {
		return fmt.Errorf("invalid check url: %w", err)
	}
	q := endpoint.Query()
	q.Set("group", identity)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrIdentityNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &FetchError{Kind: KindHTTPStatus, Code: resp.StatusCode}
	}
	return nil
}

// do executes req and returns a body that is guaranteed to be valid JSON.
func (c *Client) do(req *http.Request) ([]byte, error) {
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: KindHTTPStatus, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	if !json.Valid(body) {
		return nil, &FetchError{Kind: KindMalformed, Err: errors.New("response body is not valid JSON")}
	}
	return body, nil
}
