package logs

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/metrics"
)

const searchPath = "/api/search/universal/relative"

// RawMessage is one search hit. Message is the stored document, which is
// either an object carrying a "message" field or a plain string.
type RawMessage struct {
	Message   json.RawMessage `json:"message"`
	Timestamp string          `json:"timestamp"`
}

type searchResponse struct {
	Messages []RawMessage `json:"messages"`
}

type ClientAPI interface {
	// Pages walks the relative search for the last rangeMinutes, one page
	// per iteration, until a short or empty page.
	Pages(ctx context.Context, rangeMinutes int) iter.Seq2[[]RawMessage, error]
	PageSize() int
}

type Client struct {
	baseURL  string
	username string
	password string
	pageSize int
	http     *http.Client
	logger   *slog.Logger
}

var _ ClientAPI = (*Client)(nil)

func NewClient(cfg internal.LogsConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 150
	}
	return &Client{
		baseURL:  cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *Client) PageSize() int { return c.pageSize }

func (c *Client) Pages(ctx context.Context, rangeMinutes int) iter.Seq2[[]RawMessage, error] {
	return func(yield func([]RawMessage, error) bool) {
		for page := 0; ; page++ {
			msgs, err := c.search(ctx, rangeMinutes, page*c.pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(msgs) == 0 {
				return
			}
			if !yield(msgs, nil) {
				return
			}
			if len(msgs) < c.pageSize {
				return
			}
		}
	}
}

func (c *Client) search(ctx context.Context, rangeMinutes, offset int) (msgs []RawMessage, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("graylog", start, err) }()

	q := url.Values{}
	q.Set("query", "*")
	q.Set("range", strconv.Itoa(rangeMinutes*60))
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	c.logger.Debug("graylog page fetched", "offset", offset, "count", len(body.Messages), "duration", time.Since(start))
	return body.Messages, nil
}
