package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/metrics"
	"golang.org/x/time/rate"
)

const apiPath = "/apirest.php/"

var errSessionExpired = errors.New("glpi session expired")

type statusError struct {
	path string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.path, e.code)
}

// Item is one upstream entity kept as decoded JSON.
type Item map[string]interface{}

func (i Item) String(key string) string {
	switch v := i[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

// Ref returns the foreign key under key, or "" when unset. GLPI uses 0 for
// an empty reference.
func (i Item) Ref(key string) string {
	v := i.String(key)
	if v == "0" {
		return ""
	}
	return v
}

type ClientAPI interface {
	// Items walks an itemtype collection with range pagination.
	Items(ctx context.Context, itemtype string) ([]Item, error)
	// Get loads one item for a lookup. Lookups are throttled.
	Get(ctx context.Context, itemtype, id string) (Item, error)
	// Search lists items matching field=value criteria.
	Search(ctx context.Context, itemtype string, criteria map[string]string) ([]Item, error)
}

type Client struct {
	baseURL   string
	userToken string
	appToken  string
	pageSize  int
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu      sync.Mutex
	session string
}

var _ ClientAPI = (*Client)(nil)

func NewClient(cfg internal.AssetsConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 999
	}
	limit := rate.Inf
	if cfg.LookupRPS > 0 {
		limit = rate.Limit(cfg.LookupRPS)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		userToken: cfg.UserToken,
		appToken:  cfg.AppToken,
		pageSize:  pageSize,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// InitSession binds the user token and caches the session token.
func (c *Client) InitSession(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("glpi", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath+"initSession", nil)
	if err != nil {
		return fmt.Errorf("failed to create initSession request: %w", err)
	}
	req.Header.Set("Authorization", "user_token "+c.userToken)
	req.Header.Set("App-Token", c.appToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("initSession request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("initSession returned status %d", resp.StatusCode)
	}
	var body struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode initSession response: %w", err)
	}
	if body.SessionToken == "" {
		return errors.New("initSession returned no session token")
	}

	c.mu.Lock()
	c.session = body.SessionToken
	c.mu.Unlock()
	return nil
}

func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.session
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if err := c.InitSession(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, nil
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.session = ""
	c.mu.Unlock()
}

// get issues one authenticated request and decodes into out. An expired
// session is re-initialized once.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	err := c.getOnce(ctx, path, query, out)
	if errors.Is(err, errSessionExpired) {
		c.dropSession()
		err = c.getOnce(ctx, path, query, out)
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values, out interface{}) (err error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { metrics.ObserveUpstream("glpi", start, err) }()

	u := c.baseURL + apiPath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Session-Token", token)
	req.Header.Set("App-Token", c.appToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusUnauthorized:
		return errSessionExpired
	default:
		return &statusError{path: path, code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Items(ctx context.Context, itemtype string) ([]Item, error) {
	var all []Item
	for start := 0; ; {
		q := url.Values{}
		q.Set("range", fmt.Sprintf("%d-%d", start, start+c.pageSize-1))

		var page []Item
		if err := c.get(ctx, itemtype, q, &page); err != nil {
			// A range past the last item is rejected rather than empty.
			var se *statusError
			if start > 0 && errors.As(err, &se) && se.code == http.StatusBadRequest {
				break
			}
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		c.logger.Debug("glpi page fetched", "itemtype", itemtype, "count", len(page), "total", len(all))
		if len(page) < c.pageSize {
			break
		}
		start += len(page)
	}
	return all, nil
}

func (c *Client) Get(ctx context.Context, itemtype, id string) (Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var item Item
	if err := c.get(ctx, itemtype+"/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) Search(ctx context.Context, itemtype string, criteria map[string]string) ([]Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	n := 0
	for _, field := range sortedKeys(criteria) {
		q.Set(fmt.Sprintf("criteria[%d][field]", n), field)
		q.Set(fmt.Sprintf("criteria[%d][value]", n), criteria[field])
		n++
	}
	var items []Item
	if err := c.get(ctx, itemtype, q, &items); err != nil {
		return nil, err
	}
	return items, nil
}
