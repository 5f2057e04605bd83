package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/metrics"
)

// Flex decodes Zabbix values that arrive either as JSON strings or numbers.
type Flex string

func (f *Flex) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Flex(s)
		return nil
	}
	*f = Flex(b)
	return nil
}

func (f Flex) String() string { return string(f) }

func (f Flex) Int64() int64 {
	n, _ := strconv.ParseInt(string(f), 10, 64)
	return n
}

type RawInterface struct {
	IP        Flex `json:"ip"`
	Type      Flex `json:"type"`
	Available Flex `json:"available"`
}

type RawItem struct {
	Name      string `json:"name"`
	Key       string `json:"key_"`
	LastValue Flex   `json:"lastvalue"`
	Units     string `json:"units"`
}

type RawTriggerHost struct {
	HostID Flex   `json:"hostid"`
	Name   string `json:"name"`
}

type RawTrigger struct {
	TriggerID   Flex             `json:"triggerid"`
	Description string           `json:"description"`
	Status      Flex             `json:"status"`
	State       Flex             `json:"state"`
	LastChange  Flex             `json:"lastchange"`
	Priority    Flex             `json:"priority"`
	Value       Flex             `json:"value"`
	Hosts       []RawTriggerHost `json:"hosts"`
}

type RawHost struct {
	HostID     Flex           `json:"hostid"`
	Name       string         `json:"name"`
	Status     Flex           `json:"status"`
	Interfaces []RawInterface `json:"interfaces"`
	Items      []RawItem      `json:"items"`
	Triggers   []RawTrigger   `json:"triggers"`
}

// ClientAPI is the slice of the Zabbix API the adapter uses.
type ClientAPI interface {
	Hosts(ctx context.Context) ([]RawHost, error)
	AgentHosts(ctx context.Context) ([]RawHost, error)
	ProblemTriggers(ctx context.Context, limit int) ([]RawTrigger, error)
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	Auth    string      `json:"auth,omitempty"`
	ID      int64       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Client speaks Zabbix JSON-RPC with a static API token.
type Client struct {
	url    string
	token  string
	http   *http.Client
	logger *slog.Logger
	nextID atomic.Int64
}

var _ ClientAPI = (*Client)(nil)

func NewClient(cfg internal.MonitoringConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		token:  cfg.Token,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *Client) Hosts(ctx context.Context) ([]RawHost, error) {
	params := map[string]interface{}{
		"output":           []string{"hostid", "name", "status"},
		"selectInterfaces": []string{"ip", "type", "available"},
		"selectItems":      []string{"name", "key_", "lastvalue", "units"},
		"selectTriggers":   []string{"description", "status", "state", "lastchange"},
		"filter":           map[string]interface{}{"status": 0},
	}
	var hosts []RawHost
	if err := c.call(ctx, "host.get", params, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (c *Client) AgentHosts(ctx context.Context) ([]RawHost, error) {
	params := map[string]interface{}{
		"output":           []string{"hostid", "name", "status"},
		"selectInterfaces": []string{"ip", "type", "available"},
		"filter":           map[string]interface{}{"status": 0},
	}
	var hosts []RawHost
	if err := c.call(ctx, "host.get", params, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (c *Client) ProblemTriggers(ctx context.Context, limit int) ([]RawTrigger, error) {
	params := map[string]interface{}{
		"output":      []string{"triggerid", "description", "status", "state", "lastchange", "priority", "value"},
		"selectHosts": []string{"hostid", "name"},
		"filter":      map[string]interface{}{"status": 0, "state": 1},
		"sortfield":   []string{"lastchange"},
		"sortorder":   "DESC",
		"limit":       limit,
	}
	var triggers []RawTrigger
	if err := c.call(ctx, "trigger.get", params, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("zabbix", start, err) }()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		Auth:    c.token,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json-rpc")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpc.Error != nil {
		return fmt.Errorf("%s: %s %s", method, rpc.Error.Message, rpc.Error.Data)
	}
	if len(rpc.Result) == 0 {
		return fmt.Errorf("%s: no data received", method)
	}
	if err := json.Unmarshal(rpc.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	c.logger.Debug("zabbix call completed", "method", method, "duration", time.Since(start))
	return nil
}
