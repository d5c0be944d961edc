// Package upstream is a JSON-RPC client for the tenant's ERP backend. It exposes
// the three calls the back-office needs: bulk search+read, count and create.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	rpcPath        = "/jsonrpc"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config identifies one tenant database on the upstream server.
type Config struct {
	URL      string
	Database string
	UID      int64
	APIKey   string
	Timeout  time.Duration
}

// SearchOptions controls search_read.
type SearchOptions struct {
	Fields []string
	Limit  int
	Order  string
}

// Client wraps interactions with the upstream JSON-RPC endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *Metrics
	seq        atomic.Int64
}

// NewClient constructs a new client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, metrics *Metrics) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient, metrics: metrics}
}

// SearchRead returns every record of model matching domain, up to opts.Limit.
func (c *Client) SearchRead(ctx context.Context, model string, domain Domain, opts SearchOptions) ([]Record, error) {
	if domain == nil {
		domain = Domain{}
	}
	kwargs := map[string]any{}
	if len(opts.Fields) > 0 {
		kwargs["fields"] = opts.Fields
	}
	if opts.Limit > 0 {
		kwargs["limit"] = opts.Limit
	}
	if opts.Order != "" {
		kwargs["order"] = opts.Order
	}
	var records []Record
	if err := c.executeKW(ctx, model, "search_read", []any{domain}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SearchCount counts records of model matching domain.
func (c *Client) SearchCount(ctx context.Context, model string, domain Domain) (int, error) {
	if domain == nil {
		domain = Domain{}
	}
	var count int
	if err := c.executeKW(ctx, model, "search_count", []any{domain}, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts one record and returns its id.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	if err := c.executeKW(ctx, model, "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Read fetches records by id.
func (c *Client) Read(ctx context.Context, model string, ids []int64, fields []string) ([]Record, error) {
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	var records []Record
	if err := c.executeKW(ctx, model, "read", []any{ids}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (c *Client) executeKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.observe(model, method, err, time.Since(start)) }()

	if kwargs == nil {
		kwargs = map[string]any{}
	}
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      c.seq.Add(1),
		Params: rpcParams{
			Service: "object",
			Method:  "execute_kw",
			Args:    []any{c.cfg.Database, c.cfg.UID, c.cfg.APIKey, model, method, args, kwargs},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("upstream: encode %s.%s: %w", model, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+rpcPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrTransport, model, method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s.%s returned status %d: %s", ErrTransport, model, method, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var envelope rpcResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return fmt.Errorf("upstream: decode %s.%s: %w", model, method, err)
	}
	if envelope.Error != nil {
		msg := envelope.Error.Data.Message
		if msg == "" {
			msg = envelope.Error.Message
		}
		return &RemoteError{Code: envelope.Error.Code, Name: envelope.Error.Data.Name, Message: msg}
	}
	if out == nil {
		return nil
	}
	resultDec := json.NewDecoder(bytes.NewReader(envelope.Result))
	resultDec.UseNumber()
	if err := resultDec.Decode(out); err != nil {
		return fmt.Errorf("upstream: decode %s.%s result: %w", model, method, err)
	}
	return nil
}
