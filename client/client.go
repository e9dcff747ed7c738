// Package client is a minimal JSON-RPC client for the calculator's MCP
// endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/localrivet/calcmcp/auth"
	"github.com/localrivet/calcmcp/calc"
	"github.com/localrivet/calcmcp/protocol"
)

// DefaultRequestTimeout bounds a single request when the caller's context has
// no deadline.
const DefaultRequestTimeout = 30 * time.Second

// ErrToolFailed is wrapped by errors reported through a tool result.
var ErrToolFailed = errors.New("tool call failed")

// RPCError is a JSON-RPC error returned by the server.
type RPCError struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-200 answer from the endpoint, e.g. a rejected API key.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Detail)
}

// Client talks to POST /mcp.
type Client struct {
	endpoint       string
	apiKey         string
	origin         string
	httpClient     *http.Client
	requestTimeout time.Duration
	nextID         atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the X-API-Key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithOrigin sets the Origin header on every request.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		c.origin = origin
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint:       strings.TrimRight(baseURL, "/") + "/mcp",
		httpClient:     http.DefaultClient,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize performs the MCP handshake and returns the server's answer.
func (c *Client) Initialize(ctx context.Context, name, version string) (*protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	err := c.call(ctx, protocol.MethodInitialize, protocol.InitializeRequestParams{
		ProtocolVersion: protocol.CurrentProtocolVersion,
		ClientInfo:      protocol.Implementation{Name: name, Version: version},
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := c.notify(ctx, protocol.MethodInitialized); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, protocol.MethodPing, nil, nil)
}

// ListTools returns the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	var result protocol.ListToolsResult
	if err := c.call(ctx, protocol.MethodListTools, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool and returns the text of its first content item.
// A result flagged as an error is returned as an error wrapping ErrToolFailed.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	var result struct {
		Content []protocol.TextContent `json:"content"`
		IsError bool                   `json:"isError"`
	}
	err := c.call(ctx, protocol.MethodCallTool, protocol.CallToolParams{Name: name, Arguments: args}, &result)
	if err != nil {
		return "", err
	}
	var text string
	if len(result.Content) > 0 {
		text = result.Content[0].Text
	}
	if result.IsError {
		return "", fmt.Errorf("%w: %s", ErrToolFailed, text)
	}
	return text, nil
}

// Calculate runs the calculate tool on an inline payload.
func (c *Client) Calculate(ctx context.Context, operand1, operand2 float64, op calc.Operator) (*calc.Result, error) {
	return c.calculate(ctx, map[string]any{"json": map[string]any{
		calc.KeyOperand1:  operand1,
		calc.KeyOperand2:  operand2,
		calc.KeyOperation: string(op),
	}})
}

// CalculateURL runs the calculate tool on a payload the server fetches from url.
func (c *Client) CalculateURL(ctx context.Context, url string) (*calc.Result, error) {
	return c.calculate(ctx, map[string]any{"json_url": url})
}

func (c *Client) calculate(ctx context.Context, args map[string]any) (*calc.Result, error) {
	text, err := c.CallTool(ctx, "calculate", args)
	if err != nil {
		return nil, err
	}
	var result calc.Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("decode calculate result: %w", err)
	}
	return &result, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	id := c.nextID.Add(1)
	req := map[string]any{
		"jsonrpc": protocol.JSONRPCVersion,
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	body, err := c.post(ctx, req)
	if err != nil {
		return err
	}

	var resp struct {
		Result json.RawMessage        `json:"result"`
		Error  *protocol.ErrorPayload `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	_, err := c.post(ctx, map[string]any{"jsonrpc": protocol.JSONRPCVersion, "method": method})
	return err
}

func (c *Client) post(ctx context.Context, message any) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(auth.HeaderAPIKey, c.apiKey)
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return body, nil
	default:
		var problem struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &problem)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Detail: problem.Detail}
	}
}
