// Package resolver turns a tool's parameter object into the calculation
// payload, either taking it inline or fetching it from a URL.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/util/schema"
)

const (
	// DefaultTimeout bounds a single payload fetch.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps the size of a fetched payload.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Source selects where the payload comes from. Exactly one field must be set.
type Source struct {
	Inline any    `json:"json,omitempty" description:"Inline JSON object with operand1, operand2 and operation"`
	URL    string `json:"json_url,omitempty" format:"uri" description:"URL of a JSON document with operand1, operand2 and operation"`
}

// DecodeSource decodes a tool parameter object into a Source.
func DecodeSource(params map[string]any) (Source, error) {
	src, err := schema.Decode[Source](params)
	if err != nil {
		return Source{}, protocol.Validationf("Invalid parameters: %w", err)
	}
	return *src, nil
}

// Resolver produces calculation payloads.
type Resolver struct {
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	logger       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the fetch timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithMaxBodyBytes caps the fetched body size. Non-positive values are ignored.
func WithMaxBodyBytes(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		timeout:      DefaultTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: r.timeout}
	}
	return r
}

// Timeout returns the configured fetch timeout.
func (r *Resolver) Timeout() time.Duration {
	return r.timeout
}

// Resolve returns the payload selected by src.
func (r *Resolver) Resolve(ctx context.Context, src Source) (any, error) {
	hasInline := src.Inline != nil
	hasURL := src.URL != ""
	if hasInline == hasURL {
		return nil, protocol.Validation("Provide exactly one of 'json' or 'json_url'.")
	}
	if hasInline {
		return src.Inline, nil
	}
	return r.fetch(ctx, src.URL)
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (any, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, protocol.Validation("json_url must be an absolute http or https URL.")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, protocol.Fetch(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("payload fetch failed", "url", u.Redacted(), "timeout", IsTimeout(err), "error", err)
		return nil, protocol.Fetch(err)
	}
	defer resp.Body.Close()

	r.logger.Debug("payload fetched", "url", u.Redacted(), "status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, protocol.Fetch(&StatusError{StatusCode: resp.StatusCode, URL: u.Redacted()})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodyBytes+1))
	if err != nil {
		return nil, protocol.Fetch(err)
	}
	if int64(len(body)) > r.maxBodyBytes {
		return nil, protocol.Fetch(fmt.Errorf("response body exceeds %d bytes", r.maxBodyBytes))
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, protocol.Validationf("Fetched payload is not valid JSON: %w", err)
	}
	return data, nil
}

// StatusError reports a non-2xx response from the payload URL.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s for url '%s'", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// IsTimeout reports whether err was caused by the fetch deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
