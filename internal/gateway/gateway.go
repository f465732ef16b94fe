package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Timeout bounds every call. It is not configurable.
const Timeout = 30 * time.Second

// Credentials is the source of the bearer token. Expire is called when the
// service rejects the held credential with a 401; it must be idempotent.
type Credentials interface {
	Token() string
	Expire()
}

// Gateway is the single path for outbound calls. It attaches the held
// credential, classifies every failure into an *Error, and on a 401 expires
// the credential. It never retries.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	creds Credentials
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client. Tests use it to shorten the
// timeout or talk to an httptest server.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithLogger sets the logger used for per-call records.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway for the service at baseURL.
func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: Timeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bind sets the credential source. A Gateway without one makes anonymous
// calls only.
func (g *Gateway) Bind(creds Credentials) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creds = creds
}

func (g *Gateway) credentials() Credentials {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.creds
}

// Request describes one outbound call. Body, if non-nil, is JSON-encoded.
type Request struct {
	Method string
	Path   string
	Body   any
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Do sends the request. Any failure is returned as *Error.
func (g *Gateway) Do(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, g.baseURL+r.Path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	creds := g.credentials()
	if creds != nil {
		if token := creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("request failed", "method", r.Method, "path", r.Path, "duration", time.Since(start), "error", err)
		return nil, &Error{Kind: KindNetworkFailure, Method: r.Method, Path: r.Path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetworkFailure, Method: r.Method, Path: r.Path, Err: fmt.Errorf("reading response: %w", err)}
	}

	g.logger.Debug("request completed", "method", r.Method, "path", r.Path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Body: respBody}, nil
	}

	gwErr := classify(r.Method, r.Path, resp.StatusCode, respBody)
	if gwErr.Kind == KindAuthorizationExpired && creds != nil {
		g.logger.Info("credential rejected, expiring session", "path", r.Path)
		creds.Expire()
	}
	return nil, gwErr
}
