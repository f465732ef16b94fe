package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/user/mayberry/pkg/medapi"
)

// Client implements medapi.Service on top of a Gateway.
type Client struct {
	gw *Gateway
}

var _ medapi.Service = (*Client)(nil)

// NewClient creates a typed endpoint client.
func NewClient(gw *Gateway) *Client {
	return &Client{gw: gw}
}

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, req medapi.LoginRequest) (*medapi.TokenResponse, error) {
	var tok medapi.TokenResponse
	if err := c.call(ctx, http.MethodPost, "/auth/login", req, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, malformed(http.MethodPost, "/auth/login", http.StatusOK, "", errMissingToken)
	}
	return &tok, nil
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, req medapi.RegisterRequest) error {
	return c.call(ctx, http.MethodPost, "/auth/register", req, nil)
}

// Me calls GET /auth/me.
func (c *Client) Me(ctx context.Context) (*medapi.Profile, error) {
	var p medapi.Profile
	if err := c.call(ctx, http.MethodGet, "/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Chat calls POST /medical/chat.
func (c *Client) Chat(ctx context.Context, req medapi.ChatRequest) (*medapi.ChatResponse, error) {
	var resp medapi.ChatResponse
	if err := c.call(ctx, http.MethodPost, "/medical/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SymptomCheck calls POST /medical/symptom-checker.
func (c *Client) SymptomCheck(ctx context.Context, req medapi.SymptomInput) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/medical/symptom-checker", req)
}

// LabAnalysis calls POST /medical/lab-analysis.
func (c *Client) LabAnalysis(ctx context.Context, req medapi.LabResultUpload) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/medical/lab-analysis", req)
}

// SecondOpinion calls POST /medical/second-opinion.
func (c *Client) SecondOpinion(ctx context.Context, req medapi.SecondOpinionRequest) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/medical/second-opinion", req)
}

// PrivacyStatus calls GET /privacy/status.
func (c *Client) PrivacyStatus(ctx context.Context) (*medapi.PrivacyStatus, error) {
	data, err := c.enveloped(ctx, http.MethodGet, "/privacy/status")
	if err != nil {
		return nil, err
	}
	var status medapi.PrivacyStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, malformed(http.MethodGet, "/privacy/status", http.StatusOK, "", err)
	}
	return &status, nil
}

// PrivacyMetrics calls GET /privacy/metrics.
func (c *Client) PrivacyMetrics(ctx context.Context) (json.RawMessage, error) {
	return c.enveloped(ctx, http.MethodGet, "/privacy/metrics")
}

// PrivacyCompliance calls GET /privacy/compliance.
func (c *Client) PrivacyCompliance(ctx context.Context) (json.RawMessage, error) {
	return c.enveloped(ctx, http.MethodGet, "/privacy/compliance")
}

// ExportData calls POST /privacy/data-export.
func (c *Client) ExportData(ctx context.Context) (json.RawMessage, error) {
	return c.enveloped(ctx, http.MethodPost, "/privacy/data-export")
}

// DeleteData calls DELETE /privacy/data-deletion.
func (c *Client) DeleteData(ctx context.Context) (json.RawMessage, error) {
	return c.enveloped(ctx, http.MethodDelete, "/privacy/data-deletion")
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.gw.Do(ctx, Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return malformed(method, path, resp.Status, "", err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	resp, err := c.gw.Do(ctx, Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// enveloped unwraps the {success, data, message} wrapper of the privacy
// endpoints.
func (c *Client) enveloped(ctx context.Context, method, path string) (json.RawMessage, error) {
	var env medapi.Envelope
	if err := c.call(ctx, method, path, nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, malformed(method, path, http.StatusOK, env.Message, errUnsuccessful)
	}
	return env.Data, nil
}
