package medapi

import (
	"encoding/json"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is the user record returned by GET /auth/me.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  Timestamp `json:"created_at"`
}

// ChatRequest is the body of POST /medical/chat.
type ChatRequest struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

// RiskLevel is the server-assigned severity tag of an assistant reply.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ChatResponse is the reply of POST /medical/chat.
type ChatResponse struct {
	ID                string            `json:"id,omitempty"`
	Content           string            `json:"content"`
	CreatedAt         Timestamp         `json:"created_at"`
	RiskLevel         RiskLevel         `json:"risk_level,omitempty"`
	ConfidenceScore   *float64          `json:"confidence_score,omitempty"`
	Recommendations   []string          `json:"recommendations,omitempty"`
	Sources           []string          `json:"sources,omitempty"`
	IsEmergency       bool              `json:"is_emergency,omitempty"`
	EmergencyInfo     json.RawMessage   `json:"emergency_info,omitempty"`
	EmergencyResponse *EmergencyPayload `json:"emergency_response,omitempty"`
	PrivacyStatus     *PrivacyStatus    `json:"privacy_status,omitempty"`
	MedicalMemoryUsed bool              `json:"medical_memory_used,omitempty"`
	AIPersonality     string            `json:"ai_personality,omitempty"`
	ModelVersion      string            `json:"model_version,omitempty"`
}

// EmergencyPayload is the server's explicit emergency signal.
type EmergencyPayload struct {
	Message           string   `json:"message"`
	ImmediateActions  []string `json:"immediate_actions"`
	EmergencyContacts []string `json:"emergency_contacts"`
}

// IsZero reports whether the payload carries nothing. The service sends an
// empty object when no emergency was detected.
func (p *EmergencyPayload) IsZero() bool {
	return p == nil || (p.Message == "" && len(p.ImmediateActions) == 0 && len(p.EmergencyContacts) == 0)
}

// Envelope wraps the results of the privacy endpoints.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}
