// internal/types/models.go
package types

import (
	"time"

	"github.com/user/mayberry/pkg/medapi"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history.
type Message struct {
	ID                MessageID                `json:"id"`
	ConversationID    ConversationID           `json:"conversation_id"`
	Role              Role                     `json:"role"`
	Content           string                   `json:"content"`
	CreatedAt         time.Time                `json:"created_at"`
	RiskLevel         medapi.RiskLevel         `json:"risk_level,omitempty"`
	ConfidenceScore   *float64                 `json:"confidence_score,omitempty"`
	Recommendations   []string                 `json:"recommendations,omitempty"`
	Sources           []string                 `json:"sources,omitempty"`
	PrivacyStatus     *medapi.PrivacyStatus    `json:"privacy_status,omitempty"`
	EmergencyResponse *medapi.EmergencyPayload `json:"emergency_response,omitempty"`
	IsError           bool                     `json:"is_error,omitempty"`
}

// ConversationSummary describes a stored transcript.
type ConversationSummary struct {
	ConversationID ConversationID `json:"conversation_id"`
	MessageCount   int64          `json:"message_count"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ExportMeta describes a locally saved privacy receipt.
type ExportMeta struct {
	ID        ExportID  `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}
