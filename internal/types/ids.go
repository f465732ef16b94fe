// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ConversationID string
type ExportID string

// MessageID is a per-conversation ordinal starting at 1.
type MessageID int64

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewExportID() ExportID {
	return ExportID(uuid.New().String())
}
