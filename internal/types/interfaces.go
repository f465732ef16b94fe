// internal/types/interfaces.go
package types

import (
	"context"
	"encoding/json"
)

// CredentialStore persists the access token across process restarts.
// Load returns "" when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

type TranscriptStore interface {
	Append(ctx context.Context, msg *Message) error
	Tail(ctx context.Context, id ConversationID, limit int) ([]*Message, error)
	Count(ctx context.Context, id ConversationID) (int64, error)
	List(ctx context.Context) ([]*ConversationSummary, error)
}

type ExportStore interface {
	Put(ctx context.Context, kind string, data json.RawMessage) (ExportID, error)
	Get(ctx context.Context, id ExportID) (json.RawMessage, error)
	List(ctx context.Context) ([]*ExportMeta, error)
}
