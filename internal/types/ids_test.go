// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewConversationID(t *testing.T) {
	id := NewConversationID()
	if id == "" {
		t.Error("expected non-empty ConversationID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestConversationIDsAreUnique(t *testing.T) {
	if NewConversationID() == NewConversationID() {
		t.Error("expected distinct conversation IDs")
	}
	if NewExportID() == NewExportID() {
		t.Error("expected distinct export IDs")
	}
}
