// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/mayberry/internal/types"

// Compile-time interface compliance checks.
var _ types.CredentialStore = (*CredentialStore)(nil)
var _ types.TranscriptStore = (*TranscriptStore)(nil)
var _ types.ExportStore = (*ExportStore)(nil)
