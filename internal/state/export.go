// internal/state/export.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/mayberry/internal/types"
)

// exportWrapper is the on-disk format for receipt files.
// Each receipt is stored as {"meta": ..., "data": ...}.
type exportWrapper struct {
	Meta *types.ExportMeta `json:"meta"`
	Data json.RawMessage   `json:"data"`
}

// ExportStore keeps the receipts returned by the privacy data-export and
// data-deletion calls, one JSON file per receipt under exports/.
type ExportStore struct {
	root string
}

// NewExportStore creates a new file-backed ExportStore rooted at the given directory.
func NewExportStore(root string) *ExportStore {
	return &ExportStore{root: root}
}

func (s *ExportStore) exportsDir() string {
	return filepath.Join(s.root, "exports")
}

func (s *ExportStore) exportPath(id types.ExportID) string {
	return filepath.Join(s.exportsDir(), string(id)+".json")
}

func (s *ExportStore) readWrapper(path string) (*exportWrapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("receipt not found: %s", strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var wrapper exportWrapper
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &wrapper, nil
}

// Put stores a receipt of the given kind and returns its ID.
func (s *ExportStore) Put(_ context.Context, kind string, data json.RawMessage) (types.ExportID, error) {
	id := types.NewExportID()
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	wrapper := &exportWrapper{
		Meta: &types.ExportMeta{
			ID:        id,
			Kind:      kind,
			CreatedAt: time.Now(),
		},
		Data: data,
	}

	content, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}

	if err := os.MkdirAll(s.exportsDir(), 0o700); err != nil {
		return "", fmt.Errorf("create exports dir: %w", err)
	}

	// Atomic write via temp file + rename
	target := s.exportPath(id)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return "", fmt.Errorf("write temp receipt: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp receipt: %w", err)
	}

	return id, nil
}

// Get returns the raw data of the given receipt.
func (s *ExportStore) Get(_ context.Context, id types.ExportID) (json.RawMessage, error) {
	wrapper, err := s.readWrapper(s.exportPath(id))
	if err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

// List returns the metadata of every stored receipt, oldest first.
func (s *ExportStore) List(_ context.Context) ([]*types.ExportMeta, error) {
	matches, err := filepath.Glob(filepath.Join(s.exportsDir(), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob receipts: %w", err)
	}

	metas := make([]*types.ExportMeta, 0, len(matches))
	for _, path := range matches {
		wrapper, err := s.readWrapper(path)
		if err != nil {
			return nil, err
		}
		metas = append(metas, wrapper.Meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	return metas, nil
}
