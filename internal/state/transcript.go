// internal/state/transcript.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/user/mayberry/internal/types"
)

// TranscriptStore is a JSONL-backed append-only message log.
// Messages are stored per conversation in conversations/<id>/messages.jsonl.
type TranscriptStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.ConversationID]*sync.Mutex
}

// NewTranscriptStore creates a new file-backed TranscriptStore rooted at the given directory.
func NewTranscriptStore(root string) *TranscriptStore {
	return &TranscriptStore{
		root:  root,
		locks: make(map[types.ConversationID]*sync.Mutex),
	}
}

// getLock returns the per-conversation mutex, creating one if it doesn't exist.
func (s *TranscriptStore) getLock(id types.ConversationID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

func (s *TranscriptStore) conversationsDir() string {
	return filepath.Join(s.root, "conversations")
}

func (s *TranscriptStore) messagesPath(id types.ConversationID) string {
	return filepath.Join(s.conversationsDir(), string(id), "messages.jsonl")
}

// read loads every message of a conversation. Caller must hold the lock.
func (s *TranscriptStore) read(id types.ConversationID) ([]*types.Message, error) {
	f, err := os.Open(s.messagesPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var messages []*types.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg types.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return messages, nil
}

// Append adds a message to its conversation's transcript.
func (s *TranscriptStore) Append(_ context.Context, msg *types.Message) error {
	if msg.ConversationID == "" {
		return fmt.Errorf("append message: missing conversation id")
	}
	lock := s.getLock(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	path := s.messagesPath(msg.ConversationID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Tail returns the last limit messages of a conversation. A limit <= 0
// returns all of them.
func (s *TranscriptStore) Tail(_ context.Context, id types.ConversationID, limit int) ([]*types.Message, error) {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	messages, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Count returns the number of stored messages of a conversation.
func (s *TranscriptStore) Count(_ context.Context, id types.ConversationID) (int64, error) {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	messages, err := s.read(id)
	if err != nil {
		return 0, err
	}
	return int64(len(messages)), nil
}

// List returns a summary of every stored conversation, most recently updated first.
func (s *TranscriptStore) List(ctx context.Context) ([]*types.ConversationSummary, error) {
	entries, err := os.ReadDir(s.conversationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.ConversationSummary{}, nil
		}
		return nil, fmt.Errorf("read conversations dir: %w", err)
	}

	summaries := make([]*types.ConversationSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := types.ConversationID(entry.Name())
		info, err := os.Stat(s.messagesPath(id))
		if err != nil {
			continue
		}
		count, err := s.Count(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &types.ConversationSummary{
			ConversationID: id,
			MessageCount:   count,
			UpdatedAt:      info.ModTime(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
