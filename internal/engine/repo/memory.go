package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	errx "github.com/insightbot-core/engine/internal/core/error"
	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/model"
)

// MemoryStateRepository is an in-process StateRepository and TableStore.
// State is copied through JSON on load/save so callers never share
// pointers with the store, matching the Redis round-trip semantics.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	states map[string][]byte
	tables map[string][]byte
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		states: map[string][]byte{},
		tables: map[string][]byte{},
	}
}

func (r *MemoryStateRepository) LoadState(_ context.Context, sessionID string) (*model.ConversationState, error) {
	r.mu.RLock()
	raw, ok := r.states[sessionID]
	r.mu.RUnlock()
	if !ok {
		return model.NewConversationState(sessionID), nil
	}
	var st model.ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *MemoryStateRepository) SaveState(_ context.Context, state *model.ConversationState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.states[state.SessionID] = b
	r.mu.Unlock()
	return nil
}

func (r *MemoryStateRepository) ClearState(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.states, sessionID)
	delete(r.tables, sessionID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryStateRepository) SaveTables(_ context.Context, sessionID string, tables map[string]*dataset.Table) error {
	b, err := json.Marshal(tables)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.tables[sessionID] = b
	r.mu.Unlock()
	return nil
}

func (r *MemoryStateRepository) LoadTables(_ context.Context, sessionID string) (map[string]*dataset.Table, error) {
	r.mu.RLock()
	raw, ok := r.tables[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, errx.New(nil, http.StatusNotFound, errx.SessionNotFoundMessage)
	}
	tables := map[string]*dataset.Table{}
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

var _ model.StateRepository = (*MemoryStateRepository)(nil)
var _ model.TableStore = (*MemoryStateRepository)(nil)
