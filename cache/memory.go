package cache

import (
	"context"
	"sync"
	"time"

	"occupancy-predictor/models"
)

// MemoryStore keeps room summaries in process when no Redis is configured.
// Entries older than the TTL are treated as absent.
type MemoryStore struct {
	mu        sync.RWMutex
	ttl       time.Duration
	summaries map[string]memoryEntry
	now       func() time.Time
}

type memoryEntry struct {
	summary models.RoomSummary
	savedAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:       ttl,
		summaries: make(map[string]memoryEntry),
		now:       time.Now,
	}
}

func (ms *MemoryStore) SaveSummary(_ context.Context, summary models.RoomSummary) error {
	ms.mu.Lock()
	ms.summaries[summary.RoomID] = memoryEntry{summary: summary, savedAt: ms.now()}
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) GetSummary(_ context.Context, roomID string) (*models.RoomSummary, error) {
	ms.mu.RLock()
	e, ok := ms.summaries[roomID]
	ms.mu.RUnlock()

	if !ok || ms.now().Sub(e.savedAt) > ms.ttl {
		return nil, nil
	}
	summary := e.summary
	return &summary, nil
}
