package transformers

import "sync"

// History retains the last transformed reading per room so lag features can
// be derived. It is process-local and never persisted.
type History struct {
	mu   sync.Mutex
	last map[string]Transformed
}

func NewHistory() *History {
	return &History{last: make(map[string]Transformed)}
}

// Swap stores cur as the room's latest reading and returns the one it
// replaced, or nil if the room had none.
func (h *History) Swap(roomID string, cur Transformed) *Transformed {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, ok := h.last[roomID]
	h.last[roomID] = cur
	if !ok {
		return nil
	}
	return &prev
}

// Reset forgets every room, e.g. after a model reload changes the transforms.
func (h *History) Reset() {
	h.mu.Lock()
	h.last = make(map[string]Transformed)
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.last)
}
