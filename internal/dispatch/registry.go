package dispatch

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/session"
)

// HandlerFunc receives a decoded event. The payload is the raw frame as it
// arrived on the wire, so handlers can pick out whichever fields they need.
// The snapshot reflects identity state at dispatch time.
type HandlerFunc func(evt model.EventType, payload json.RawMessage, sess session.Snapshot)

type entry struct {
	id int64
	fn HandlerFunc
}

// Registry routes events to handlers. Handlers registered for a specific
// event type run before wildcard handlers, each group in registration order.
type Registry struct {
	mu     sync.RWMutex
	nextID int64
	byType map[model.EventType][]entry
	any    []entry
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byType: make(map[model.EventType][]entry),
		logger: logger.With("component", "dispatch"),
	}
}

// On registers fn for a single event type and returns a removal func.
// Calling the removal func more than once is harmless.
func (r *Registry) On(evt model.EventType, fn HandlerFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.byType[evt] = append(r.byType[evt], entry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byType[evt] = removeEntry(r.byType[evt], id)
		if len(r.byType[evt]) == 0 {
			delete(r.byType, evt)
		}
	}
}

// OnAny registers fn for every event type and returns a removal func.
func (r *Registry) OnAny(fn HandlerFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.any = append(r.any, entry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.any = removeEntry(r.any, id)
	}
}

// Dispatch delivers one event to all matching handlers synchronously.
// It returns the number of handlers invoked.
func (r *Registry) Dispatch(evt model.EventType, payload json.RawMessage, sess session.Snapshot) int {
	r.mu.RLock()
	exact := make([]entry, len(r.byType[evt]))
	copy(exact, r.byType[evt])
	wild := make([]entry, len(r.any))
	copy(wild, r.any)
	r.mu.RUnlock()

	for _, e := range exact {
		e.fn(evt, payload, sess)
	}
	for _, e := range wild {
		e.fn(evt, payload, sess)
	}
	return len(exact) + len(wild)
}

// HandlerCount reports how many handlers would fire for evt.
func (r *Registry) HandlerCount(evt model.EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[evt]) + len(r.any)
}

func removeEntry(entries []entry, id int64) []entry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}
