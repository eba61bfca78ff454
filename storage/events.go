package storage

import (
	"sync"

	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// WriteEvent describes one observed field/container write, delivered
// synchronously to subscribers on the writer's own goroutine, after the
// write is visible and before control returns to the caller.
type WriteEvent struct {
	ContainerID uint64
	Field       string // "" for a whole-container event
	FieldKind   typekind.Kind
}

type eventHandler struct {
	id   uint64
	fn   func(WriteEvent)
	name string // "" for a whole-container handler
}

// containerEvents is the per-container-id subscription record. It is
// keyed by (container id, generation) so pool reuse invalidates every
// subscription registered against a prior incarnation: a stale record's
// notify/dispose calls become inert.
type containerEvents struct {
	generation    uint64
	fieldVersion  map[string]uint64
	handlers      []*eventHandler
	nextHandlerID uint64
}

// eventStore lives on the Registry: one mutex, one map keyed by container
// id, mirroring the registry's own single-lock shape (spec §4.7/§5).
type eventStore struct {
	mu    sync.Mutex
	table map[uint64]*containerEvents
}

func newEventStore() *eventStore {
	return &eventStore{table: make(map[uint64]*containerEvents)}
}

func (s *eventStore) entryLocked(c *Container) *containerEvents {
	ce := s.table[c.id]
	if ce == nil || ce.generation != c.generation {
		ce = &containerEvents{generation: c.generation, fieldVersion: make(map[string]uint64)}
		s.table[c.id] = ce
	}
	return ce
}

// Subscription is a disposable handle returned by subscribe; Dispose is
// idempotent and a no-op once the backing container's generation has
// already moved on.
type Subscription struct {
	store       *eventStore
	containerID uint64
	generation  uint64
	handlerID   uint64
}

// Dispose removes the subscription's handler, if its container incarnation
// is still current.
func (s Subscription) Dispose() {
	if s.store == nil {
		return
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	ce := s.store.table[s.containerID]
	if ce == nil || ce.generation != s.generation {
		return
	}
	for i, h := range ce.handlers {
		if h.id == s.handlerID {
			ce.handlers = append(ce.handlers[:i], ce.handlers[i+1:]...)
			return
		}
	}
}

// subscribe registers handler for writes to name ("" = whole container),
// scoped to c's current generation.
func subscribe(reg *Registry, c *Container, name string, handler func(WriteEvent)) Subscription {
	reg.events.mu.Lock()
	defer reg.events.mu.Unlock()
	ce := reg.events.entryLocked(c)
	ce.nextHandlerID++
	ce.handlers = append(ce.handlers, &eventHandler{id: ce.nextHandlerID, fn: handler, name: name})
	return Subscription{store: reg.events, containerID: c.id, generation: c.generation, handlerID: ce.nextHandlerID}
}

// BumpFieldVersion returns a new version ticket for (c, name), scoped to
// c's current generation. Structural edits (delete/rename) call this to
// invalidate in-flight writer tickets obtained before the edit.
func BumpFieldVersion(reg *Registry, c *Container, name string) uint64 {
	reg.events.mu.Lock()
	defer reg.events.mu.Unlock()
	ce := reg.events.entryLocked(c)
	ce.fieldVersion[name]++
	return ce.fieldVersion[name]
}

// FieldVersion returns the current version ticket for (c, name) without
// bumping it.
func FieldVersion(reg *Registry, c *Container, name string) uint64 {
	reg.events.mu.Lock()
	defer reg.events.mu.Unlock()
	return reg.events.entryLocked(c).fieldVersion[name]
}

// NotifyField fires name's field-scoped and whole-container handlers for
// c. If ticket is non-nil, the notification is dropped when it no longer
// matches the field's current version (ABA defense per spec §4.7).
func NotifyField(reg *Registry, c *Container, name string, kind typekind.Kind, ticket *uint64) {
	reg.events.mu.Lock()
	ce, ok := reg.events.table[c.id]
	if !ok || ce.generation != c.generation {
		reg.events.mu.Unlock()
		return
	}
	if ticket != nil && ce.fieldVersion[name] != *ticket {
		reg.events.mu.Unlock()
		return
	}
	matched := make([]*eventHandler, 0, len(ce.handlers))
	for _, h := range ce.handlers {
		if h.name == "" || h.name == name {
			matched = append(matched, h)
		}
	}
	reg.events.mu.Unlock()

	ev := WriteEvent{ContainerID: c.id, Field: name, FieldKind: kind}
	for _, h := range matched {
		h.fn(ev)
	}
}

// notifyField is the internal convenience used after every successful
// field write; it looks up the field's declared kind itself and fires
// without a ticket (i.e. always delivers, since no in-flight ticket was
// issued for this write).
func notifyField(c *Container, name string) {
	if c.reg == nil {
		return
	}
	k, _, err := c.FieldKind(name)
	if err != nil {
		k = typekind.Unknown
	}
	NotifyField(c.reg, c, name, k, nil)
}
