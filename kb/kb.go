package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/orbitsim/model"
)

// ErrBodyNotFound is returned when an ID does not refer to a registered body.
var ErrBodyNotFound = errors.New("body not found")

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventBodyAdded EventType = iota
)

// Event is emitted to subscribers when the arena changes shape.
type Event struct {
	Type   EventType
	Body   model.Body // copy for safety
	Counts Counts
}

// Counts summarises the registry contents per variant.
type Counts struct {
	Central  int
	Orbiting int
}

// Total returns the number of bodies of any kind.
func (c Counts) Total() int { return c.Central + c.Orbiting }

// Registry is an arena of body records indexed by a stable BodyID.
//
// The mutex guards the arena itself (insertion, lookup, listing). The body
// records are stored by pointer so the frame loop can update positions and
// phases in place; that loop is the only writer of body state.
type Registry struct {
	mu sync.RWMutex

	bodies []*model.Body // bodies[id-1]
	byName map[string]model.BodyID
	counts Counts

	subs    []subscriber
	nextSub uint64
}

type subscriber struct {
	token uint64
	fn    func(Event)
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]model.BodyID),
	}
}

// AddBody assigns b the next ID and stores it. Names must be unique and a
// variant must be set.
func (r *Registry) AddBody(b *model.Body) (model.BodyID, error) {
	if b == nil {
		return 0, fmt.Errorf("add body: nil body")
	}
	if b.Variant == nil {
		return 0, fmt.Errorf("add body %q: missing variant", b.Name)
	}

	r.mu.Lock()
	if b.Name != "" {
		if _, exists := r.byName[b.Name]; exists {
			r.mu.Unlock()
			return 0, fmt.Errorf("body with name %q already exists", b.Name)
		}
	}

	r.bodies = append(r.bodies, b)
	b.ID = model.BodyID(len(r.bodies))
	if b.Name != "" {
		r.byName[b.Name] = b.ID
	}
	switch b.Kind() {
	case model.KindCentral:
		r.counts.Central++
	case model.KindOrbiting:
		r.counts.Orbiting++
	}

	event := Event{
		Type:   EventBodyAdded,
		Body:   *b.Clone(),
		Counts: r.counts,
	}
	subs := append([]subscriber{}, r.subs...)
	r.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub.fn(event)
	}
	return b.ID, nil
}

// Body returns the body with the given ID.
func (r *Registry) Body(id model.BodyID) (*model.Body, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.bodies) {
		return nil, fmt.Errorf("body %d: %w", id, ErrBodyNotFound)
	}
	return r.bodies[id-1], nil
}

// BodyByName returns the body registered under name.
func (r *Registry) BodyByName(name string) (*model.Body, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("body %q: %w", name, ErrBodyNotFound)
	}
	return r.bodies[id-1], nil
}

// ListBodies returns a snapshot slice of all bodies in ID order.
func (r *Registry) ListBodies() []*model.Body {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*model.Body(nil), r.bodies...)
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bodies)
}

// Counts returns the per-variant body counts.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts
}

// Subscribe registers a callback for registry events. It returns an unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	token := r.nextSub
	r.subs = append(r.subs, subscriber{token: token, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, sub := range r.subs {
			if sub.token == token {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}
