package registry

import (
	"sync"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

// Sink is the outbound half of a connection. Implementations must not
// block: a send to a gone or saturated connection returns an error and
// the event is dropped.
type Sink interface {
	Send(event *models.Event) error
}

// Registry maps a logical identity (user or kassa) to its live sink.
// An identity holds at most one entry; registering again supersedes
// the previous sink without touching the physical connection.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

func New() *Registry {
	return &Registry{
		sinks: make(map[string]Sink),
	}
}

// Register binds id to sink and returns the superseded sink, if any.
func (r *Registry) Register(id string, sink Sink) Sink {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sinks[id]
	r.sinks[id] = sink
	return prev
}

// Unregister removes the entry for id, but only while sink is still the
// current one. A stale disconnect arriving after a reconnect superseded
// the sink must not kick out the new connection.
func (r *Registry) Unregister(id string, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sinks[id]
	if !ok || current != sink {
		return false
	}
	delete(r.sinks, id)
	return true
}

func (r *Registry) IsLive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sinks[id]
	return ok
}

// Send delivers event to the sink registered under id. Returns false
// when there is no live sink or the sink rejected the event.
func (r *Registry) Send(id string, event *models.Event) bool {
	r.mu.RLock()
	sink, ok := r.sinks[id]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	return sink.Send(event) == nil
}

// Broadcast sends event to every registered sink except the identity
// named by except (empty string excludes nobody).
func (r *Registry) Broadcast(event *models.Event, except string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, sink := range r.sinks {
		if id == except {
			continue
		}
		sink.Send(event)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}
