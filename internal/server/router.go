package server

import (
	"errors"
	"sync"
)

var (
	// ErrRecipientOffline is returned by Unicast when no sink is registered
	// under the id.
	ErrRecipientOffline = errors.New("recipient offline")
	// ErrDeliveryDropped is returned by Unicast when the sink refused the frame.
	ErrDeliveryDropped = errors.New("delivery dropped")
)

// Sink accepts outbound frames for one connection.
// Deliver must not block; it returns false when the frame was not queued.
type Sink interface {
	Deliver(frame []byte) bool
}

// Router fans encoded frames out to the sinks of joined connections.
type Router struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{sinks: make(map[string]Sink)}
}

// Add registers sink under id, replacing any previous sink.
func (r *Router) Add(id string, sink Sink) {
	r.mu.Lock()
	r.sinks[id] = sink
	r.mu.Unlock()
}

// Remove drops the sink for id and reports whether one was present.
func (r *Router) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[id]; !ok {
		return false
	}
	delete(r.sinks, id)
	return true
}

// Len returns the number of registered sinks.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Broadcast delivers frame to every sink except exclude and returns the ids
// whose sink refused it.
func (r *Router) Broadcast(frame []byte, exclude string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failed []string
	for id, sink := range r.sinks {
		if exclude != "" && id == exclude {
			continue
		}
		if !sink.Deliver(frame) {
			failed = append(failed, id)
		}
	}
	return failed
}

// Unicast delivers frame to the sink registered under id.
func (r *Router) Unicast(id string, frame []byte) error {
	r.mu.RLock()
	sink, ok := r.sinks[id]
	r.mu.RUnlock()
	if !ok {
		return ErrRecipientOffline
	}
	if !sink.Deliver(frame) {
		return ErrDeliveryDropped
	}
	return nil
}
