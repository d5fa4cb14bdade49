package connection

import "sync"

// Registry holds the desired subscriptions: one handler per channel, kept
// in first-subscribe order so replays are deterministic.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]registration
	nextID  uint64
}

type registration struct {
	id      uint64
	handler Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Set stores handler for channel, replacing any previous one, and returns
// an id identifying this registration. A replaced channel keeps its place.
func (r *Registry) Set(channel string, handler Handler) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	if _, ok := r.entries[channel]; !ok {
		r.order = append(r.order, channel)
	}
	r.entries[channel] = registration{id: r.nextID, handler: handler}
	return r.nextID
}

// Remove deletes channel if it is still held by registration id.
func (r *Registry) Remove(channel string, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[channel]
	if !ok || reg.id != id {
		return false
	}
	delete(r.entries, channel)
	for i, ch := range r.order {
		if ch == channel {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Handler returns the handler registered for channel.
func (r *Registry) Handler(channel string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[channel]
	return reg.handler, ok
}

// Channels returns the registered channels in registry order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.entries = make(map[string]registration)
}
