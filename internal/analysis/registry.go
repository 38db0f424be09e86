package analysis

import "sync"

// HistoryMessage is one in-memory conversation entry for a live session.
type HistoryMessage struct {
	Role string
	Text string
}

// Registry is the only mutable in-process shared state: the set of running
// session ids plus the per-session conversation history, both under one
// mutex.
type Registry struct {
	mu      sync.Mutex
	running map[string]struct{}
	history map[string][]HistoryMessage
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		running: make(map[string]struct{}),
		history: make(map[string][]HistoryMessage),
	}
}

// Claim marks a session as running. Returns false when the id is already
// claimed.
func (r *Registry) Claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[id]; ok {
		return false
	}
	r.running[id] = struct{}{}
	return true
}

// Release drops the running claim. Safe to call for unclaimed ids.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, id)
}

// Running reports whether the session currently holds a claim.
func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}

// AppendHistory records a conversation entry for the session.
func (r *Registry) AppendHistory(id, role, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[id] = append(r.history[id], HistoryMessage{Role: role, Text: text})
}

// History returns a copy of the session's conversation entries.
func (r *Registry) History(id string) []HistoryMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[id]
	out := make([]HistoryMessage, len(entries))
	copy(out, entries)
	return out
}

// Forget drops the conversation history, used when a session is deleted.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.history, id)
	delete(r.running, id)
}

// Snapshot lists the currently claimed session ids.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	return ids
}
