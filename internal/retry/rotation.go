package retry

import "sync"

// Rotation is a stateful round-robin selector over alternate upstream
// endpoints. It is injected into download retries so that endpoint lists
// remain configuration, not code.
type Rotation struct {
	mu        sync.Mutex
	endpoints []string
	next      int
}

func NewRotation(endpoints []string) *Rotation {
	return &Rotation{endpoints: append([]string(nil), endpoints...)}
}

// Next returns the next endpoint in round-robin order, or "" when no
// alternates are configured.
func (r *Rotation) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return ""
	}
	ep := r.endpoints[r.next%len(r.endpoints)]
	r.next++
	return ep
}

func (r *Rotation) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}
