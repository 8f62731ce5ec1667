package internal

import "sync"

// PresenceTracker keeps counts of active websocket connections per display
// name. Names are opaque client-supplied strings, so two connections using
// the same name count as one online user.
type PresenceTracker struct {
	mu     sync.Mutex
	online map[string]int
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{online: make(map[string]int)}
}

func (p *PresenceTracker) Increment(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[name]++
	return p.online[name]
}

func (p *PresenceTracker) Decrement(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count, ok := p.online[name]; ok {
		if count <= 1 {
			delete(p.online, name)
			return 0
		}
		p.online[name] = count - 1
		return p.online[name]
	}
	return 0
}

func (p *PresenceTracker) Online(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[name] > 0
}

func (p *PresenceTracker) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}

// Names returns the currently online display names for /stats.
func (p *PresenceTracker) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.online))
	for name := range p.online {
		names = append(names, name)
	}
	return names
}
