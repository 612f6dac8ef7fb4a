package session

import (
	"sync"
	"time"
)

// Pool keeps one Controller per conversation key, e.g. a Slack user in a
// channel.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
	factory func() *Controller
	now     func() time.Time
}

type poolEntry struct {
	ctrl     *Controller
	lastUsed time.Time
}

func NewPool(factory func() *Controller) *Pool {
	return &Pool{
		entries: make(map[string]*poolEntry),
		factory: factory,
		now:     time.Now,
	}
}

// Get returns the controller for key, creating it on first use.
func (p *Pool) Get(key string) *Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		e = &poolEntry{ctrl: p.factory()}
		p.entries[key] = e
	}
	e.lastUsed = p.now()
	return e.ctrl
}

// Lookup returns the controller for key without creating one.
func (p *Pool) Lookup(key string) (*Controller, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	e.lastUsed = p.now()
	return e.ctrl, true
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Sweep drops controllers unused for longer than maxIdle. Controllers with a
// request still pending are kept. It returns how many were dropped.
func (p *Pool) Sweep(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-maxIdle)
	dropped := 0
	for key, e := range p.entries {
		if e.lastUsed.After(cutoff) {
			continue
		}
		if e.ctrl.Snapshot().State.Pending() {
			continue
		}
		delete(p.entries, key)
		dropped++
	}
	return dropped
}
