package sessionstore

import (
	"context"
	"sync"

	"github.com/reclaimai/reclaim/internal/domain/auth"
)

// Memory is the single-process store. Events are delivered synchronously on
// the publishing goroutine.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
	subs     map[string]map[int]func(auth.Event)
	nextID   int
}

var (
	_ auth.Persistence = (*Memory)(nil)
	_ auth.Bus         = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]auth.Session),
		subs:     make(map[string]map[int]func(auth.Event)),
	}
}

func (m *Memory) Load(_ context.Context, sid string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) Save(_ context.Context, sid string, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		delete(m.sessions, sid)
		return nil
	}
	m.sessions[sid] = *s
	return nil
}

func (m *Memory) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	return nil
}

func (m *Memory) Publish(_ context.Context, sid string, ev auth.Event) error {
	m.mu.Lock()
	fns := make([]func(auth.Event), 0, len(m.subs[sid]))
	for _, fn := range m.subs[sid] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, sid string, fn func(auth.Event)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	if m.subs[sid] == nil {
		m.subs[sid] = make(map[int]func(auth.Event))
	}
	m.subs[sid][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[sid], id)
			if len(m.subs[sid]) == 0 {
				delete(m.subs, sid)
			}
		})
	}, nil
}

// Subscribers reports how many listeners sid has.
func (m *Memory) Subscribers(sid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[sid])
}
