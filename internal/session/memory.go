package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the token in process.
type MemoryStore struct {
	mu       sync.Mutex
	token    string
	nextID   int
	watchers map[int]func(string)
}

func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token, watchers: make(map[int]func(string))}
}

func (m *MemoryStore) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) SetToken(ctx context.Context, token string) error {
	m.set(token)
	return nil
}

func (m *MemoryStore) ClearToken(ctx context.Context) error {
	m.set("")
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context, fn func(token string)) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.watchers, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) set(token string) {
	m.mu.Lock()
	changed := m.token != token
	m.token = token
	watchers := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range watchers {
		fn(token)
	}
}
