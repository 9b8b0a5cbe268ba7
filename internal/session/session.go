// Package session stores open map states between requests.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview"
)

const DefaultTTL = 12 * time.Hour

// Store keeps map states keyed by session ID. Get slides the TTL; an
// expired or unknown ID is NotFound.
type Store interface {
	Get(ctx context.Context, id string) (*mapview.State, error)
	Put(ctx context.Context, st *mapview.State) error
	Delete(ctx context.Context, id string) error
	// UserSessions lists the live session IDs opened by userID.
	UserSessions(ctx context.Context, userID string) ([]string, error)
}

func notFound(id string) error {
	return domain.NotFound("sessions.get", "session", id)
}

type memEntry struct {
	userID  string
	data    []byte
	expires time.Time
}

// Memory is an in-process Store. States are kept serialized so callers
// never share a live value, matching the Redis store.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, entries: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, id string) (*mapview.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	now := m.now()
	if !ok || now.After(e.expires) {
		delete(m.entries, id)
		return nil, notFound(id)
	}
	e.expires = now.Add(m.ttl)
	m.entries[id] = e
	return decode(e.data)
}

func (m *Memory) Put(_ context.Context, st *mapview.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.entries[st.ID] = memEntry{userID: st.UserID, data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *Memory) UserSessions(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	var ids []string
	for id, e := range m.entries {
		if e.userID == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// sweep drops expired entries. Callers hold mu.
func (m *Memory) sweep() {
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
		}
	}
}

func decode(data []byte) (*mapview.State, error) {
	var st mapview.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &st, nil
}
