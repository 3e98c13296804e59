package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/clearglass/quote-wizard/internal/wizard"
)

// Memory — in-memory реализация; единственная активная, когда постоянное
// хранилище выключено. Наружу и внутрь ходят только снимки: как и у
// postgres-реализации, Get/Put/List не делят указатель с вызывающим,
// иначе чтения гонялись бы с пишущим контекстом сессии.
type Memory struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]*wizard.Session
}

func clone(s *wizard.Session) (*wizard.Session, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out wizard.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, data: make(map[string]*wizard.Session)}
}

func (m *Memory) Get(_ context.Context, id string) (*wizard.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	if expired(s, cutoff(m.ttl)) {
		delete(m.data, id)
		return nil, nil
	}
	return clone(s)
}

func (m *Memory) Put(_ context.Context, s *wizard.Session) error {
	c, err := clone(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[c.ID] = c
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *Memory) List(_ context.Context) ([]*wizard.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*wizard.Session, 0, len(m.data))
	limit := cutoff(m.ttl)
	for _, s := range m.data {
		if expired(s, limit) {
			continue
		}
		c, err := clone(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
