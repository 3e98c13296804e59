// Package session — хранение состояния мастера между HTTP-запросами.
// По умолчанию активна только память процесса; постgres-реализация включается
// флагом postgres.enabled и реализует контракт 7-дневного срока жизни:
// просроченная сессия на загрузке сбрасывается в начальное состояние.
package session

import (
	"context"
	"time"

	"github.com/clearglass/quote-wizard/internal/wizard"
)

// DefaultTTL — срок жизни сессии с момента создания.
const DefaultTTL = 7 * 24 * time.Hour

type Repo interface {
	// Get возвращает (nil, nil), если сессии нет или она просрочена.
	Get(ctx context.Context, id string) (*wizard.Session, error)
	Put(ctx context.Context, s *wizard.Session) error
	Delete(ctx context.Context, id string) error
	// List — живые сессии для staff-экспорта.
	List(ctx context.Context) ([]*wizard.Session, error)
}

func expired(s *wizard.Session, limit time.Time) bool {
	return s.CreatedAt.Before(limit)
}

func cutoff(ttl time.Duration) time.Time {
	return time.Now().UTC().Add(-ttl)
}
