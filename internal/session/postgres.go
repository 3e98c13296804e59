package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearglass/quote-wizard/internal/wizard"
)

// Postgres хранит сессию целиком как JSONB-снимок.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgres(pool *pgxpool.Pool, ttl time.Duration) *Postgres {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Postgres{pool: pool, ttl: ttl}
}

func (r *Postgres) Get(ctx context.Context, id string) (*wizard.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT payload, created_at FROM wizard_sessions WHERE id = $1`, id)

	var raw []byte
	var createdAt time.Time
	if err := row.Scan(&raw, &createdAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if createdAt.Before(cutoff(r.ttl)) {
		// Просроченную запись чистим сразу: на загрузке клиент получит
		// свежую сессию в начальном состоянии.
		_ = r.Delete(ctx, id)
		return nil, nil
	}

	var s wizard.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *Postgres) Put(ctx context.Context, s *wizard.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO wizard_sessions (id, payload, created_at, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (id) DO UPDATE SET
		  payload=$2, created_at=$3, updated_at=now()
	`, s.ID, raw, s.CreatedAt)
	return err
}

func (r *Postgres) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM wizard_sessions WHERE id = $1`, id)
	return err
}

func (r *Postgres) List(ctx context.Context) ([]*wizard.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payload FROM wizard_sessions
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`, cutoff(r.ttl))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*wizard.Session
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s wizard.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
