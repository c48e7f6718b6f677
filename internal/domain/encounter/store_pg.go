package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists aggregates as JSONB rows. The created_at and updated_at
// columns mirror the aggregate's timestamps so listing can order in SQL
// without decoding every record.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, id string) (*Encounter, error) {
	var record []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM encounters WHERE id = $1`, id).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get encounter %s: %w", id, err)
	}
	var e Encounter
	if err := json.Unmarshal(record, &e); err != nil {
		return nil, fmt.Errorf("decode encounter %s: %w", id, err)
	}
	return &e, nil
}

func (s *PGStore) Put(ctx context.Context, e *Encounter) error {
	record, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode encounter %s: %w", e.AppointmentID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO encounters (id, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		e.AppointmentID, record, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put encounter %s: %w", e.AppointmentID, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM encounters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete encounter %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]*Encounter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM encounters ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	defer rows.Close()

	var out []*Encounter
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("list encounters: %w", err)
		}
		var e Encounter
		if err := json.Unmarshal(record, &e); err != nil {
			return nil, fmt.Errorf("list encounters: decode: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	return out, nil
}
