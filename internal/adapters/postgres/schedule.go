// Package postgres reads live sessions from the scheduling database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/domain"
)

const lookupQuery = `SELECT id, title, instructor_id, capacity, starts_at, ends_at
FROM live_classes WHERE id = $1`

// ScheduleStore resolves room ids against the live_classes table.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(ctx context.Context, dsn string) (*ScheduleStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping schedule db: %w", err)
	}
	log.Info().Str("module", "adapters.postgres").Msg("schedule store connected")
	return &ScheduleStore{db: db}, nil
}

type classRow struct {
	ID         string
	Title      sql.NullString
	Instructor sql.NullString
	Capacity   sql.NullInt64
	StartsAt   sql.NullTime
	EndsAt     sql.NullTime
}

func (r classRow) spec() domain.RoomSpec {
	spec := domain.RoomSpec{
		ID:     domain.RoomID(r.ID),
		Title:  r.Title.String,
		HostID: domain.ParticipantID(r.Instructor.String),
	}
	if r.Capacity.Valid && r.Capacity.Int64 > 0 {
		spec.MaxParticipants = int(r.Capacity.Int64)
	}
	if r.StartsAt.Valid {
		spec.StartsAt = r.StartsAt.Time
	}
	if r.EndsAt.Valid {
		spec.EndsAt = r.EndsAt.Time
	}
	return spec
}

func (s *ScheduleStore) Lookup(ctx context.Context, id domain.RoomID) (domain.RoomSpec, error) {
	var r classRow
	err := s.db.QueryRowContext(ctx, lookupQuery, string(id)).
		Scan(&r.ID, &r.Title, &r.Instructor, &r.Capacity, &r.StartsAt, &r.EndsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomSpec{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.RoomSpec{}, fmt.Errorf("lookup %s: %w", id, err)
	}
	return r.spec(), nil
}

func (s *ScheduleStore) Close() error {
	return s.db.Close()
}
