package core

import (
	"context"

	"github.com/dkeye/LiveClass/internal/domain"
)

// ScheduleStore is the scheduling system's view of live sessions.
type ScheduleStore interface {
	// Lookup returns domain.ErrRoomNotFound for unknown ids.
	Lookup(ctx context.Context, id domain.RoomID) (domain.RoomSpec, error)
}

// Authorizer decides whether an asserted identity may claim the host seat.
type Authorizer interface {
	CanHost(ctx context.Context, spec domain.RoomSpec, id domain.ParticipantID) bool
}
