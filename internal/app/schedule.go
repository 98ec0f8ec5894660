package app

import (
	"context"

	"github.com/dkeye/LiveClass/internal/domain"
)

// MemorySchedules serves sessions declared in configuration.
// Read-only after construction.
type MemorySchedules struct {
	specs map[domain.RoomID]domain.RoomSpec
}

func NewMemorySchedules(specs ...domain.RoomSpec) *MemorySchedules {
	s := &MemorySchedules{specs: make(map[domain.RoomID]domain.RoomSpec, len(specs))}
	for _, spec := range specs {
		s.specs[spec.ID] = spec
	}
	return s
}

func (s *MemorySchedules) Lookup(_ context.Context, id domain.RoomID) (domain.RoomSpec, error) {
	spec, ok := s.specs[id]
	if !ok {
		return domain.RoomSpec{}, domain.ErrRoomNotFound
	}
	return spec, nil
}

// ScheduleAuthorizer lets the scheduled instructor host. A session without
// an instructor lets anyone claim the seat.
type ScheduleAuthorizer struct{}

func (ScheduleAuthorizer) CanHost(_ context.Context, spec domain.RoomSpec, id domain.ParticipantID) bool {
	return spec.HostID == "" || spec.HostID == id
}
