// Package orch ties signaling channels, the participant registry and the
// room actors together.
package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

type Orchestrator struct {
	Registry  *app.Registry
	Rooms     *app.RoomManager
	Schedules core.ScheduleStore
	Authz     core.Authorizer

	// AllowAdhoc admits ids the schedule does not know.
	AllowAdhoc             bool
	DefaultMaxParticipants int
}

// Connect binds a fresh signaling channel to pid. An older channel of the
// same participant is cancelled.
func (o *Orchestrator) Connect(pid domain.ParticipantID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.BindSignal(pid, conn, cancel)
}

// Disconnect forgets conn. Rooms notice the closed channel on their own.
func (o *Orchestrator) Disconnect(pid domain.ParticipantID, conn core.SignalConnection) {
	if o.Registry.Unbind(pid, conn) {
		log.Info().Str("module", "orch").Str("participant_id", string(pid)).Msg("signal disconnected")
	}
}

// Relay routes a point-to-point or broadcast envelope from its stamped sender.
func (o *Orchestrator) Relay(ctx context.Context, env protocol.Envelope) error {
	room, err := o.current(env.From)
	if err != nil {
		return err
	}
	return roomErr(room.Relay(ctx, env))
}

// current is the room pid last joined, if it still exists.
func (o *Orchestrator) current(pid domain.ParticipantID) (*app.Room, error) {
	id, ok := o.Registry.RoomOf(pid)
	if !ok {
		return nil, domain.ErrNotInRoom
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		o.Registry.ClearRoom(pid, id)
		return nil, domain.ErrNotInRoom
	}
	return room, nil
}

// roomErr maps a destroyed room to the participant's view of it.
func roomErr(err error) error {
	if errors.Is(err, app.ErrRoomGone) {
		return domain.ErrNotInRoom
	}
	return err
}
