package orch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

const joinAttempts = 3

// Join puts pid into roomID, leaving any other room first. A room that was
// ended is replaced by a fresh scheduled one.
func (o *Orchestrator) Join(ctx context.Context, pid domain.ParticipantID, roomID domain.RoomID, p protocol.JoinPayload) (domain.Participant, error) {
	conn, ok := o.Registry.Conn(pid)
	if !ok {
		return domain.Participant{}, domain.ErrChannelDisconnected
	}
	name, err := domain.NormalizeDisplayName(p.DisplayName)
	if err != nil {
		return domain.Participant{}, err
	}
	spec, err := o.resolve(ctx, roomID)
	if err != nil {
		return domain.Participant{}, err
	}

	if prev, ok := o.Registry.RoomOf(pid); ok && prev != roomID {
		if err := o.Leave(ctx, pid); err != nil && !errors.Is(err, domain.ErrNotInRoom) {
			return domain.Participant{}, err
		}
		log.Info().Str("module", "orch").Str("participant_id", string(pid)).Str("from_room", string(prev)).Msg("left previous room")
	}

	req := app.JoinRequest{
		ParticipantID: pid,
		DisplayName:   name,
		AsHost:        p.AsHost,
		HostEligible:  p.AsHost && o.Authz != nil && o.Authz.CanHost(ctx, spec, pid),
		Conn:          conn,
	}
	for range joinAttempts {
		room := o.Rooms.GetOrCreate(spec)
		joined, err := room.Join(ctx, req)
		if errors.Is(err, app.ErrRoomGone) {
			continue
		}
		if err != nil {
			return domain.Participant{}, err
		}
		o.Registry.UpdateRoom(pid, roomID)
		return joined, nil
	}
	return domain.Participant{}, domain.ErrRoomEnded
}

func (o *Orchestrator) resolve(ctx context.Context, id domain.RoomID) (domain.RoomSpec, error) {
	spec, err := o.Schedules.Lookup(ctx, id)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound) && o.AllowAdhoc:
		spec = domain.RoomSpec{ID: id}
	case err != nil:
		return domain.RoomSpec{}, err
	}
	if !spec.EndsAt.IsZero() && !time.Now().Before(spec.EndsAt) {
		return domain.RoomSpec{}, domain.ErrRoomEnded
	}
	if spec.MaxParticipants == 0 {
		spec.MaxParticipants = o.DefaultMaxParticipants
	}
	return spec, nil
}

// Leave takes pid out of its room; the channel stays open.
func (o *Orchestrator) Leave(ctx context.Context, pid domain.ParticipantID) error {
	room, err := o.current(pid)
	if err != nil {
		return err
	}
	o.Registry.ClearRoom(pid, room.ID())
	return roomErr(room.Leave(ctx, pid))
}

func (o *Orchestrator) Mute(ctx context.Context, caller, target domain.ParticipantID, muted bool) error {
	room, err := o.current(caller)
	if err != nil {
		return err
	}
	return roomErr(room.SetMute(ctx, caller, target, muted))
}

func (o *Orchestrator) Remove(ctx context.Context, caller, target domain.ParticipantID, reason string) error {
	room, err := o.current(caller)
	if err != nil {
		return err
	}
	if err := room.RemoveParticipant(ctx, caller, target, reason); err != nil {
		return roomErr(err)
	}
	o.Registry.ClearRoom(target, room.ID())
	return nil
}

// End closes the caller's room for everyone.
func (o *Orchestrator) End(ctx context.Context, caller domain.ParticipantID, reason string) error {
	room, err := o.current(caller)
	if err != nil {
		return err
	}
	return roomErr(room.End(ctx, caller, reason))
}
