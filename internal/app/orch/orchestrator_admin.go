package orch

import (
	"context"
	"errors"

	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/domain"
)

// Operations below address rooms by id. They back the HTTP API.

func (o *Orchestrator) room(id domain.RoomID) (*app.Room, error) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func goneErr(err error) error {
	if errors.Is(err, app.ErrRoomGone) {
		return domain.ErrRoomNotFound
	}
	return err
}

func (o *Orchestrator) RoomInfo(ctx context.Context, id domain.RoomID) (domain.RoomInfo, error) {
	room, err := o.room(id)
	if err != nil {
		return domain.RoomInfo{}, err
	}
	info, err := room.Info(ctx)
	return info, goneErr(err)
}

// ListRooms skips rooms destroyed while listing.
func (o *Orchestrator) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	rooms := o.Rooms.List()
	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		info, err := room.Info(ctx)
		if errors.Is(err, app.ErrRoomGone) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (o *Orchestrator) Participants(ctx context.Context, id domain.RoomID) ([]domain.Participant, error) {
	room, err := o.room(id)
	if err != nil {
		return nil, err
	}
	ps, err := room.Participants(ctx)
	return ps, goneErr(err)
}

// EndRoom is the by-id form of End; caller still needs host authority.
func (o *Orchestrator) EndRoom(ctx context.Context, id domain.RoomID, caller domain.ParticipantID, reason string) error {
	room, err := o.room(id)
	if err != nil {
		return err
	}
	return goneErr(room.End(ctx, caller, reason))
}

func (o *Orchestrator) RemoveFromRoom(ctx context.Context, id domain.RoomID, caller, target domain.ParticipantID, reason string) error {
	room, err := o.room(id)
	if err != nil {
		return err
	}
	if err := room.RemoveParticipant(ctx, caller, target, reason); err != nil {
		return goneErr(err)
	}
	o.Registry.ClearRoom(target, id)
	return nil
}

// Shutdown ends every room.
func (o *Orchestrator) Shutdown(ctx context.Context, reason string) {
	o.Rooms.Shutdown(ctx, reason)
}
