package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomEnded           = errors.New("room has ended")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrTargetNotInRoom     = errors.New("target is not in the room")
	ErrMalformedEnvelope   = errors.New("malformed envelope")
	ErrChannelDisconnected = errors.New("channel disconnected")

	ErrNotInRoom    = errors.New("not in a room")
	ErrRoomOccupied = errors.New("room still has participants")
	ErrRateLimited  = errors.New("too many messages")
)

// Code maps an error onto the stable identifier sent to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRoomEnded):
		return "room_ended"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrTargetNotInRoom):
		return "target_not_in_room"
	case errors.Is(err, ErrMalformedEnvelope),
		errors.Is(err, ErrDisplayNameEmpty),
		errors.Is(err, ErrDisplayNameTooLong),
		errors.Is(err, ErrRoomIDInvalid):
		return "malformed_envelope"
	case errors.Is(err, ErrChannelDisconnected):
		return "channel_disconnected"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrRoomOccupied):
		return "room_occupied"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	}
	return "internal"
}
