package domain

import "time"

type RoomID string

type RoomStatus string

const (
	StatusScheduled RoomStatus = "scheduled"
	StatusLive      RoomStatus = "live"
	StatusEnded     RoomStatus = "ended"
)

func (s RoomStatus) rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusLive:
		return 1
	case StatusEnded:
		return 2
	}
	return -1
}

// CanAdvance reports whether moving from s to next is a forward step.
// scheduled may jump straight to ended when a session is cancelled.
func (s RoomStatus) CanAdvance(next RoomStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to > from
}

// RoomSpec is what the scheduling system knows about a live session.
type RoomSpec struct {
	ID              RoomID        `json:"id"`
	Title           string        `json:"title,omitempty"`
	HostID          ParticipantID `json:"hostId,omitempty"`
	MaxParticipants int           `json:"maxParticipants"`
	StartsAt        time.Time     `json:"startsAt,omitzero"`
	EndsAt          time.Time     `json:"endsAt,omitzero"`
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID               RoomID        `json:"id"`
	Title            string        `json:"title,omitempty"`
	Status           RoomStatus    `json:"status"`
	HostID           ParticipantID `json:"hostId,omitempty"`
	HostConnected    bool          `json:"hostConnected"`
	ParticipantCount int           `json:"participantCount"`
	MaxParticipants  int           `json:"maxParticipants"`
	LiveSince        time.Time     `json:"liveSince,omitzero"`
}
