// Package protocol defines the signaling envelopes exchanged with clients.
package protocol

import (
	"github.com/goccy/go-json"

	"github.com/dkeye/LiveClass/internal/domain"
)

type Kind string

const (
	KindJoin             Kind = "join"
	KindLeave            Kind = "leave"
	KindOffer            Kind = "offer"
	KindAnswer           Kind = "answer"
	KindICECandidate     Kind = "ice-candidate"
	KindChat             Kind = "chat"
	KindStreamUpdate     Kind = "stream-update"
	KindScreenShareStart Kind = "screen-share-start"
	KindScreenShareStop  Kind = "screen-share-stop"
	KindMute             Kind = "mute"
	KindRemove           Kind = "remove"
	KindEnd              Kind = "end"
	KindRoomClosed       Kind = "room-closed"

	KindWelcome   Kind = "welcome"
	KindRoomState Kind = "room-state"
	KindError     Kind = "error"
	KindPing      Kind = "ping"
	KindPong      Kind = "pong"
)

// PointToPoint kinds are delivered to the addressed participant only.
func (k Kind) PointToPoint() bool {
	switch k {
	case KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

// Broadcast kinds fan out to every participant except the sender.
func (k Kind) Broadcast() bool {
	switch k {
	case KindChat, KindStreamUpdate, KindScreenShareStart, KindScreenShareStop:
		return true
	}
	return false
}

// Targeted kinds must name a participant in To.
func (k Kind) Targeted() bool {
	return k.PointToPoint() || k == KindMute || k == KindRemove
}

func (k Kind) fromClient() bool {
	switch k {
	case KindJoin, KindLeave, KindEnd, KindMute, KindRemove, KindPing:
		return true
	}
	return k.PointToPoint() || k.Broadcast()
}

// Envelope is the tagged record carried by the signaling channel.
// From and RoomID are always stamped by the server.
type Envelope struct {
	Kind    Kind                 `json:"kind"`
	RoomID  domain.RoomID        `json:"roomId,omitempty"`
	From    domain.ParticipantID `json:"from,omitempty"`
	To      domain.ParticipantID `json:"to,omitempty"`
	Payload json.RawMessage      `json:"payload,omitempty"`
}

// Bind decodes the payload into v.
func (e Envelope) Bind(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// New builds an outgoing envelope with payload encoded.
func New(kind Kind, room domain.RoomID, from domain.ParticipantID, payload any) (Envelope, error) {
	env := Envelope{Kind: kind, RoomID: room, From: from}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	return env, nil
}
