package protocol

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/LiveClass/internal/domain"
)

type JoinPayload struct {
	DisplayName string `json:"displayName" validate:"required"`
	AsHost      bool   `json:"asHost,omitempty"`
}

type ChatPayload struct {
	Body string `json:"body" validate:"required"`
}

type StreamUpdatePayload struct {
	VideoEnabled *bool `json:"videoEnabled,omitempty" validate:"required_without=AudioEnabled"`
	AudioEnabled *bool `json:"audioEnabled,omitempty" validate:"required_without=VideoEnabled"`
}

type MutePayload struct {
	Muted *bool `json:"muted" validate:"required"`
}

type ReasonPayload struct {
	Reason string `json:"reason,omitempty" validate:"max=200"`
}

type LeftPayload struct {
	ParticipantID domain.ParticipantID `json:"participantId"`
	Reason        string               `json:"reason,omitempty"`
}

type MutedPayload struct {
	Muted bool                 `json:"muted"`
	By    domain.ParticipantID `json:"by"`
}

type RoomStatePayload struct {
	Room         domain.RoomInfo      `json:"room"`
	Self         domain.Participant   `json:"self"`
	Participants []domain.Participant `json:"participants"`
}

type WelcomePayload struct {
	ParticipantID domain.ParticipantID `json:"participantId"`
	ICEServers    []webrtc.ICEServer   `json:"iceServers"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind,omitempty"`
}
