package domain

import "time"

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Participant is the per-connection record of one user inside a room.
// No transport or lifecycle logic here.
type Participant struct {
	ID            ParticipantID `json:"participantId"`
	DisplayName   string        `json:"displayName"`
	Role          Role          `json:"role"`
	VideoEnabled  bool          `json:"videoEnabled"`
	AudioEnabled  bool          `json:"audioEnabled"`
	ScreenSharing bool          `json:"screenSharing"`
	Muted         bool          `json:"muted"`
	JoinedAt      time.Time     `json:"joinedAt"`
}

// NewParticipant applies the default media flags for a fresh session.
func NewParticipant(id ParticipantID, name string, role Role, now time.Time) Participant {
	return Participant{
		ID:           id,
		DisplayName:  name,
		Role:         role,
		VideoEnabled: true,
		AudioEnabled: true,
		JoinedAt:     now,
	}
}

// EffectiveAudio is what peers must assume: a host mute wins over the
// participant's own toggle.
func (p Participant) EffectiveAudio() bool {
	return p.AudioEnabled && !p.Muted
}

// View is the participant as other peers observe it. A host mute shows up
// only as silenced audio; the flag itself stays between host and target.
func (p Participant) View() Participant {
	v := p
	v.AudioEnabled = p.EffectiveAudio()
	v.Muted = false
	return v
}

// MediaState is the media part of a participant broadcast on changes.
type MediaState struct {
	ParticipantID ParticipantID `json:"participantId"`
	VideoEnabled  bool          `json:"videoEnabled"`
	AudioEnabled  bool          `json:"audioEnabled"`
	ScreenSharing bool          `json:"screenSharing"`
}

func (p Participant) MediaState() MediaState {
	return MediaState{
		ParticipantID: p.ID,
		VideoEnabled:  p.VideoEnabled,
		AudioEnabled:  p.EffectiveAudio(),
		ScreenSharing: p.ScreenSharing,
	}
}

// ChatMessage lives as long as the room that relayed it.
type ChatMessage struct {
	ID         uint64        `json:"id"`
	SenderID   ParticipantID `json:"senderId"`
	SenderName string        `json:"senderName"`
	Body       string        `json:"body"`
	Timestamp  time.Time     `json:"timestamp"`
}
