package app

import "github.com/dkeye/LiveClass/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a recipient whose outbound queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member domain.ParticipantID, consecutiveDrops int) BackpressureAction
}

// SimplePolicy drops frames and closes the recipient's channel once it has
// dropped KickAfter frames in a row. KickAfter <= 0 never kicks.
type SimplePolicy struct {
	KickAfter int
}

func (p SimplePolicy) OnBackPressure(_ domain.RoomID, _ domain.ParticipantID, drops int) BackpressureAction {
	if p.KickAfter > 0 && drops >= p.KickAfter {
		return KickMember
	}
	return DropFrame
}
