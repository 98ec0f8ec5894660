package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

// ErrRoomGone is returned by a room that has been destroyed. Callers holding
// a stale pointer should go back to the RoomManager.
var ErrRoomGone = errors.New("room destroyed")

// errJoinEnded answers joins against an ended room. It still matches
// ErrRoomGone so the orchestrator can open the next session.
var errJoinEnded = fmt.Errorf("%w: %w", domain.ErrRoomEnded, ErrRoomGone)

const (
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
	ReasonRemoved      = "removed"
	ReasonReplaced     = "replaced by a new connection"
	ReasonScheduledEnd = "scheduled end time reached"
)

type session struct {
	domain.Participant
	conn  core.SignalConnection
	stop  chan struct{}
	drops int
}

// JoinRequest carries an identity already asserted by the auth layer.
type JoinRequest struct {
	ParticipantID domain.ParticipantID
	DisplayName   string
	AsHost        bool
	// HostEligible is the authorizer's verdict for claiming an unbound host seat.
	HostEligible bool
	Conn         core.SignalConnection
}

// Room is a single-goroutine actor: every command runs on the run loop, one
// at a time, in arrival order. Fields below the mailbox are owned by it.
type Room struct {
	id      domain.RoomID
	spec    domain.RoomSpec
	policy  Policy
	release func(*Room)
	logger  zerolog.Logger
	now     func() time.Time
	cmds    chan func()
	done    chan struct{}
	stopped bool

	hostID       domain.ParticipantID
	status       domain.RoomStatus
	participants map[domain.ParticipantID]*session
	chatSeq      uint64
	liveSince    time.Time
	emptySince   time.Time
}

func newRoom(spec domain.RoomSpec, policy Policy, release func(*Room)) *Room {
	r := &Room{
		id:           spec.ID,
		spec:         spec,
		policy:       policy,
		release:      release,
		logger:       log.With().Str("module", "app.room").Str("room_id", string(spec.ID)).Logger(),
		now:          time.Now,
		cmds:         make(chan func()),
		done:         make(chan struct{}),
		hostID:       spec.HostID,
		status:       domain.StatusScheduled,
		participants: make(map[domain.ParticipantID]*session),
	}
	r.emptySince = r.now()
	return r
}

func (r *Room) ID() domain.RoomID { return r.id }

// Done is closed once the room is destroyed.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	var endAt <-chan time.Time
	if !r.spec.EndsAt.IsZero() {
		t := time.NewTimer(time.Until(r.spec.EndsAt))
		defer t.Stop()
		endAt = t.C
	}
	r.logger.Info().Msg("room loop started")
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-endAt:
			r.logger.Info().Msg("scheduled end reached")
			r.end(ReasonScheduledEnd)
		}
		if r.stopped {
			r.logger.Info().Msg("room loop stopped")
			return
		}
	}
}

func (r *Room) exec(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case r.cmds <- func() { reply <- fn() }:
	case <-r.done:
		return ErrRoomGone
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-reply
}

// Join admits a participant. The host seat goes to the room's hostID; an
// unbound seat is claimed by the first eligible asHost join.
func (r *Room) Join(ctx context.Context, req JoinRequest) (domain.Participant, error) {
	var joined domain.Participant
	err := r.exec(ctx, func() error {
		if r.status == domain.StatusEnded {
			return domain.ErrRoomEnded
		}
		if prev, ok := r.participants[req.ParticipantID]; ok {
			if prev.conn == req.Conn {
				r.deliver(prev, protocol.KindRoomState, "", r.stateFor(prev))
				joined = prev.Participant
				return nil
			}
			r.detach(prev, ReasonReplaced, true)
		}
		if r.spec.MaxParticipants > 0 && len(r.participants) >= r.spec.MaxParticipants {
			return domain.ErrRoomFull
		}

		if r.hostID == "" && req.AsHost && req.HostEligible {
			r.hostID = req.ParticipantID
			r.logger.Info().Str("participant_id", string(req.ParticipantID)).Msg("host seat bound")
		}
		role := domain.RoleParticipant
		if req.ParticipantID == r.hostID {
			role = domain.RoleHost
		}

		s := &session{
			Participant: domain.NewParticipant(req.ParticipantID, req.DisplayName, role, r.now()),
			conn:        req.Conn,
			stop:        make(chan struct{}),
		}
		r.participants[s.ID] = s
		r.watch(s)

		if role == domain.RoleHost && r.status == domain.StatusScheduled {
			r.advance(domain.StatusLive)
		}

		r.deliver(s, protocol.KindRoomState, "", r.stateFor(s))
		r.broadcast(s.ID, protocol.KindJoin, s.ID, s.View())
		r.logger.Info().
			Str("participant_id", string(s.ID)).
			Str("role", string(role)).
			Int("count", len(r.participants)).
			Msg("participant joined")
		joined = s.Participant
		return nil
	})
	// the loop has exited once ErrRoomGone comes back, so status is final
	if errors.Is(err, ErrRoomGone) && r.status == domain.StatusEnded {
		return domain.Participant{}, errJoinEnded
	}
	return joined, err
}

// Leave removes a participant voluntarily; its channel stays open.
// The host seat is never handed to someone else.
func (r *Room) Leave(ctx context.Context, id domain.ParticipantID) error {
	return r.exec(ctx, func() error {
		s, ok := r.participants[id]
		if !ok {
			return domain.ErrNotInRoom
		}
		r.detach(s, ReasonLeft, false)
		r.afterDeparture()
		return nil
	})
}

func (r *Room) disconnect(ctx context.Context, id domain.ParticipantID, conn core.SignalConnection) error {
	return r.exec(ctx, func() error {
		s, ok := r.participants[id]
		if !ok || s.conn != conn {
			return nil
		}
		r.detach(s, ReasonDisconnected, false)
		r.afterDeparture()
		return nil
	})
}

// Relay routes a client envelope. Point-to-point kinds go to env.To only;
// broadcast kinds reach everyone but the sender. Handshake payloads are
// forwarded untouched.
func (r *Room) Relay(ctx context.Context, env protocol.Envelope) error {
	return r.exec(ctx, func() error {
		sender, ok := r.participants[env.From]
		if !ok {
			return domain.ErrNotInRoom
		}
		env.RoomID = r.id

		switch {
		case env.Kind.PointToPoint():
			target, ok := r.participants[env.To]
			if !ok {
				return domain.ErrTargetNotInRoom
			}
			frame, err := protocol.Encode(env)
			if err != nil {
				return err
			}
			r.push(target, frame)
			return nil

		case env.Kind == protocol.KindChat:
			var p protocol.ChatPayload
			if err := env.Bind(&p); err != nil {
				return domain.ErrMalformedEnvelope
			}
			r.chatSeq++
			msg := domain.ChatMessage{
				ID:         r.chatSeq,
				SenderID:   sender.ID,
				SenderName: sender.DisplayName,
				Body:       p.Body,
				Timestamp:  r.now(),
			}
			r.broadcast(sender.ID, protocol.KindChat, sender.ID, msg)
			return nil

		case env.Kind == protocol.KindStreamUpdate:
			var p protocol.StreamUpdatePayload
			if err := env.Bind(&p); err != nil {
				return domain.ErrMalformedEnvelope
			}
			if p.VideoEnabled != nil {
				sender.VideoEnabled = *p.VideoEnabled
			}
			if p.AudioEnabled != nil {
				sender.AudioEnabled = *p.AudioEnabled
			}
			r.broadcast(sender.ID, protocol.KindStreamUpdate, sender.ID, sender.MediaState())
			return nil

		case env.Kind == protocol.KindScreenShareStart, env.Kind == protocol.KindScreenShareStop:
			sender.ScreenSharing = env.Kind == protocol.KindScreenShareStart
			r.broadcast(sender.ID, env.Kind, sender.ID, sender.MediaState())
			return nil
		}
		return domain.ErrMalformedEnvelope
	})
}

// authorize succeeds only for the connected session holding the host seat.
func (r *Room) authorize(caller domain.ParticipantID) error {
	s, ok := r.participants[caller]
	if !ok || caller != r.hostID || s.Role != domain.RoleHost {
		return domain.ErrNotAuthorized
	}
	return nil
}

// SetMute is host-only. The target alone is told about the mute; other
// peers only see the resulting effective media state.
func (r *Room) SetMute(ctx context.Context, caller, target domain.ParticipantID, muted bool) error {
	return r.exec(ctx, func() error {
		if err := r.authorize(caller); err != nil {
			return err
		}
		s, ok := r.participants[target]
		if !ok {
			return domain.ErrTargetNotInRoom
		}
		if s.Muted == muted {
			return nil
		}
		s.Muted = muted
		r.deliver(s, protocol.KindMute, caller, protocol.MutedPayload{Muted: muted, By: caller})
		r.broadcast(s.ID, protocol.KindStreamUpdate, s.ID, s.MediaState())
		r.logger.Info().
			Str("participant_id", string(target)).
			Bool("muted", muted).
			Msg("mute changed")
		return nil
	})
}

// RemoveParticipant is host-only: the target is told why, its channel is
// closed and everyone else sees an ordinary leave.
func (r *Room) RemoveParticipant(ctx context.Context, caller, target domain.ParticipantID, reason string) error {
	return r.exec(ctx, func() error {
		if err := r.authorize(caller); err != nil {
			return err
		}
		return r.remove(caller, target, reason)
	})
}

func (r *Room) remove(by, target domain.ParticipantID, reason string) error {
	s, ok := r.participants[target]
	if !ok {
		return domain.ErrTargetNotInRoom
	}
	r.deliver(s, protocol.KindRemove, by, protocol.ReasonPayload{Reason: reason})
	r.detach(s, ReasonRemoved, true)
	r.afterDeparture()
	r.logger.Info().Str("participant_id", string(target)).Str("reason", reason).Msg("participant removed")
	return nil
}

// End is host-only.
func (r *Room) End(ctx context.Context, caller domain.ParticipantID, reason string) error {
	return r.exec(ctx, func() error {
		if err := r.authorize(caller); err != nil {
			return err
		}
		r.end(reason)
		return nil
	})
}

// EndBySystem ends the room without an authority check.
func (r *Room) EndBySystem(ctx context.Context, reason string) error {
	return r.exec(ctx, func() error {
		r.end(reason)
		return nil
	})
}

// Discard destroys a room that is empty or ended.
func (r *Room) Discard(ctx context.Context) error {
	return r.exec(ctx, func() error {
		if len(r.participants) > 0 && r.status != domain.StatusEnded {
			return domain.ErrRoomOccupied
		}
		r.destroy("discarded")
		return nil
	})
}

// discardIfIdle destroys the room when nobody has been in it for grace.
func (r *Room) discardIfIdle(ctx context.Context, grace time.Duration) (bool, error) {
	var discarded bool
	err := r.exec(ctx, func() error {
		if len(r.participants) == 0 && r.now().Sub(r.emptySince) >= grace {
			r.destroy("idle")
			discarded = true
		}
		return nil
	})
	return discarded, err
}

func (r *Room) Info(ctx context.Context) (domain.RoomInfo, error) {
	var info domain.RoomInfo
	err := r.exec(ctx, func() error {
		info = r.info()
		return nil
	})
	return info, err
}

// Participants returns the roster as peers observe it.
func (r *Room) Participants(ctx context.Context) ([]domain.Participant, error) {
	var out []domain.Participant
	err := r.exec(ctx, func() error {
		out = r.roster()
		return nil
	})
	return out, err
}

// Participant returns the stored record, including the participant's own
// audio toggle.
func (r *Room) Participant(ctx context.Context, id domain.ParticipantID) (domain.Participant, error) {
	var p domain.Participant
	err := r.exec(ctx, func() error {
		s, ok := r.participants[id]
		if !ok {
			return domain.ErrTargetNotInRoom
		}
		p = s.Participant
		return nil
	})
	return p, err
}
