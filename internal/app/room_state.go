package app

import (
	"context"
	"sort"

	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

// Everything here runs on the room loop.

func (r *Room) watch(s *session) {
	gone := s.conn.Done()
	id, conn, stop := s.ID, s.conn, s.stop
	go func() {
		select {
		case <-gone:
			_ = r.disconnect(context.Background(), id, conn)
		case <-stop:
		case <-r.done:
		}
	}()
}

func (r *Room) advance(next domain.RoomStatus) {
	if !r.status.CanAdvance(next) {
		return
	}
	r.logger.Info().Str("from", string(r.status)).Str("to", string(next)).Msg("room status changed")
	r.status = next
	if next == domain.StatusLive {
		r.liveSince = r.now()
	}
}

// detach drops s from the roster and tells the others it left.
func (r *Room) detach(s *session, reason string, closeConn bool) {
	delete(r.participants, s.ID)
	close(s.stop)
	if closeConn {
		s.conn.Close()
	}
	r.broadcast(s.ID, protocol.KindLeave, s.ID, protocol.LeftPayload{ParticipantID: s.ID, Reason: reason})
	r.logger.Info().
		Str("participant_id", string(s.ID)).
		Str("reason", reason).
		Int("count", len(r.participants)).
		Msg("participant left")
}

// afterDeparture destroys a room that went live and is now empty.
// A scheduled room waits for the janitor.
func (r *Room) afterDeparture() {
	if len(r.participants) > 0 {
		return
	}
	r.emptySince = r.now()
	if r.status == domain.StatusLive {
		r.advance(domain.StatusEnded)
		r.destroy("empty")
	}
}

func (r *Room) end(reason string) {
	if r.stopped {
		return
	}
	r.advance(domain.StatusEnded)
	r.broadcast("", protocol.KindRoomClosed, "", protocol.ReasonPayload{Reason: reason})
	for id, s := range r.participants {
		delete(r.participants, id)
		close(s.stop)
		s.conn.Close()
	}
	r.logger.Info().Str("reason", reason).Msg("room ended")
	r.destroy(reason)
}

func (r *Room) destroy(reason string) {
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.done)
	if r.release != nil {
		r.release(r)
	}
	r.logger.Info().Str("reason", reason).Msg("room destroyed")
}

// deliver sends one server envelope to a single session.
func (r *Room) deliver(s *session, kind protocol.Kind, from domain.ParticipantID, payload any) {
	frame, err := r.frame(kind, from, payload)
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("encode failed")
		return
	}
	r.push(s, frame)
}

// broadcast sends to everyone except skip; encoding happens once.
func (r *Room) broadcast(skip domain.ParticipantID, kind protocol.Kind, from domain.ParticipantID, payload any) {
	if len(r.participants) == 0 {
		return
	}
	frame, err := r.frame(kind, from, payload)
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("encode failed")
		return
	}
	for id, s := range r.participants {
		if id == skip {
			continue
		}
		r.push(s, frame)
	}
}

func (r *Room) frame(kind protocol.Kind, from domain.ParticipantID, payload any) (core.Frame, error) {
	env, err := protocol.New(kind, r.id, from, payload)
	if err != nil {
		return nil, err
	}
	return protocol.Encode(env)
}

// push never blocks the loop. A full queue drops the frame and the policy
// may close the recipient, which then leaves through its watcher.
func (r *Room) push(s *session, frame core.Frame) {
	if err := s.conn.TrySend(frame); err != nil {
		s.drops++
		action := DropFrame
		if r.policy != nil {
			action = r.policy.OnBackPressure(r.id, s.ID, s.drops)
		}
		r.logger.Warn().
			Err(err).
			Str("participant_id", string(s.ID)).
			Int("drops", s.drops).
			Msg("dropping frame for slow participant")
		if action == KickMember {
			r.logger.Warn().Str("participant_id", string(s.ID)).Msg("closing slow participant")
			s.conn.Close()
		}
		return
	}
	s.drops = 0
}

func (r *Room) info() domain.RoomInfo {
	host, ok := r.participants[r.hostID]
	return domain.RoomInfo{
		ID:               r.id,
		Title:            r.spec.Title,
		Status:           r.status,
		HostID:           r.hostID,
		HostConnected:    ok && host.Role == domain.RoleHost,
		ParticipantCount: len(r.participants),
		MaxParticipants:  r.spec.MaxParticipants,
		LiveSince:        r.liveSince,
	}
}

func (r *Room) roster() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.participants))
	for _, s := range r.participants {
		out = append(out, s.View())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func (r *Room) stateFor(s *session) protocol.RoomStatePayload {
	return protocol.RoomStatePayload{
		Room:         r.info(),
		Self:         s.Participant,
		Participants: r.roster(),
	}
}
