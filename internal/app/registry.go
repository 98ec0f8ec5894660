package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
)

type connEntry struct {
	RoomID domain.RoomID
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks the one signaling channel each participant holds and the
// room it is currently in.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ParticipantID]*connEntry)}
}

// BindSignal attaches conn to pid. A channel already bound to pid is
// cancelled; its room membership carries over to the new one.
func (r *Registry) BindSignal(pid domain.ParticipantID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	prev, had := r.conns[pid]
	entry := &connEntry{Conn: conn, Cancel: cancel}
	if had {
		entry.RoomID = prev.RoomID
	}
	r.conns[pid] = entry
	r.mu.Unlock()

	if had && prev.Cancel != nil {
		prev.Cancel()
		log.Info().Str("module", "app.registry").Str("participant_id", string(pid)).Msg("replaced signal")
		return
	}
	log.Info().Str("module", "app.registry").Str("participant_id", string(pid)).Msg("bound signal")
}

func (r *Registry) Conn(pid domain.ParticipantID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[pid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Unbind forgets pid only while conn is still its current channel.
func (r *Registry) Unbind(pid domain.ParticipantID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[pid]
	if !ok || e.Conn != conn {
		return false
	}
	delete(r.conns, pid)
	log.Info().Str("module", "app.registry").Str("participant_id", string(pid)).Msg("unbind signal")
	return true
}

func (r *Registry) RoomOf(pid domain.ParticipantID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[pid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) UpdateRoom(pid domain.ParticipantID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[pid]
	if !ok {
		return false
	}
	e.RoomID = room
	log.Info().Str("module", "app.registry").Str("participant_id", string(pid)).Str("room_id", string(room)).Msg("updated room")
	return true
}

// ClearRoom drops the room association if it still points at room.
func (r *Registry) ClearRoom(pid domain.ParticipantID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[pid]; ok && e.RoomID == room {
		e.RoomID = ""
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
