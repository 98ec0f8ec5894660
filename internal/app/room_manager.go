package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/LiveClass/internal/domain"
)

// RoomManager is the process-wide room registry. It only guards the map;
// room state lives inside each room's loop.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*Room
	policy Policy
}

func NewRoomManager(policy Policy) *RoomManager {
	return &RoomManager{
		rooms:  make(map[domain.RoomID]*Room),
		policy: policy,
	}
}

// GetOrCreate returns the live room for spec.ID, starting one if absent.
// Concurrent callers for the same id get the same room.
func (m *RoomManager) GetOrCreate(spec domain.RoomSpec) *Room {
	m.mu.RLock()
	r, ok := m.rooms[spec.ID]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[spec.ID]; ok {
		return r
	}
	r = newRoom(spec, m.policy, m.release)
	m.rooms[spec.ID] = r
	go r.run()
	log.Info().Str("module", "app.rooms").Str("room_id", string(spec.ID)).Msg("room created")
	return r
}

func (m *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// List returns rooms ordered by id.
func (m *RoomManager) List() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (m *RoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Remove destroys an empty or ended room.
func (m *RoomManager) Remove(ctx context.Context, id domain.RoomID) error {
	r, ok := m.Get(id)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if err := r.Discard(ctx); err != nil {
		if errors.Is(err, ErrRoomGone) {
			return domain.ErrRoomNotFound
		}
		return err
	}
	return nil
}

// release is called by a room from its own loop when it is destroyed.
// A newer room under the same id is left alone.
func (m *RoomManager) release(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.id]; ok && cur == r {
		delete(m.rooms, r.id)
	}
}

// Sweep discards rooms that have had nobody in them for grace.
func (m *RoomManager) Sweep(ctx context.Context, grace time.Duration) int {
	swept := 0
	for _, r := range m.List() {
		ok, err := r.discardIfIdle(ctx, grace)
		if err != nil {
			continue
		}
		if ok {
			swept++
		}
	}
	if swept > 0 {
		log.Info().Str("module", "app.rooms").Int("swept", swept).Msg("idle rooms discarded")
	}
	return swept
}

// RunJanitor sweeps every interval until ctx is done.
func (m *RoomManager) RunJanitor(ctx context.Context, interval, grace time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(ctx, grace)
		}
	}
}

// Shutdown ends every room with reason and waits for them to finish.
func (m *RoomManager) Shutdown(ctx context.Context, reason string) {
	var wg conc.WaitGroup
	for _, r := range m.List() {
		wg.Go(func() {
			if err := r.EndBySystem(ctx, reason); err != nil && !errors.Is(err, ErrRoomGone) {
				log.Warn().Str("module", "app.rooms").Err(err).Str("room_id", string(r.id)).Msg("end on shutdown failed")
			}
		})
	}
	wg.Wait()
}
