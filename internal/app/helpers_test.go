package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

var errQueueFull = errors.New("queue full")

type fakeConn struct {
	frames chan core.Frame
	done   chan struct{}
	once   sync.Once
	full   atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan core.Frame, 64), done: make(chan struct{})}
}

func (c *fakeConn) TrySend(f core.Frame) error {
	if c.full.Load() {
		return errQueueFull
	}
	select {
	case c.frames <- f:
		return nil
	default:
		return errQueueFull
	}
}

func (c *fakeConn) Close()                { c.once.Do(func() { close(c.done) }) }
func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeConn) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case f := <-c.frames:
		var env protocol.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s")
	}
	return protocol.Envelope{}
}

func (c *fakeConn) expect(t *testing.T, kind protocol.Kind) protocol.Envelope {
	t.Helper()
	env := c.next(t)
	if env.Kind != kind {
		t.Fatalf("got %q (%s), want %q", env.Kind, env.Payload, kind)
	}
	return env
}

func (c *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("unexpected frame %s", f)
	default:
	}
}

func (c *fakeConn) drain() {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

func newTestRoom(t *testing.T, spec domain.RoomSpec) (*RoomManager, *Room) {
	t.Helper()
	m := NewRoomManager(SimplePolicy{KickAfter: 3})
	r := m.GetOrCreate(spec)
	t.Cleanup(func() { _ = r.EndBySystem(context.Background(), "test done") })
	return m, r
}

func join(t *testing.T, r *Room, id domain.ParticipantID, asHost bool) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	_, err := r.Join(context.Background(), JoinRequest{
		ParticipantID: id,
		DisplayName:   string(id),
		AsHost:        asHost,
		HostEligible:  asHost,
		Conn:          conn,
	})
	if err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
	conn.expect(t, protocol.KindRoomState)
	return conn
}

func drainAll(conns ...*fakeConn) {
	for _, c := range conns {
		c.drain()
	}
}

func bind[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	if err := env.Bind(&v); err != nil {
		t.Fatalf("bind %s: %v", env.Payload, err)
	}
	return v
}

func envelope(t *testing.T, kind protocol.Kind, from, to domain.ParticipantID, payload string) protocol.Envelope {
	t.Helper()
	env := protocol.Envelope{Kind: kind, From: from, To: to}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	return env
}
