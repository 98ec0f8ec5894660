package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

type conn struct {
	frames chan core.Frame
	done   chan struct{}
	once   sync.Once
}

func newConn() *conn {
	return &conn{frames: make(chan core.Frame, 64), done: make(chan struct{})}
}

func (c *conn) TrySend(f core.Frame) error {
	select {
	case c.frames <- f:
		return nil
	default:
		return errors.New("full")
	}
}

func (c *conn) Close()                { c.once.Do(func() { close(c.done) }) }
func (c *conn) Done() <-chan struct{} { return c.done }

// await returns the next frame of kind, skipping others.
func (c *conn) await(t *testing.T, kind protocol.Kind) protocol.Envelope {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case f := <-c.frames:
			var env protocol.Envelope
			if err := json.Unmarshal(f, &env); err != nil {
				t.Fatal(err)
			}
			if env.Kind == kind {
				return env
			}
		case <-deadline:
			t.Fatalf("no %s frame", kind)
		}
	}
}

var ctx = context.Background()

func newOrchestrator(t *testing.T, adhoc bool, specs ...domain.RoomSpec) *Orchestrator {
	t.Helper()
	o := &Orchestrator{
		Registry:               app.NewRegistry(),
		Rooms:                  app.NewRoomManager(app.SimplePolicy{KickAfter: 8}),
		Schedules:              app.NewMemorySchedules(specs...),
		Authz:                  app.ScheduleAuthorizer{},
		AllowAdhoc:             adhoc,
		DefaultMaxParticipants: 10,
	}
	t.Cleanup(func() { o.Shutdown(context.Background(), "test done") })
	return o
}

func connect(o *Orchestrator, pid domain.ParticipantID) *conn {
	c := newConn()
	o.Connect(pid, c, c.Close)
	return c
}

func mustJoin(t *testing.T, o *Orchestrator, pid domain.ParticipantID, room domain.RoomID, host bool) domain.Participant {
	t.Helper()
	p, err := o.Join(ctx, pid, room, protocol.JoinPayload{DisplayName: string(pid), AsHost: host})
	if err != nil {
		t.Fatalf("join %s/%s: %v", pid, room, err)
	}
	return p
}

func TestJoinUnknownRoom(t *testing.T) {
	o := newOrchestrator(t, false)
	connect(o, "a")
	_, err := o.Join(ctx, "a", "nowhere", protocol.JoinPayload{DisplayName: "a"})
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("err = %v", err)
	}
	if o.Rooms.Len() != 0 {
		t.Fatal("room created for unknown id")
	}
}

func TestJoinAdhocRoomUsesDefaults(t *testing.T) {
	o := newOrchestrator(t, true)
	connect(o, "a")
	p := mustJoin(t, o, "a", "pop-up", true)
	if p.Role != domain.RoleHost {
		t.Fatalf("role = %s", p.Role)
	}
	info, err := o.RoomInfo(ctx, "pop-up")
	if err != nil {
		t.Fatal(err)
	}
	if info.MaxParticipants != 10 || info.Status != domain.StatusLive {
		t.Fatalf("info = %+v", info)
	}
}

func TestJoinRequiresChannel(t *testing.T) {
	o := newOrchestrator(t, true)
	_, err := o.Join(ctx, "ghost", "r", protocol.JoinPayload{DisplayName: "g"})
	if !errors.Is(err, domain.ErrChannelDisconnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestJoinRejectsBlankName(t *testing.T) {
	o := newOrchestrator(t, true)
	connect(o, "a")
	_, err := o.Join(ctx, "a", "r", protocol.JoinPayload{DisplayName: "   "})
	if domain.Code(err) != "malformed_envelope" {
		t.Fatalf("err = %v", err)
	}
}

func TestJoinPastSession(t *testing.T) {
	o := newOrchestrator(t, false, domain.RoomSpec{ID: "old", EndsAt: time.Now().Add(-time.Minute)})
	connect(o, "a")
	_, err := o.Join(ctx, "a", "old", protocol.JoinPayload{DisplayName: "a"})
	if !errors.Is(err, domain.ErrRoomEnded) {
		t.Fatalf("err = %v", err)
	}
}

func TestUnauthorizedHostClaim(t *testing.T) {
	o := newOrchestrator(t, false, domain.RoomSpec{ID: "math", HostID: "instructor"})
	connect(o, "student")
	p := mustJoin(t, o, "student", "math", true)
	if p.Role != domain.RoleParticipant {
		t.Fatalf("role = %s", p.Role)
	}
	if err := o.End(ctx, "student", "bye"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("err = %v", err)
	}
}

func TestJoinSecondRoomLeavesFirst(t *testing.T) {
	o := newOrchestrator(t, true)
	watcher := connect(o, "w")
	connect(o, "a")
	mustJoin(t, o, "w", "one", false)
	mustJoin(t, o, "a", "one", false)
	mustJoin(t, o, "a", "two", false)

	left := watcher.await(t, protocol.KindLeave)
	if left.From != "a" {
		t.Fatalf("leave from %q", left.From)
	}
	ps, _ := o.Participants(ctx, "one")
	if len(ps) != 1 || ps[0].ID != "w" {
		t.Fatalf("room one = %+v", ps)
	}
	if room, _ := o.Registry.RoomOf("a"); room != "two" {
		t.Fatalf("registry room = %q", room)
	}
}

func TestRelayOutsideRoom(t *testing.T) {
	o := newOrchestrator(t, true)
	connect(o, "a")
	err := o.Relay(ctx, protocol.Envelope{Kind: protocol.KindChat, From: "a", Payload: json.RawMessage(`{"body":"x"}`)})
	if !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("err = %v", err)
	}
	if err := o.Leave(ctx, "a"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("err = %v", err)
	}
}

func TestEndedRoomRestartsScheduled(t *testing.T) {
	o := newOrchestrator(t, false, domain.RoomSpec{ID: "math", HostID: "h"})
	host := connect(o, "h")
	student := connect(o, "s")
	mustJoin(t, o, "h", "math", true)
	mustJoin(t, o, "s", "math", false)

	if err := o.End(ctx, "h", "done"); err != nil {
		t.Fatal(err)
	}
	student.await(t, protocol.KindRoomClosed)
	host.await(t, protocol.KindRoomClosed)
	if _, err := o.RoomInfo(ctx, "math"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("err = %v", err)
	}
	if err := o.Relay(ctx, protocol.Envelope{Kind: protocol.KindScreenShareStart, From: "s"}); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("err = %v", err)
	}

	connect(o, "s")
	mustJoin(t, o, "s", "math", false)
	info, _ := o.RoomInfo(ctx, "math")
	if info.Status != domain.StatusScheduled || info.ParticipantCount != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func TestRoomOperationsByID(t *testing.T) {
	o := newOrchestrator(t, true)
	a := connect(o, "a")
	b := connect(o, "b")
	mustJoin(t, o, "a", "r", true)
	mustJoin(t, o, "b", "r", false)

	if err := o.RemoveFromRoom(ctx, "r", "b", "a", ""); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("err = %v", err)
	}
	if err := o.RemoveFromRoom(ctx, "r", "a", "b", "off topic"); err != nil {
		t.Fatal(err)
	}
	b.await(t, protocol.KindRemove)
	if err := o.RemoveFromRoom(ctx, "r", "a", "b", ""); !errors.Is(err, domain.ErrTargetNotInRoom) {
		t.Fatalf("err = %v", err)
	}

	rooms, _ := o.ListRooms(ctx)
	if len(rooms) != 1 || rooms[0].ParticipantCount != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}
	if err := o.EndRoom(ctx, "r", "a", "maintenance"); err != nil {
		t.Fatal(err)
	}
	closed := a.await(t, protocol.KindRoomClosed)
	var reason protocol.ReasonPayload
	_ = closed.Bind(&reason)
	if reason.Reason != "maintenance" {
		t.Fatalf("reason = %q", reason.Reason)
	}
	if err := o.EndRoom(ctx, "r", "a", ""); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDisconnectIgnoresStaleChannel(t *testing.T) {
	o := newOrchestrator(t, true)
	old := connect(o, "a")
	fresh := connect(o, "a")
	select {
	case <-old.Done():
	default:
		t.Fatal("old channel not cancelled")
	}
	o.Disconnect("a", old)
	if c, ok := o.Registry.Conn("a"); !ok || c != fresh {
		t.Fatal("stale disconnect unbound the fresh channel")
	}
}
