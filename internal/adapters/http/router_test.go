package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/dkeye/LiveClass/internal/adapters/rtc"
	"github.com/dkeye/LiveClass/internal/adapters/signal"
	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/app/orch"
	"github.com/dkeye/LiveClass/internal/config"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:                "test",
		Secret:              "test-secret",
		TrustIdentityHeader: true,
		Signal:              config.SignalConfig{PingPeriod: time.Second, PongWait: 2 * time.Second, WriteWait: time.Second, SendQueue: 16},
	}
	o := &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewRoomManager(app.SimplePolicy{}),
		Schedules: app.NewMemorySchedules(domain.RoomSpec{ID: "physics", HostID: "prof"}),
		Authz:     app.ScheduleAuthorizer{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	r, _ := SetupRouter(ctx, cfg, o, rtc.DefaultICEServers())
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		o.Shutdown(context.Background(), "test done")
		cancel()
		srv.Close()
	})
	return srv
}

func do(t *testing.T, method, url, pid, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if pid != "" {
		req.Header.Set(IdentityHeader, pid)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func joinOverWS(t *testing.T, srv *httptest.Server, pid string, host bool) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{IdentityHeader: []string{pid}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	if env := readFrame(t, ws); env.Kind != protocol.KindWelcome {
		t.Fatalf("first frame %s", env.Kind)
	}
	asHost := "false"
	if host {
		asHost = "true"
	}
	msg := `{"kind":"join","roomId":"physics","payload":{"displayName":"` + pid + `","asHost":` + asHost + `}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	if env := readFrame(t, ws); env.Kind != protocol.KindRoomState {
		t.Fatalf("join answered with %s", env.Kind)
	}
	return ws
}

func TestReadEndpoints(t *testing.T) {
	srv := newTestServer(t)

	if resp := do(t, http.MethodGet, srv.URL+"/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	resp := do(t, http.MethodGet, srv.URL+"/api/ice-servers", "", "")
	var ice struct {
		ICEServers []map[string]any `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ice); err != nil || len(ice.ICEServers) != 1 {
		t.Fatalf("ice = %+v, %v", ice, err)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/rooms/physics", "", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing room = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/rooms/bad%20id", "", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id = %d", resp.StatusCode)
	}

	joinOverWS(t, srv, "prof", true)
	resp = do(t, http.MethodGet, srv.URL+"/api/rooms/physics", "", "")
	var info domain.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusLive || info.ParticipantCount != 1 || !info.HostConnected {
		t.Fatalf("info = %+v", info)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/rooms/physics/participants", "", "")
	var roster struct {
		Participants []domain.Participant `json:"participants"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&roster); err != nil || len(roster.Participants) != 1 {
		t.Fatalf("roster = %+v, %v", roster, err)
	}
}

func TestHostOnlyEndpoints(t *testing.T) {
	srv := newTestServer(t)
	prof := joinOverWS(t, srv, "prof", true)
	stu := joinOverWS(t, srv, "stu", false)
	readFrame(t, prof) // join of stu

	if resp := do(t, http.MethodDelete, srv.URL+"/api/rooms/physics/participants/prof", "stu", ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("remove by student = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/rooms/physics/end", "stu", `{"reason":"x"}`); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("end by student = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/rooms/physics/end", "prof", `{"reason":"bell rang"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("end by host = %d", resp.StatusCode)
	}
	env := readFrame(t, stu)
	var p protocol.ReasonPayload
	_ = env.Bind(&p)
	if env.Kind != protocol.KindRoomClosed || p.Reason != "bell rang" {
		t.Fatalf("got %s %+v", env.Kind, p)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/rooms/physics/end", "prof", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("end twice = %d", resp.StatusCode)
	}
}

func TestSessionIdentityIsStable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(sessionName, cookie.NewStore([]byte("k"))))
	r.Use(ParticipantMiddleware(false))
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(signal.ParticipantKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	first := w.Body.String()
	if first == "" {
		t.Fatal("no identity minted")
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	req.Header.Set(IdentityHeader, "spoofed")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Body.String() != first {
		t.Fatalf("identity changed: %q -> %q", first, w2.Body.String())
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[error]int{
		domain.ErrRoomNotFound:      http.StatusNotFound,
		domain.ErrRoomFull:          http.StatusConflict,
		domain.ErrRoomEnded:         http.StatusGone,
		domain.ErrNotAuthorized:     http.StatusForbidden,
		domain.ErrMalformedEnvelope: http.StatusBadRequest,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("%v: got %d want %d", err, got, want)
		}
	}
}
