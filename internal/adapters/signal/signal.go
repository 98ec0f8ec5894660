package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/app/orch"
	"github.com/dkeye/LiveClass/internal/config"
	"github.com/dkeye/LiveClass/internal/core"
	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

// ParticipantKey is the gin context key holding the asserted identity.
const ParticipantKey = "participant_id"

const defaultSendQueue = 64

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Decoder protocol.Decoder
	ICE     []webrtc.ICEServer
	Chat    *RoomRateLimiter

	readLimit  int64
	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration
	sendQueue  int

	pumps sync.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config, ice []webrtc.ICEServer) *SignalWSController {
	ctl := &SignalWSController{
		Orch:       o,
		Decoder:    protocol.Decoder{MaxChatBody: cfg.Chat.MaxBody},
		ICE:        ice,
		Chat:       NewRoomRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval),
		readLimit:  cfg.Signal.ReadLimit,
		pingPeriod: cfg.Signal.PingPeriod,
		pongWait:   cfg.Signal.PongWait,
		writeWait:  cfg.Signal.WriteWait,
		sendQueue:  cfg.Signal.SendQueue,
	}
	if ctl.pongWait <= 0 {
		ctl.pongWait = 60 * time.Second
	}
	if ctl.pingPeriod <= 0 || ctl.pingPeriod >= ctl.pongWait {
		ctl.pingPeriod = ctl.pongWait * 9 / 10
	}
	if ctl.writeWait <= 0 {
		ctl.writeWait = 10 * time.Second
	}
	return ctl
}

// WsSignalConn is one participant's signaling channel. Frames queue in
// send and are written by writePump; done closes when readPump exits.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, queue int) *WsSignalConn {
	if queue <= 0 {
		queue = defaultSendQueue
	}
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, queue),
		done: make(chan struct{}),
	}
}

// TrySend never blocks; a full queue reports ErrBackpressure.
func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrChannelDisconnected
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting frames. writePump flushes what is queued and then
// closes the socket.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WsSignalConn) Done() <-chan struct{} { return c.done }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	pid := domain.ParticipantID(c.GetString(ParticipantKey))
	if pid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no participant identity"})
		return
	}
	log.Info().Str("module", "adapters.signal").Str("participant_id", string(pid)).Msg("new WS connection")

	// counted before the upgrade so a server shutdown racing the
	// handshake still waits for this socket
	ctl.pumps.Add(1)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.pumps.Done()
		log.Error().Err(err).Str("module", "adapters.signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.sendQueue)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(pid, conn, cancel)

	ctl.sendEnvelope(conn, protocol.KindWelcome, "", protocol.WelcomePayload{
		ParticipantID: pid,
		ICEServers:    ctl.ICE,
	})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, pid, conn)
}

// Wait blocks until every socket's write side has flushed and closed.
// Sockets only wind down once the ctx given to HandleSignal ends or their
// room closes them.
func (ctl *SignalWSController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ctl.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
