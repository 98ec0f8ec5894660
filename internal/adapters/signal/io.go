package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		ctl.pumps.Done()
	}()

	stop := ctx.Done()
	for {
		select {
		case <-stop:
			log.Info().Str("module", "adapters.signal").Msg("writePump ctx done")
			// flush whatever is queued, then the closed channel ends the loop
			c.Close()
			stop = nil
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

// readPump owns the read side. Its exit is the disconnect signal rooms
// and the registry react to.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, pid domain.ParticipantID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "adapters.signal").Str("participant_id", string(pid)).Msg("readPump closing")
		cancel()
		c.Close()
		close(c.done)
		ctl.Orch.Disconnect(pid, c)
		if ctl.Chat != nil {
			ctl.Chat.Forget(pid)
		}
	}()

	if ctl.readLimit > 0 {
		c.conn.SetReadLimit(ctl.readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Error().Err(err).Str("module", "adapters.signal").Str("participant_id", string(pid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
		ctl.handleSignal(ctx, pid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, pid domain.ParticipantID, c *WsSignalConn, data []byte) {
	env, err := ctl.Decoder.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.signal").Str("participant_id", string(pid)).Msg("rejected envelope")
		ctl.sendError(c, env.Kind, err)
		return
	}
	env.From = pid

	switch env.Kind {
	case protocol.KindJoin:
		ctl.handleJoin(ctx, c, env)
	case protocol.KindLeave:
		ctl.handleLeave(ctx, c, env)
	case protocol.KindPing:
		ctl.handlePing(c)
	case protocol.KindMute:
		ctl.handleMute(ctx, c, env)
	case protocol.KindRemove:
		ctl.handleRemove(ctx, c, env)
	case protocol.KindEnd:
		ctl.handleEnd(ctx, c, env)
	default:
		ctl.handleRelay(ctx, c, env)
	}
}

func (ctl *SignalWSController) sendEnvelope(c *WsSignalConn, kind protocol.Kind, room domain.RoomID, payload any) {
	env, err := protocol.New(kind, room, "", payload)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Str("kind", string(kind)).Msg("sendEnvelope encode")
		return
	}
	ctl.send(c, env)
}

func (ctl *SignalWSController) send(c *WsSignalConn, env protocol.Envelope) {
	b, err := protocol.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("send marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Str("kind", string(env.Kind)).Msg("dropping reply")
	}
}

// sendError answers the originator only.
func (ctl *SignalWSController) sendError(c *WsSignalConn, kind protocol.Kind, err error) {
	ctl.send(c, protocol.ErrorEnvelope(kind, err))
}
