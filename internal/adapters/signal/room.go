package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/protocol"
)

// handleJoin answers with room-state from the room itself; only failures
// are reported here.
func (ctl *SignalWSController) handleJoin(ctx context.Context, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.JoinPayload
	if err := env.Bind(&p); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	joined, err := ctl.Orch.Join(ctx, env.From, env.RoomID, p)
	if err != nil {
		log.Info().Err(err).Str("module", "adapters.signal").Str("participant_id", string(env.From)).Str("room_id", string(env.RoomID)).Msg("join refused")
		ctl.sendError(conn, env.Kind, err)
		return
	}
	log.Info().
		Str("module", "adapters.signal").
		Str("participant_id", string(env.From)).
		Str("room_id", string(env.RoomID)).
		Str("role", string(joined.Role)).
		Msg("join")
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, conn *WsSignalConn, env protocol.Envelope) {
	roomID, _ := ctl.Orch.Registry.RoomOf(env.From)
	if err := ctl.Orch.Leave(ctx, env.From); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	ctl.sendEnvelope(conn, protocol.KindLeave, roomID, protocol.LeftPayload{
		ParticipantID: env.From,
		Reason:        app.ReasonLeft,
	})
	log.Info().Str("module", "adapters.signal").Str("participant_id", string(env.From)).Str("room_id", string(roomID)).Msg("leave")
}
