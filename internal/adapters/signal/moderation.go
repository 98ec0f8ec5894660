package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

const defaultEndReason = "ended by host"

func (ctl *SignalWSController) handleMute(ctx context.Context, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.MutePayload
	if err := env.Bind(&p); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	if p.Muted == nil {
		ctl.sendError(conn, env.Kind, domain.ErrMalformedEnvelope)
		return
	}
	if err := ctl.Orch.Mute(ctx, env.From, env.To, *p.Muted); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	log.Info().Str("module", "adapters.signal").Str("host", string(env.From)).Str("target", string(env.To)).Bool("muted", *p.Muted).Msg("mute")
}

func (ctl *SignalWSController) handleRemove(ctx context.Context, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.ReasonPayload
	if err := env.Bind(&p); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	if err := ctl.Orch.Remove(ctx, env.From, env.To, p.Reason); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	log.Info().Str("module", "adapters.signal").Str("host", string(env.From)).Str("target", string(env.To)).Msg("remove")
}

func (ctl *SignalWSController) handleEnd(ctx context.Context, conn *WsSignalConn, env protocol.Envelope) {
	var p protocol.ReasonPayload
	if err := env.Bind(&p); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	if p.Reason == "" {
		p.Reason = defaultEndReason
	}
	if err := ctl.Orch.End(ctx, env.From, p.Reason); err != nil {
		ctl.sendError(conn, env.Kind, err)
		return
	}
	log.Info().Str("module", "adapters.signal").Str("host", string(env.From)).Str("reason", p.Reason).Msg("end")
}
