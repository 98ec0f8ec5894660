package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveClass/internal/domain"
	"github.com/dkeye/LiveClass/internal/protocol"
)

// handleRelay forwards point-to-point and broadcast kinds. The room stamps
// roomId; from is already the connection's identity.
func (ctl *SignalWSController) handleRelay(ctx context.Context, conn *WsSignalConn, env protocol.Envelope) {
	if env.Kind == protocol.KindChat && ctl.Chat != nil && !ctl.Chat.Allow(env.From) {
		ctl.sendError(conn, env.Kind, domain.ErrRateLimited)
		return
	}
	if err := ctl.Orch.Relay(ctx, env); err != nil {
		log.Debug().
			Err(err).
			Str("module", "adapters.signal").
			Str("participant_id", string(env.From)).
			Str("kind", string(env.Kind)).
			Msg("relay refused")
		ctl.sendError(conn, env.Kind, err)
	}
}
