package signal

import "github.com/dkeye/LiveClass/internal/protocol"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendEnvelope(conn, protocol.KindPong, "", nil)
}
