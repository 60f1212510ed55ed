package signal

import "github.com/dkeye/Chatter/internal/core"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.emit(conn, core.EventPong, nil)
}
