package wsconn

import (
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// writePump owns the connection for writes: it drains the send buffer
// and emits a keepalive ping every pingPeriod. It is the only
// goroutine that writes data and ping frames (replies to the client's
// own control frames are written by wsutil.ReadClientData inside
// ReceiveCommand), so a slow client blocks only its own writePump,
// never another connection's.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpText, frame); err != nil {
				c.Logger.Debug().Err(err).Msg("failed to write frame, disconnecting")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				c.Logger.Debug().Err(err).Msg("failed to write ping, disconnecting")
				return
			}
		}
	}
}
