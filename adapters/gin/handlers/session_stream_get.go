package handlers

import (
	"time"

	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// HandleSessionStreamGET upgrades to a websocket and pushes every snapshot
// the caller's session publishes, starting with the current one.
func HandleSessionStreamGET(mgr *core.Manager, upgrader *websocket.Upgrader, log logrus.FieldLogger) gin.HandlerFunc {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		actor, ok := ginutil.Actor(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		snap, err := mgr.Open(c.Request.Context(), actor)
		if err != nil {
			ginutil.WriteSession(c, snap, err)
			return
		}
		store, ok := mgr.Session(actor.ID)
		if !ok {
			ginutil.Unauthorized(c, "no_session")
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Debug("session stream: upgrade failed")
			return
		}
		defer conn.Close()

		updates, cancel := store.Subscribe()
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(store.Snapshot()); err != nil {
			return
		}
		for {
			select {
			case <-done:
				return
			case s, ok := <-updates:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
						time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(s); err != nil {
					log.WithError(err).WithField("actor_id", actor.ID).Debug("session stream: write failed")
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
