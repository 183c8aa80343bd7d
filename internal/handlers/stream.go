package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/deepfake-detector/internal/shell"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamState upgrades to a websocket and sends the current state followed
// by one JSON message per shell transition.
func StreamState(sh *shell.Shell, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		updates, unsubscribe := sh.Subscribe()
		defer unsubscribe()

		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() error {
			return readLoop(conn)
		})
		g.Go(func() error {
			defer conn.Close()
			return writeLoop(ctx, conn, sh.State(), updates)
		})

		if err := g.Wait(); err != nil && !isExpectedClose(err) {
			logger.Debug("state stream ended", zap.Error(err))
		}
	}
}

// readLoop discards client messages; it exists to process control frames and
// to notice when the peer goes away.
func readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, initial shell.State, updates <-chan shell.State) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := writeState(conn, initial); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return nil
			}
			if err := writeState(conn, st); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func writeState(conn *websocket.Conn, st shell.State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(st)
}

func isExpectedClose(err error) bool {
	return errors.Is(err, context.Canceled) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
