package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
	"github.com/tbeaudouin05/entitlements/api/services/session"
)

const pingInterval = 30 * time.Second

// watchHandler upgrades to a websocket and streams the session's snapshots,
// starting with the current one. The stream ends with the session.
func watchHandler(sessions *session.Registry, logger *slog.Logger) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		sess, err := sessions.Get(pathParams["session_id"])
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logger.Warn("websocket accept failed", "session_id", sess.ID, "err", err)
			return
		}
		defer conn.CloseNow()

		updates, stop := sess.Watch()
		defer stop()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go readPump(ctx, cancel, conn)

		if err := writeSnapshot(ctx, conn, sess.Snapshot()); err != nil {
			return
		}
		if err := writePump(ctx, conn, updates); err != nil {
			logger.Debug("watch stream closed", "session_id", sess.ID, "err", err)
			return
		}
		conn.Close(ws.StatusNormalClosure, "session ended")
	}
}

// readPump discards client messages and cancels the stream once the peer goes away.
func readPump(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn) {
	defer cancel()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump forwards snapshots until the channel closes, pinging to detect stale peers.
func writePump(ctx context.Context, conn *ws.Conn, updates <-chan entitlement.Snapshot) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeSnapshot(ctx context.Context, conn *ws.Conn, snap entitlement.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, b)
}
