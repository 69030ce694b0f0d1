package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mmynk/tripmate/internal/middleware"
	"github.com/mmynk/tripmate/internal/room"
	"github.com/mmynk/tripmate/internal/token"
)

const (
	syncWriteTimeout = 5 * time.Second
	syncPongWait     = 60 * time.Second
	syncPingPeriod   = syncPongWait * 9 / 10
)

// SyncMessage is pushed to /sync subscribers.
type SyncMessage struct {
	Type string    `json:"type"`
	View room.View `json:"view"`
}

// SyncHandler pushes the caller's view over a websocket after every change
// to its session, whether made through RPC or reloaded from another session.
type SyncHandler struct {
	sessions *Registry
	tokens   *token.Manager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewSyncHandler creates a SyncHandler. The session token is read from the
// "token" query parameter or the Authorization header.
func NewSyncHandler(sessions *Registry, tokens *token.Manager, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{
		sessions: sessions,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  16 * 1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}
	claims, err := h.tokens.Validate(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	d, err := h.sessions.Resolve(r.Context(), claims.SessionID, claims.Profile)
	if err != nil {
		h.logger.Error("Sync: failed to resolve session", "session_id", claims.SessionID, "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	release, ok := h.sessions.Pin(claims.SessionID)
	if !ok {
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("Sync: upgrade failed", "session_id", claims.SessionID, "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("Sync subscriber connected", "session_id", claims.SessionID)
	defer h.logger.Info("Sync subscriber disconnected", "session_id", claims.SessionID)

	// Only the latest view matters, so a full slot is replaced.
	latest := make(chan room.View, 1)
	push := func(v room.View) {
		for {
			select {
			case latest <- v:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}

	sess := d.Session()
	remove := sess.OnChange(func(snap room.Snapshot) {
		push(room.Project(snap.Doc, snap.SubRoomID))
	})
	defer remove()
	push(sess.View())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readLoop(conn, cancel)

	ticker := time.NewTicker(syncPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(syncWriteTimeout))
			return
		case v := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(syncWriteTimeout))
			if err := conn.WriteJSON(SyncMessage{Type: "view", View: v}); err != nil {
				h.logger.Warn("Sync: write failed", "session_id", claims.SessionID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(syncWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and cancels once the connection closes.
func (h *SyncHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(syncPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(syncPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
