package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	authTimeout      = 10 * time.Second
	readIdleTimeout  = 60 * time.Second
	pingEvery        = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// BookingAuthorizer decides whether actor may attach to the booking's socket in the given role.
type BookingAuthorizer func(ctx context.Context, bookingID string, actor ports.Actor) error

// WebSocket handles trip sockets with JWT auth: the driver's device feed and passenger pushes.
type WebSocket struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	feeds      *FeedRegistry
	authorize  BookingAuthorizer
	writeLocks sync.Map
	passengers sync.Map // key: bookingID(string) -> *sync.Map(*websocket.Conn -> struct{})
}

// NewWebSocket creates a WebSocket handler with JWT auth.
func NewWebSocket(logger *logger.Logger, jwtMgr *jwt.Manager, feeds *FeedRegistry, authorize BookingAuthorizer) *WebSocket {
	return &WebSocket{
		logger:    logger,
		jwtMgr:    jwtMgr,
		feeds:     feeds,
		authorize: authorize,
	}
}

// accept upgrades the request, reads the auth frame and checks the booking authorization.
// On failure the connection is already closed and nil is returned.
func (ws *WebSocket) accept(w http.ResponseWriter, r *http.Request, roles ...user.Role) (*websocket.Conn, ports.Actor, bool) {
	ctx := r.Context()
	bookingID := r.PathValue("booking_id")

	// 1) Upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(ctx, "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return nil, ports.Actor{}, false
	}
	fail := func(message string) (*websocket.Conn, ports.Actor, bool) {
		_ = ws.sendAuthError(conn, message)
		ws.wsWriteClose(conn, websocket.ClosePolicyViolation, message)
		_ = conn.Close()
		ws.forget(conn)
		return nil, ports.Actor{}, false
	}

	// 2) Set auth deadline
	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		ws.logger.Error(ctx, "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		return fail("internal server error")
	}

	// 3) Auth frame
	mt, first, err := conn.ReadMessage()
	if err != nil {
		ws.logger.Error(ctx, "ws_auth_read_failed", "Client did not authenticate", err, map[string]any{"booking_id": bookingID})
		return fail("authentication timeout: please send auth message within 10 seconds")
	}
	if mt != websocket.TextMessage {
		ws.logger.Error(ctx, "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		return fail("auth message must be in text format")
	}

	res, err := jwt.ValidateWSAuth(first, ws.jwtMgr, roles...)
	if err != nil {
		ws.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		return fail("authentication failed: invalid token")
	}
	actor := ports.Actor{ID: res.Claims.Subject, Role: res.Claims.Role}

	// 4) Booking must belong to the caller
	if ws.authorize != nil {
		if err := ws.authorize(ctx, bookingID, actor); err != nil {
			ws.logger.Error(ctx, "ws_auth_failed", "Caller is not part of this booking", err, map[string]any{
				"booking_id": bookingID,
				"user_id":    actor.ID,
			})
			return fail("not allowed to follow this booking")
		}
	}

	// 5) Send authentication success message
	if err := ws.sendAuthSuccess(conn, bookingID, actor); err != nil {
		ws.logger.Error(ctx, "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		_ = conn.Close()
		ws.forget(conn)
		return nil, ports.Actor{}, false
	}

	// 6) Reset read deadline after auth
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	})

	return conn, actor, true
}

// keepAlive pings conn until done is closed or a ping fails.
func (ws *WebSocket) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			mu := ws.lockOf(conn)
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				// close socket to unblock the reader
				_ = conn.Close()
				ws.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err, nil)
				return
			}
		}
	}
}

// closeAfterRead logs how the read loop ended and answers with a close frame.
func (ws *WebSocket) closeAfterRead(ctx context.Context, conn *websocket.Conn, err error, details map[string]any) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		ws.logger.Error(ctx, "ws_unexpected_close", "Connection closed unexpectedly", err, details)
		ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}
	ws.logger.Info(ctx, "ws_connection_closed", "Connection closed normally", details)
	ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
}

// sendAuthError sends authentication error message to client
func (ws *WebSocket) sendAuthError(conn *websocket.Conn, message string) error {
	return ws.writeJSON(conn, map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	})
}

// sendAuthSuccess sends authentication success message to client
func (ws *WebSocket) sendAuthSuccess(conn *websocket.Conn, bookingID string, actor ports.Actor) error {
	return ws.writeJSON(conn, map[string]any{
		"type":       "auth_success",
		"message":    "Authentication successful",
		"success":    true,
		"booking_id": bookingID,
		"user_id":    actor.ID,
		"role":       actor.Role.String(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// envelope is the minimal inbound frame shape.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
