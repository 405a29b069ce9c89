package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"ride-booking/internal/domain/user"

	"github.com/gorilla/websocket"
)

// ConnectPassenger subscribes a passenger (or an admin) to live updates of a booking.
// GET /ws/trips/{booking_id}/passenger
func (ws *WebSocket) ConnectPassenger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID := r.PathValue("booking_id")

	conn, actor, ok := ws.accept(w, r, user.RolePassenger, user.RoleAdmin)
	if !ok {
		return
	}
	defer ws.forget(conn)
	defer conn.Close()

	details := map[string]any{"booking_id": bookingID, "user_id": actor.ID}
	ws.logger.Info(ctx, "ws_connected", "Passenger WebSocket connected", details)

	// register for outbound notifications; unregister on exit
	ws.subscribers(bookingID).Store(conn, struct{}{})
	defer ws.unsubscribe(bookingID, conn)

	done := make(chan struct{})
	defer close(done)
	go ws.keepAlive(ctx, conn, done)

	// passengers only send pings and closes; anything else gets an error frame
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			ws.closeAfterRead(ctx, conn, err, details)
			return
		}

		var msg envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			ws.writeError(conn, "bad json")
			continue
		}
		if msg.Type == "ping" {
			_ = ws.writeJSON(conn, map[string]any{"type": "pong"})
			continue
		}
		ws.writeError(conn, "unknown message type")
	}
}

// NotifyBooking pushes msg to every passenger socket following bookingID and returns how many
// sockets received it.
func (ws *WebSocket) NotifyBooking(ctx context.Context, bookingID string, msg any) int {
	v, ok := ws.passengers.Load(bookingID)
	if !ok {
		return 0
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		ws.logger.Error(ctx, "ws_marshal_failed", "Failed to marshal passenger message", err, map[string]any{
			"booking_id": bookingID,
		})
		return 0
	}

	sent := 0
	v.(*sync.Map).Range(func(key, _ any) bool {
		conn := key.(*websocket.Conn)
		if err := ws.wsWriteMessage(conn, websocket.TextMessage, payload); err != nil {
			ws.logger.Error(ctx, "ws_write_failed", "Failed to push trip update to passenger", err, map[string]any{
				"booking_id": bookingID,
			})
			return true
		}
		sent++
		return true
	})
	return sent
}

// Subscribers is the number of passenger sockets following bookingID.
func (ws *WebSocket) Subscribers(bookingID string) int {
	v, ok := ws.passengers.Load(bookingID)
	if !ok {
		return 0
	}
	n := 0
	v.(*sync.Map).Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (ws *WebSocket) subscribers(bookingID string) *sync.Map {
	actual, _ := ws.passengers.LoadOrStore(bookingID, &sync.Map{})
	return actual.(*sync.Map)
}

func (ws *WebSocket) unsubscribe(bookingID string, conn *websocket.Conn) {
	if v, ok := ws.passengers.Load(bookingID); ok {
		v.(*sync.Map).Delete(conn)
	}
}
