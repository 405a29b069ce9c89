package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// positionFrame is the payload of a "position" frame; speed is in m/s.
type positionFrame struct {
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// positionErrorFrame is the payload of a "position_error" frame. Devices send the code either
// as a name or as the numeric geolocation code.
type positionErrorFrame struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// ConnectDevice streams the driver device's position fixes into the booking's DeviceFeed.
// GET /ws/trips/{booking_id}/device
func (ws *WebSocket) ConnectDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID := r.PathValue("booking_id")

	conn, actor, ok := ws.accept(w, r, user.RoleDriver)
	if !ok {
		return
	}
	// teardown order (LIFO on return)
	defer ws.forget(conn)
	defer conn.Close()

	feed := ws.feeds.Feed(bookingID)
	if !feed.Attach() {
		ws.writeError(conn, "another device is already streaming this booking")
		ws.wsWriteClose(conn, websocket.ClosePolicyViolation, "device already connected")
		return
	}
	defer feed.Detach()

	details := map[string]any{"booking_id": bookingID, "driver_id": actor.ID}
	ws.logger.Info(ctx, "ws_connected", "Driver device connected", details)

	done := make(chan struct{})
	defer close(done)
	go ws.keepAlive(ctx, conn, done)

	// read loop: route frames
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			ws.closeAfterRead(ctx, conn, err, details)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))

		var msg envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			ws.writeError(conn, "bad json")
			continue
		}

		switch msg.Type {
		case contracts.WSTypePosition:
			raw, err := decodePosition(msg.Data)
			if err != nil {
				ws.logger.Debug(ctx, "ws_bad_payload", "Rejected position frame", map[string]any{
					"booking_id": bookingID, "reason": err.Error(),
				})
				ws.writeError(conn, err.Error())
				continue
			}
			feed.Deliver(raw)

		case contracts.WSTypePositionError:
			var in positionErrorFrame
			if err := json.Unmarshal(msg.Data, &in); err != nil {
				ws.writeError(conn, "bad position_error payload")
				continue
			}
			code := geo.ParsePositionErrorCode(strings.Trim(string(in.Code), `"`))
			ws.logger.Warn(ctx, "device_position_error", "Device reported a position error", map[string]any{
				"booking_id": bookingID, "code": string(code),
			})
			feed.Fail(&geo.PositionError{Code: code, Message: in.Message})

		default:
			ws.writeError(conn, "unknown message type")
		}
	}
}

var (
	errBadPosition        = errors.New("invalid position data")
	errMissingCoordinates = errors.New("latitude and longitude are required")
	errBadCoordinates     = errors.New("invalid coordinates")
	errBadAccuracy        = errors.New("accuracy must not be negative")
)

// decodePosition validates a position frame and converts it to a RawPosition.
func decodePosition(data json.RawMessage) (geo.RawPosition, error) {
	var in positionFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return geo.RawPosition{}, errBadPosition
	}
	if in.Latitude == nil || in.Longitude == nil {
		return geo.RawPosition{}, errMissingCoordinates
	}
	if err := (geo.Point{Lat: *in.Latitude, Lng: *in.Longitude}).Validate(); err != nil {
		return geo.RawPosition{}, errBadCoordinates
	}
	if in.Accuracy < 0 {
		return geo.RawPosition{}, errBadAccuracy
	}
	return geo.RawPosition{
		Latitude:  *in.Latitude,
		Longitude: *in.Longitude,
		Accuracy:  in.Accuracy,
		Heading:   in.Heading,
		Speed:     in.Speed,
		Altitude:  in.Altitude,
		Timestamp: in.Timestamp,
	}, nil
}
