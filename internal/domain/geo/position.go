package geo

import (
	"fmt"
	"time"
)

// RawPosition is a fix as reported by the device, speed in m/s.
type RawPosition struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionOptions mirrors the knobs a device geolocation API accepts.
type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// PositionErrorCode is the reason a device could not produce a fix.
type PositionErrorCode string

const (
	PositionPermissionDenied PositionErrorCode = "permission_denied"
	PositionUnavailable      PositionErrorCode = "position_unavailable"
	PositionTimeout          PositionErrorCode = "timeout"
	PositionUnknownErrorCode PositionErrorCode = "unknown"
)

// ParsePositionErrorCode accepts both the symbolic names and the numeric codes (1, 2, 3) devices send.
func ParsePositionErrorCode(s string) PositionErrorCode {
	switch s {
	case "1", string(PositionPermissionDenied):
		return PositionPermissionDenied
	case "2", string(PositionUnavailable):
		return PositionUnavailable
	case "3", string(PositionTimeout):
		return PositionTimeout
	default:
		return PositionUnknownErrorCode
	}
}

// PositionError is a device-side geolocation failure.
type PositionError struct {
	Code    PositionErrorCode `json:"code"`
	Message string            `json:"message"`
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geolocation: %s", e.Code)
	}
	return fmt.Sprintf("geolocation: %s: %s", e.Code, e.Message)
}
