package geo

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ID is the identifier of an archived location row (UUID in DB).
type ID string

// LocationHistory is the domain entity corresponding to the `location_history` table.
type LocationHistory struct {
	ID             ID
	BookingID      string
	DriverID       string
	Latitude       float64
	Longitude      float64
	AccuracyMeters *float64
	SpeedKMH       *float64
	HeadingDegrees *float64
	AltitudeMeters *float64
	Source         Source
	RecordedAt     time.Time
}

var (
	ErrMissingBookingID   = errors.New("booking ID is missing")
	ErrMissingDriverID    = errors.New("driver ID is missing")
	ErrInvalidCoordinates = errors.New("coordinates cannot be zero")
	ErrNegativeAccuracy   = errors.New("accuracy_meters cannot be negative")
	ErrNegativeSpeed      = errors.New("speed_kmh cannot be negative")
	ErrInvalidHeading     = errors.New("heading_degrees must be between 0 and 360")
	ErrRecordedAtZeroTime = errors.New("recorded_at must be a valid timestamp")
)

// NewLocationHistory builds an archive row for a sample pushed during a trip.
func NewLocationHistory(bookingID, driverID string, sample LocationSample) (*LocationHistory, error) {
	acc := sample.Accuracy
	location := &LocationHistory{
		BookingID:      strings.TrimSpace(bookingID),
		DriverID:       strings.TrimSpace(driverID),
		Latitude:       sample.Coordinates.Lat,
		Longitude:      sample.Coordinates.Lng,
		AccuracyMeters: &acc,
		SpeedKMH:       copyFloat(sample.Speed),
		HeadingDegrees: copyFloat(sample.Heading),
		AltitudeMeters: copyFloat(sample.Altitude),
		Source:         sample.Source,
		RecordedAt:     sample.Timestamp.UTC(),
	}

	if location.RecordedAt.IsZero() {
		location.RecordedAt = time.Now().UTC()
	}
	if location.Source == "" {
		location.Source = SourceNetwork
	}

	if err := location.Validate(); err != nil {
		return nil, err
	}
	return location, nil
}

// Validate checks invariants of the LocationHistory entity.
func (location LocationHistory) Validate() error {
	if location.BookingID == "" {
		return ErrMissingBookingID
	}
	if location.DriverID == "" {
		return ErrMissingDriverID
	}

	if location.Latitude == 0 && location.Longitude == 0 {
		return ErrInvalidCoordinates
	}
	if err := (Point{Lat: location.Latitude, Lng: location.Longitude}).Validate(); err != nil {
		return err
	}

	if location.AccuracyMeters != nil {
		if *location.AccuracyMeters < 0 || math.IsNaN(*location.AccuracyMeters) {
			return ErrNegativeAccuracy
		}
	}
	if location.SpeedKMH != nil {
		if *location.SpeedKMH < 0 || math.IsNaN(*location.SpeedKMH) {
			return ErrNegativeSpeed
		}
	}
	if location.HeadingDegrees != nil {
		// some SDKs report 360.0 instead of 0.0
		if *location.HeadingDegrees < 0 || *location.HeadingDegrees > 360 || math.IsNaN(*location.HeadingDegrees) {
			return ErrInvalidHeading
		}
	}

	if location.RecordedAt.IsZero() {
		return ErrRecordedAtZeroTime
	}
	return nil
}
