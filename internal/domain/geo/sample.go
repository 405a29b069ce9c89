package geo

import "time"

// Source tells whether a fix came from satellite positioning or network triangulation.
type Source string

const (
	SourceGPS     Source = "gps"
	SourceNetwork Source = "network"
)

// MaxPlausibleSpeedKMH bounds reported speed; anything faster is treated as sensor noise.
const MaxPlausibleSpeedKMH = 300.0

// gpsAccuracyThreshold separates gps from network fixes.
const gpsAccuracyThreshold = 50.0

// LocationSample is one processed device position.
type LocationSample struct {
	Coordinates Point     `json:"coordinates"`
	Accuracy    float64   `json:"accuracy"`
	Heading     *float64  `json:"heading,omitempty"`
	Speed       *float64  `json:"speed,omitempty"` // km/h
	Altitude    *float64  `json:"altitude,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Source      Source    `json:"source"`
}

// SampleFromRaw converts a raw device position: m/s speed becomes km/h, implausible speeds
// are dropped, and the source is inferred from accuracy.
func SampleFromRaw(raw RawPosition) LocationSample {
	s := LocationSample{
		Coordinates: Point{Lat: raw.Latitude, Lng: raw.Longitude},
		Accuracy:    raw.Accuracy,
		Heading:     copyFloat(raw.Heading),
		Altitude:    copyFloat(raw.Altitude),
		Timestamp:   raw.Timestamp,
		Source:      SourceNetwork,
	}
	if raw.Speed != nil {
		kmh := *raw.Speed * 3.6
		if kmh >= 0 && kmh <= MaxPlausibleSpeedKMH {
			s.Speed = &kmh
		}
	}
	if raw.Accuracy < gpsAccuracyThreshold {
		s.Source = SourceGPS
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	return s
}

// AccuracyLevel buckets a horizontal accuracy radius.
type AccuracyLevel string

const (
	AccuracyExcellent AccuracyLevel = "excellent"
	AccuracyGood      AccuracyLevel = "good"
	AccuracyFair      AccuracyLevel = "fair"
	AccuracyPoor      AccuracyLevel = "poor"
)

// ClassifyAccuracy maps metres to a level: <=10 excellent, <=50 good, <=100 fair, else poor.
func ClassifyAccuracy(meters float64) AccuracyLevel {
	switch {
	case meters <= 10:
		return AccuracyExcellent
	case meters <= 50:
		return AccuracyGood
	case meters <= 100:
		return AccuracyFair
	default:
		return AccuracyPoor
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
