package geo

import (
	"errors"
	"math"
)

const earthRadiusKM = 6371.0

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || math.IsNaN(p.Lat) {
		return ErrInvalidLatitude
	}
	if p.Lng < -180 || p.Lng > 180 || math.IsNaN(p.Lng) {
		return ErrInvalidLongitude
	}
	return nil
}

// HaversineKM returns the great-circle distance between two points in kilometres.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

// HaversineMeters is HaversineKM in metres.
func HaversineMeters(a, b Point) float64 {
	return HaversineKM(a, b) * 1000
}
