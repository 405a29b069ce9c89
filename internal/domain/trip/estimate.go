package trip

import "math"

// UrbanAverageSpeedKMH is used when no directions provider is available.
const UrbanAverageSpeedKMH = 24.0

// Estimate is the pre-trip quote shown to the customer.
type Estimate struct {
	Fare            float64 `json:"estimated_fare"`
	DistanceKM      float64 `json:"estimated_distance_km"`
	DurationMinutes int     `json:"estimated_duration_minutes"`
}

// EstimateDurationMinutes converts a straight-line distance into whole minutes at urban speed.
func EstimateDurationMinutes(distanceKM float64) int {
	m := int(math.Ceil(distanceKM / UrbanAverageSpeedKMH * 60.0))
	if m < 1 {
		return 1
	}
	return m
}

// ComputeFare returns base + distance_km*per_km + duration_min*per_min in minor currency units.
func ComputeFare(vt VehicleType, distanceKM float64, durationMin int) float64 {
	type rates struct {
		base      float64
		perKM     float64
		perMinute float64
	}

	var rate rates
	switch vt {
	case VehiclePremium:
		rate = rates{base: 800, perKM: 120, perMinute: 60}
	case VehicleXL:
		rate = rates{base: 1000, perKM: 150, perMinute: 75}
	default:
		rate = rates{base: 500, perKM: 100, perMinute: 50}
	}

	if distanceKM < 0 {
		distanceKM = 0
	}
	if durationMin < 0 {
		durationMin = 0
	}

	fare := rate.base + rate.perKM*distanceKM + rate.perMinute*float64(durationMin)
	return math.Round(fare*100) / 100
}

// NewEstimate builds a quote from a route distance and duration.
func NewEstimate(vt VehicleType, distanceKM float64, durationMin int) Estimate {
	return Estimate{
		Fare:            ComputeFare(vt, distanceKM, durationMin),
		DistanceKM:      math.Round(distanceKM*100) / 100,
		DurationMinutes: durationMin,
	}
}
