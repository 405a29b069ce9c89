package cadence

import (
	"context"
	"fmt"
	"math"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/ports"
)

// Speed rescaling only applies within this band around the route's implied average speed.
const (
	minSpeedRatio = 0.5
	maxSpeedRatio = 2.0
)

// CalculateETA asks the directions provider for a driving route from the last sample to
// destination. currentSpeedKMH, when plausible relative to the route, rescales the duration.
func (c *Controller) CalculateETA(ctx context.Context, destination geo.Point, currentSpeedKMH *float64) (trip.ETA, error) {
	eta, _, err := c.routeETA(ctx, destination, currentSpeedKMH)
	return eta, err
}

func (c *Controller) routeETA(ctx context.Context, destination geo.Point, currentSpeedKMH *float64) (trip.ETA, trip.Route, error) {
	last, ok := c.LastSample()
	if !ok {
		return trip.ETA{}, trip.Route{}, ErrNoCurrentLocation
	}
	if c.directions == nil {
		return trip.ETA{}, trip.Route{}, ErrDirectionsUnavailable
	}

	now := c.now()
	routes, err := c.directions.Directions(ctx, last.Coordinates, destination, ports.DirectionsOptions{
		TravelMode:    "driving",
		DepartureTime: now,
		TrafficModel:  "best_guess",
	})
	if err != nil {
		return trip.ETA{}, trip.Route{}, fmt.Errorf("directions: %w", err)
	}
	if len(routes) == 0 {
		return trip.ETA{}, trip.Route{}, ErrNoRoute
	}
	route := routes[0]

	seconds := float64(route.DurationSeconds)
	if route.DurationInTrafficSeconds > 0 {
		seconds = float64(route.DurationInTrafficSeconds)
	}
	seconds = rescaleBySpeed(seconds, float64(route.DistanceMeters), currentSpeedKMH)

	return trip.ETA{
		ArrivalTime: now.Add(time.Duration(seconds * float64(time.Second))).UTC(),
		DistanceKM:  math.Round(float64(route.DistanceMeters)/10) / 100,
		Minutes:     int(math.Ceil(seconds / 60)),
	}, route, nil
}

// rescaleBySpeed scales duration by routeSpeed/currentSpeed when the ratio is within
// [minSpeedRatio, maxSpeedRatio]; momentary spikes outside the band are ignored.
func rescaleBySpeed(seconds, meters float64, currentSpeedKMH *float64) float64 {
	if currentSpeedKMH == nil || *currentSpeedKMH <= 0 || seconds <= 0 || meters <= 0 {
		return seconds
	}
	routeSpeed := (meters / 1000) / (seconds / 3600)
	ratio := *currentSpeedKMH / routeSpeed
	if ratio < minSpeedRatio || ratio > maxSpeedRatio {
		return seconds
	}
	return seconds / ratio
}
