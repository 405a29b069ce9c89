// Package maps provides route lookups for ETA and fare estimation.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/general/config"
	"ride-booking/internal/ports"

	gmaps "googlemaps.github.io/maps"
)

var (
	ErrNoRoute     = errors.New("maps: no route found")
	ErrRequestDeny = errors.New("maps: request denied")
)

// Client adapts the Google Directions API to ports.DirectionsProvider.
type Client struct {
	api *gmaps.Client
}

var _ ports.DirectionsProvider = (*Client)(nil)

// NewDirections returns a Directions client when an API key is configured and the
// straight-line estimator otherwise.
func NewDirections(cfg config.MapsConfig, httpClient *http.Client) (ports.DirectionsProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return StraightLine{}, nil
	}
	return NewClient(cfg, httpClient)
}

func NewClient(cfg config.MapsConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	opts := []gmaps.ClientOption{
		gmaps.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		gmaps.WithHTTPClient(httpClient),
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		opts = append(opts, gmaps.WithBaseURL(base))
	}
	api, err := gmaps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("maps: new client: %w", err)
	}
	return &Client{api: api}, nil
}

// Directions queries the directions endpoint and sums each route's legs.
func (c *Client) Directions(ctx context.Context, origin, destination geo.Point, opts ports.DirectionsOptions) ([]trip.Route, error) {
	req := &gmaps.DirectionsRequest{
		Origin:      formatPoint(origin),
		Destination: formatPoint(destination),
		Mode:        gmaps.TravelModeDriving,
	}
	if opts.TravelMode != "" {
		req.Mode = gmaps.Mode(opts.TravelMode)
	}
	if !opts.DepartureTime.IsZero() {
		req.DepartureTime = strconv.FormatInt(opts.DepartureTime.Unix(), 10)
		req.TrafficModel = gmaps.TrafficModelBestGuess
		if opts.TrafficModel != "" {
			req.TrafficModel = gmaps.TrafficModel(opts.TrafficModel)
		}
	}

	found, _, err := c.api.Directions(ctx, req)
	if err != nil {
		return nil, classify(err)
	}

	routes := make([]trip.Route, 0, len(found))
	for _, r := range found {
		var out trip.Route
		for _, leg := range r.Legs {
			out.DistanceMeters += leg.Distance.Meters
			out.DurationSeconds += int(leg.Duration / time.Second)
			out.DurationInTrafficSeconds += int(leg.DurationInTraffic / time.Second)
		}
		routes = append(routes, out)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}
	return routes, nil
}

// classify maps the API status carried in the client's error text onto our sentinels.
func classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ZERO_RESULTS"), strings.Contains(msg, "NOT_FOUND"):
		return ErrNoRoute
	case strings.Contains(msg, "REQUEST_DENIED"):
		return fmt.Errorf("%w: %s", ErrRequestDeny, msg)
	default:
		return fmt.Errorf("maps: directions: %w", err)
	}
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

// StraightLine estimates a single route from the great-circle distance at urban average speed.
type StraightLine struct{}

var _ ports.DirectionsProvider = StraightLine{}

func (StraightLine) Directions(ctx context.Context, origin, destination geo.Point, _ ports.DirectionsOptions) ([]trip.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meters := geo.HaversineMeters(origin, destination)
	seconds := meters / (trip.UrbanAverageSpeedKMH * 1000 / 3600)
	return []trip.Route{{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
	}}, nil
}
