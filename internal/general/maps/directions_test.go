package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/general/config"
	"ride-booking/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	stockholm = geo.Point{Lat: 59.3293, Lng: 18.0686}
	solna     = geo.Point{Lat: 59.3600, Lng: 18.0000}
)

func TestDirectionsSumsLegs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "driving", q.Get("mode"))
		assert.Equal(t, "best_guess", q.Get("traffic_model"))
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "59.329300,18.068600", q.Get("origin"))
		assert.NotEmpty(t, q.Get("departure_time"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"legs":[
			{"distance":{"value":1000},"duration":{"value":120},"duration_in_traffic":{"value":180}},
			{"distance":{"value":500},"duration":{"value":60},"duration_in_traffic":{"value":90}}]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.MapsConfig{APIKey: "key", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	routes, err := c.Directions(context.Background(), stockholm, solna, ports.DirectionsOptions{DepartureTime: time.Now()})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 1500, routes[0].DistanceMeters)
	assert.Equal(t, 180, routes[0].DurationSeconds)
	assert.Equal(t, 270, routes[0].DurationInTrafficSeconds)
}

func TestDirectionsStatusErrors(t *testing.T) {
	cases := map[string]error{
		`{"status":"ZERO_RESULTS","routes":[]}`:                 ErrNoRoute,
		`{"status":"REQUEST_DENIED","error_message":"bad key"}`: ErrRequestDeny,
		`{"status":"OK","routes":[]}`:                           ErrNoRoute,
		`{"status":"NOT_FOUND","routes":[]}`:                    ErrNoRoute,
	}
	for body, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c, err := NewClient(config.MapsConfig{APIKey: "key", BaseURL: srv.URL}, srv.Client())
		require.NoError(t, err)
		_, err = c.Directions(context.Background(), stockholm, solna, ports.DirectionsOptions{})
		assert.ErrorIs(t, err, want, body)
		srv.Close()
	}
}

func TestNewDirectionsFallsBackWithoutKey(t *testing.T) {
	p, err := NewDirections(config.MapsConfig{}, nil)
	require.NoError(t, err)
	_, ok := p.(StraightLine)
	require.True(t, ok)

	routes, err := p.Directions(context.Background(), stockholm, solna, ports.DirectionsOptions{})
	require.NoError(t, err)
	require.Len(t, routes, 1)

	km := geo.HaversineKM(stockholm, solna)
	assert.InDelta(t, km*1000, routes[0].DistanceMeters, 1)
	// 24 km/h is 150 seconds per km
	assert.InDelta(t, km*150, routes[0].DurationSeconds, 1)
	assert.Zero(t, routes[0].DurationInTrafficSeconds)
}

func TestNewDirectionsUsesAPIWithKey(t *testing.T) {
	p, err := NewDirections(config.MapsConfig{APIKey: "key"}, nil)
	require.NoError(t, err)
	_, ok := p.(*Client)
	assert.True(t, ok)
}

func TestDirectionsWithoutDepartureOmitsTraffic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Empty(t, q.Get("departure_time"))
		assert.Empty(t, q.Get("traffic_model"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"legs":[{"distance":{"value":800},"duration":{"value":100}}]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.MapsConfig{APIKey: "key", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	routes, err := c.Directions(context.Background(), stockholm, solna, ports.DirectionsOptions{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 800, routes[0].DistanceMeters)
	assert.Equal(t, 100, routes[0].DurationSeconds)
	assert.Zero(t, routes[0].DurationInTrafficSeconds)
}
