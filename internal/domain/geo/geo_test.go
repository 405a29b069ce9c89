package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestHaversine(t *testing.T) {
	stockholm := Point{Lat: 59.3293, Lng: 18.0686}
	gothenburg := Point{Lat: 57.7089, Lng: 11.9746}

	assert.InDelta(t, 398, HaversineKM(stockholm, gothenburg), 5)
	assert.Equal(t, 0.0, HaversineMeters(stockholm, stockholm))

	// ~0.00045 deg latitude is ~50m
	near := Point{Lat: stockholm.Lat + 0.00045, Lng: stockholm.Lng}
	assert.InDelta(t, 50, HaversineMeters(stockholm, near), 1)
}

func TestSampleFromRaw(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	s := SampleFromRaw(RawPosition{Latitude: 1, Longitude: 2, Accuracy: 8, Speed: ptr(10), Heading: ptr(90), Timestamp: ts})
	require.NotNil(t, s.Speed)
	assert.InDelta(t, 36, *s.Speed, 1e-9)
	assert.Equal(t, SourceGPS, s.Source)
	assert.Equal(t, 90.0, *s.Heading)
	assert.Equal(t, ts, s.Timestamp)

	// 100 m/s = 360 km/h is not plausible
	fast := SampleFromRaw(RawPosition{Latitude: 1, Longitude: 2, Accuracy: 80, Speed: ptr(100)})
	assert.Nil(t, fast.Speed)
	assert.Equal(t, SourceNetwork, fast.Source)
	assert.False(t, fast.Timestamp.IsZero())

	boundary := SampleFromRaw(RawPosition{Latitude: 1, Longitude: 2, Accuracy: 50})
	assert.Equal(t, SourceNetwork, boundary.Source)
	assert.Nil(t, boundary.Speed)
}

func TestClassifyAccuracy(t *testing.T) {
	assert.Equal(t, AccuracyExcellent, ClassifyAccuracy(10))
	assert.Equal(t, AccuracyGood, ClassifyAccuracy(10.5))
	assert.Equal(t, AccuracyGood, ClassifyAccuracy(50))
	assert.Equal(t, AccuracyFair, ClassifyAccuracy(100))
	assert.Equal(t, AccuracyPoor, ClassifyAccuracy(100.1))
}

func TestParsePositionErrorCode(t *testing.T) {
	assert.Equal(t, PositionPermissionDenied, ParsePositionErrorCode("1"))
	assert.Equal(t, PositionUnavailable, ParsePositionErrorCode("position_unavailable"))
	assert.Equal(t, PositionTimeout, ParsePositionErrorCode("3"))
	assert.Equal(t, PositionUnknownErrorCode, ParsePositionErrorCode("9"))
	assert.Contains(t, (&PositionError{Code: PositionTimeout, Message: "slow"}).Error(), "timeout: slow")
}

func TestNewLocationHistory(t *testing.T) {
	sample := LocationSample{Coordinates: Point{Lat: 59.3, Lng: 18.0}, Accuracy: 5, Speed: ptr(30), Source: SourceGPS}
	h, err := NewLocationHistory(" bk-1 ", "drv-1", sample)
	require.NoError(t, err)
	assert.Equal(t, "bk-1", h.BookingID)
	assert.Equal(t, 5.0, *h.AccuracyMeters)
	assert.False(t, h.RecordedAt.IsZero())

	_, err = NewLocationHistory("", "drv-1", sample)
	assert.ErrorIs(t, err, ErrMissingBookingID)

	_, err = NewLocationHistory("bk", "drv", LocationSample{})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	bad := sample
	bad.Heading = ptr(400)
	_, err = NewLocationHistory("bk", "drv", bad)
	assert.ErrorIs(t, err, ErrInvalidHeading)
}
