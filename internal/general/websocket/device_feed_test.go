package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ride-booking/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchLog struct {
	mu        sync.Mutex
	positions []geo.RawPosition
	errs      []error
}

func (l *watchLog) onSuccess(p geo.RawPosition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = append(l.positions, p)
}

func (l *watchLog) onError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *watchLog) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions), len(l.errs)
}

func TestFeedFansOutToWatchers(t *testing.T) {
	feed := NewDeviceFeed()
	require.True(t, feed.Attach())
	assert.False(t, feed.Attach(), "second device must be rejected")

	var a, b watchLog
	idA, err := feed.WatchPosition(a.onSuccess, a.onError, geo.PositionOptions{})
	require.NoError(t, err)
	_, err = feed.WatchPosition(b.onSuccess, b.onError, geo.PositionOptions{})
	require.NoError(t, err)

	feed.Deliver(geo.RawPosition{Latitude: 59.33, Longitude: 18.06, Accuracy: 8})
	feed.ClearWatch(idA)
	feed.Deliver(geo.RawPosition{Latitude: 59.34, Longitude: 18.07, Accuracy: 8})
	feed.Fail(&geo.PositionError{Code: geo.PositionTimeout})

	na, ea := a.counts()
	nb, eb := b.counts()
	assert.Equal(t, 1, na)
	assert.Equal(t, 0, ea)
	assert.Equal(t, 2, nb)
	assert.Equal(t, 1, eb)
	assert.False(t, b.positions[0].Timestamp.IsZero(), "missing timestamps are stamped on delivery")
}

func TestDetachReportsUnavailable(t *testing.T) {
	feed := NewDeviceFeed()
	require.True(t, feed.Attach())

	var l watchLog
	_, err := feed.WatchPosition(l.onSuccess, l.onError, geo.PositionOptions{})
	require.NoError(t, err)

	feed.Detach()
	feed.Detach()

	_, n := l.counts()
	require.Equal(t, 1, n)
	var pe *geo.PositionError
	require.True(t, errors.As(l.errs[0], &pe))
	assert.Equal(t, geo.PositionUnavailable, pe.Code)
	assert.False(t, feed.Connected())
	assert.True(t, feed.Attach(), "a new device may attach after detach")
}

func TestCurrentPositionUsesCacheWithinMaximumAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	feed := NewDeviceFeed()
	feed.now = func() time.Time { return now }
	require.True(t, feed.Attach())
	feed.Deliver(geo.RawPosition{Latitude: 59.33, Longitude: 18.06})

	now = now.Add(20 * time.Second)
	pos, err := feed.CurrentPosition(context.Background(), geo.PositionOptions{MaximumAge: 30 * time.Second, Timeout: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 59.33, pos.Latitude)

	now = now.Add(20 * time.Second)
	_, err = feed.CurrentPosition(context.Background(), geo.PositionOptions{MaximumAge: 30 * time.Second, Timeout: 10 * time.Millisecond})
	var pe *geo.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, geo.PositionTimeout, pe.Code)
}

func TestCurrentPositionWaitsForNextFix(t *testing.T) {
	feed := NewDeviceFeed()
	require.True(t, feed.Attach())

	go func() {
		time.Sleep(10 * time.Millisecond)
		feed.Deliver(geo.RawPosition{Latitude: 1, Longitude: 2})
	}()

	pos, err := feed.CurrentPosition(context.Background(), geo.PositionOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos.Latitude)
}

func TestCurrentPositionWithoutDevice(t *testing.T) {
	feed := NewDeviceFeed()

	_, err := feed.CurrentPosition(context.Background(), geo.PositionOptions{Timeout: time.Second})
	var pe *geo.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, geo.PositionUnavailable, pe.Code)
}

func TestCurrentPositionHonorsContext(t *testing.T) {
	feed := NewDeviceFeed()
	require.True(t, feed.Attach())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := feed.CurrentPosition(ctx, geo.PositionOptions{Timeout: time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeedRegistry(t *testing.T) {
	reg := NewFeedRegistry()
	a := reg.Feed("b-1")
	assert.Same(t, a, reg.Feed("b-1"))
	assert.NotSame(t, a, reg.Feed("b-2"))

	reg.Release("b-1")
	assert.NotSame(t, a, reg.Feed("b-1"))
}

func TestDecodePosition(t *testing.T) {
	raw, err := decodePosition([]byte(`{"latitude":59.33,"longitude":18.06,"accuracy":12,"speed":10}`))
	require.NoError(t, err)
	assert.Equal(t, 59.33, raw.Latitude)
	require.NotNil(t, raw.Speed)
	assert.Equal(t, 10.0, *raw.Speed)

	_, err = decodePosition([]byte(`{"longitude":18.06}`))
	assert.ErrorIs(t, err, errMissingCoordinates)

	_, err = decodePosition([]byte(`{"latitude":91,"longitude":18.06}`))
	assert.ErrorIs(t, err, errBadCoordinates)

	_, err = decodePosition([]byte(`{"latitude":59,"longitude":18,"accuracy":-1}`))
	assert.ErrorIs(t, err, errBadAccuracy)

	_, err = decodePosition([]byte(`[]`))
	assert.ErrorIs(t, err, errBadPosition)
}
