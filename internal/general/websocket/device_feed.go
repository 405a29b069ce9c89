package websocket

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/ports"
)

type watcher struct {
	onSuccess func(geo.RawPosition)
	onError   func(error)
}

// DeviceFeed is the geolocation capability of one trip, fed by the driver's device socket.
// Watch callbacks run on the goroutine that delivers the frame, never inside
// WatchPosition or ClearWatch.
type DeviceFeed struct {
	now func() time.Time

	mu        sync.Mutex
	connected bool
	last      *geo.RawPosition
	lastAt    time.Time
	nextID    ports.WatchID
	watchers  map[ports.WatchID]watcher
	waiters   []chan geo.RawPosition
}

var _ ports.Geolocation = (*DeviceFeed)(nil)

// NewDeviceFeed returns a feed with no device attached.
func NewDeviceFeed() *DeviceFeed {
	return &DeviceFeed{
		now:      time.Now,
		watchers: make(map[ports.WatchID]watcher),
	}
}

// Attach marks a device as connected. It returns false if another device already is.
func (f *DeviceFeed) Attach() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return false
	}
	f.connected = true
	return true
}

// Detach marks the device as gone and reports position_unavailable to watchers.
func (f *DeviceFeed) Detach() {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return
	}
	f.connected = false
	targets := f.snapshotLocked()
	f.mu.Unlock()

	err := &geo.PositionError{Code: geo.PositionUnavailable, Message: "device disconnected"}
	for _, w := range targets {
		w.onError(err)
	}
}

// Connected reports whether a device is attached.
func (f *DeviceFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Deliver records a fix from the device and fans it out to waiters and watchers.
func (f *DeviceFeed) Deliver(raw geo.RawPosition) {
	if raw.Timestamp.IsZero() {
		raw.Timestamp = f.now().UTC()
	}

	f.mu.Lock()
	pos := raw
	f.last = &pos
	f.lastAt = f.now()
	waiters := f.waiters
	f.waiters = nil
	targets := f.snapshotLocked()
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- raw
	}
	for _, w := range targets {
		w.onSuccess(raw)
	}
}

// Fail fans a device-side error out to watchers.
func (f *DeviceFeed) Fail(err *geo.PositionError) {
	f.mu.Lock()
	targets := f.snapshotLocked()
	f.mu.Unlock()

	for _, w := range targets {
		w.onError(err)
	}
}

// CurrentPosition returns the cached fix when it is younger than opts.MaximumAge, otherwise
// waits up to opts.Timeout for the next one.
func (f *DeviceFeed) CurrentPosition(ctx context.Context, opts geo.PositionOptions) (geo.RawPosition, error) {
	f.mu.Lock()
	if f.last != nil && opts.MaximumAge > 0 && f.now().Sub(f.lastAt) <= opts.MaximumAge {
		pos := *f.last
		f.mu.Unlock()
		return pos, nil
	}
	if !f.connected {
		f.mu.Unlock()
		return geo.RawPosition{}, &geo.PositionError{Code: geo.PositionUnavailable, Message: "no device connected"}
	}
	ch := make(chan geo.RawPosition, 1)
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		t := time.NewTimer(opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case pos := <-ch:
		return pos, nil
	case <-timeout:
		f.dropWaiter(ch)
		return geo.RawPosition{}, &geo.PositionError{Code: geo.PositionTimeout, Message: "no position within timeout"}
	case <-ctx.Done():
		f.dropWaiter(ch)
		return geo.RawPosition{}, ctx.Err()
	}
}

// WatchPosition registers callbacks for every subsequent fix or error.
func (f *DeviceFeed) WatchPosition(onSuccess func(geo.RawPosition), onError func(error), _ geo.PositionOptions) (ports.WatchID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.watchers[f.nextID] = watcher{onSuccess: onSuccess, onError: onError}
	return f.nextID, nil
}

// ClearWatch removes a watch. Unknown ids are ignored.
func (f *DeviceFeed) ClearWatch(id ports.WatchID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watchers, id)
}

// Watchers is the number of active watches.
func (f *DeviceFeed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

func (f *DeviceFeed) snapshotLocked() []watcher {
	out := make([]watcher, 0, len(f.watchers))
	for _, id := range slices.Sorted(maps.Keys(f.watchers)) {
		out = append(out, f.watchers[id])
	}
	return out
}

func (f *DeviceFeed) dropWaiter(ch chan geo.RawPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// FeedRegistry holds one DeviceFeed per booking.
type FeedRegistry struct {
	feeds sync.Map // key: bookingID(string) -> *DeviceFeed
}

// NewFeedRegistry returns an empty registry.
func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{}
}

// Feed returns the feed for bookingID, creating it on first use.
func (r *FeedRegistry) Feed(bookingID string) *DeviceFeed {
	if v, ok := r.feeds.Load(bookingID); ok {
		return v.(*DeviceFeed)
	}
	actual, _ := r.feeds.LoadOrStore(bookingID, NewDeviceFeed())
	return actual.(*DeviceFeed)
}

// Geolocation exposes the booking's feed as the positioning capability of a controller.
func (r *FeedRegistry) Geolocation(bookingID string) ports.Geolocation {
	return r.Feed(bookingID)
}

// Release forgets the feed for bookingID.
func (r *FeedRegistry) Release(bookingID string) {
	r.feeds.Delete(bookingID)
}
