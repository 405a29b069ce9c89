// Package cadence runs a device position feed for one trip: it filters jitter, adapts the
// push interval to battery and network conditions, detects arrival and computes ETAs.
package cadence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/general/config"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/metrics"
	"ride-booking/internal/ports"
)

var (
	ErrTrackingAlreadyActive  = errors.New("tracking already active")
	ErrGeolocationUnsupported = errors.New("geolocation is not supported")
	ErrNoCurrentLocation      = errors.New("no current location")
	ErrNoRoute                = errors.New("no route to destination")
	ErrDirectionsUnavailable  = errors.New("directions provider unavailable")
)

// Warm-up fetch limits; the warm-up exists to surface permission problems before watching.
const (
	warmUpTimeout    = 10 * time.Second
	warmUpMaximumAge = 30 * time.Second
)

// Settings are the controller tunables.
type Settings struct {
	DefaultInterval      time.Duration
	FastInterval         time.Duration
	SlowInterval         time.Duration
	SignificantDistanceM float64
	ArrivalRadiusM       float64
	MaxConsecutiveErrors int
}

// SettingsFromConfig maps the tracking config section.
func SettingsFromConfig(cfg config.TrackingConfig) Settings {
	return Settings{
		DefaultInterval:      cfg.UpdateInterval,
		FastInterval:         cfg.FastInterval,
		SlowInterval:         cfg.SlowInterval,
		SignificantDistanceM: cfg.SignificantDistanceM,
		ArrivalRadiusM:       cfg.ArrivalRadiusM,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}
}

// DefaultSettings are the production defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultInterval:      10 * time.Second,
		FastInterval:         5 * time.Second,
		SlowInterval:         30 * time.Second,
		SignificantDistanceM: 50,
		ArrivalRadiusM:       100,
		MaxConsecutiveErrors: 5,
	}
}

// Options configure one tracking session.
type Options struct {
	BookingID        string
	UpdateInterval   time.Duration
	HighAccuracy     bool
	BatteryOptimized bool
}

// Session is a snapshot of the controller's tracking state.
type Session struct {
	Tracking          bool
	BookingID         string
	Accuracy          geo.AccuracyLevel
	LastUpdate        time.Time
	UpdateInterval    time.Duration
	BatteryOptimized  bool
	ConsecutiveErrors int
}

// Controller owns the position watch and the periodic push timer for one device.
type Controller struct {
	signal

	geo        ports.Geolocation
	sink       ports.LocationSink
	directions ports.DirectionsProvider
	settings   Settings
	log        *logger.Logger
	now        func() time.Time

	mu         sync.Mutex
	tracking   bool
	starting   bool
	run        uint64
	opts       Options
	watchID    ports.WatchID
	interval   time.Duration
	last       *geo.LocationSample
	lastUpdate time.Time
	accuracy   geo.AccuracyLevel
	errCount   int
	base       context.Context
	stopTimer  context.CancelFunc
}

// NewController builds a controller. A nil geolocation makes StartTracking fail with
// ErrGeolocationUnsupported; a nil sink disables pushes.
func NewController(
	geolocation ports.Geolocation,
	sink ports.LocationSink,
	directions ports.DirectionsProvider,
	settings Settings,
	log *logger.Logger,
) *Controller {
	return &Controller{
		geo:        geolocation,
		sink:       sink,
		directions: directions,
		settings:   settings,
		log:        log,
		now:        time.Now,
	}
}

// StartTracking fetches one warm-up position, then starts the position watch and the push timer.
func (c *Controller) StartTracking(ctx context.Context, opts Options) error {
	c.mu.Lock()
	if c.tracking || c.starting {
		c.mu.Unlock()
		return ErrTrackingAlreadyActive
	}
	if c.geo == nil {
		c.mu.Unlock()
		return ErrGeolocationUnsupported
	}
	c.starting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	warm, err := c.geo.CurrentPosition(ctx, geo.PositionOptions{
		EnableHighAccuracy: opts.HighAccuracy,
		Timeout:            warmUpTimeout,
		MaximumAge:         warmUpMaximumAge,
	})
	if err != nil {
		return fmt.Errorf("warm-up position: %w", err)
	}

	interval := opts.UpdateInterval
	if interval <= 0 {
		interval = c.settings.DefaultInterval
	}

	c.mu.Lock()
	c.run++
	run := c.run
	c.tracking = true
	c.opts = opts
	c.interval = interval
	c.errCount = 0
	c.last = nil
	c.base = context.WithoutCancel(ctx)

	id, err := c.geo.WatchPosition(
		func(raw geo.RawPosition) { c.handlePosition(run, raw) },
		func(err error) { c.handleError(run, err) },
		watchOptions(opts),
	)
	if err != nil {
		c.tracking = false
		c.mu.Unlock()
		return fmt.Errorf("watch position: %w", err)
	}
	c.watchID = id
	c.startTimerLocked(run)
	c.mu.Unlock()

	metrics.TrackingSessionsActive.Inc()
	c.log.Info(ctx, "tracking_started", "location tracking started", map[string]any{
		"booking_id": opts.BookingID, "interval_ms": interval.Milliseconds(),
	})
	c.emit(Started{BookingID: opts.BookingID, Interval: interval})

	c.handlePosition(run, warm)
	return nil
}

// watchOptions trades accuracy for battery when asked to.
func watchOptions(opts Options) geo.PositionOptions {
	if opts.BatteryOptimized {
		return geo.PositionOptions{EnableHighAccuracy: false, Timeout: 30 * time.Second, MaximumAge: time.Minute}
	}
	return geo.PositionOptions{EnableHighAccuracy: opts.HighAccuracy, Timeout: 15 * time.Second, MaximumAge: 5 * time.Second}
}

// StopTracking cancels the watch and the push timer. Idempotent.
func (c *Controller) StopTracking() {
	c.mu.Lock()
	if !c.tracking {
		c.mu.Unlock()
		return
	}
	ev := c.stopLocked()
	c.mu.Unlock()

	c.emit(ev)
}

// stopLocked ends the session and returns the Stopped event to emit.
func (c *Controller) stopLocked() Stopped {
	c.tracking = false
	c.run++
	c.geo.ClearWatch(c.watchID)
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	metrics.TrackingSessionsActive.Dec()

	ev := Stopped{BookingID: c.opts.BookingID}
	if c.last != nil {
		last := *c.last
		ev.LastSample = &last
	}
	return ev
}

func (c *Controller) active(run uint64) bool {
	return c.tracking && c.run == run
}

func (c *Controller) handlePosition(run uint64, raw geo.RawPosition) {
	sample := geo.SampleFromRaw(raw)

	c.mu.Lock()
	if !c.active(run) {
		c.mu.Unlock()
		return
	}
	c.errCount = 0
	if c.last != nil && geo.HaversineMeters(c.last.Coordinates, sample.Coordinates) < c.settings.SignificantDistanceM {
		c.mu.Unlock()
		metrics.TrackingSamplesTotal.WithLabelValues("filtered").Inc()
		return
	}
	c.last = &sample
	c.lastUpdate = c.now()
	c.accuracy = geo.ClassifyAccuracy(sample.Accuracy)
	ev := LocationUpdated{BookingID: c.opts.BookingID, Sample: sample, Accuracy: c.accuracy}
	c.mu.Unlock()

	metrics.TrackingSamplesTotal.WithLabelValues("accepted").Inc()
	c.emit(ev)
}

func (c *Controller) handleError(run uint64, err error) {
	c.mu.Lock()
	if !c.active(run) {
		c.mu.Unlock()
		return
	}
	c.errCount++
	n := c.errCount
	booking := c.opts.BookingID
	if n < c.settings.MaxConsecutiveErrors {
		c.mu.Unlock()
		c.emit(PositionFailed{BookingID: booking, Err: err, Consecutive: n})
		return
	}
	stopped := c.stopLocked()
	base := c.base
	c.mu.Unlock()

	c.log.Error(base, "tracking_failed", "too many consecutive position errors", err, map[string]any{
		"booking_id": booking, "errors": n,
	})
	c.emit(TrackingFailed{BookingID: booking, Reason: ReasonTooManyErrors, Err: err})
	c.emit(stopped)
}

func (c *Controller) startTimerLocked(run uint64) {
	ctx, cancel := context.WithCancel(c.base)
	c.stopTimer = cancel
	go c.pushLoop(ctx, run, c.interval)
}

func (c *Controller) pushLoop(ctx context.Context, run uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pushLatest(ctx, run, interval)
		}
	}
}

func (c *Controller) pushLatest(ctx context.Context, run uint64, interval time.Duration) {
	c.mu.Lock()
	if !c.active(run) || c.last == nil || c.sink == nil {
		c.mu.Unlock()
		return
	}
	sample := *c.last
	booking := c.opts.BookingID
	c.mu.Unlock()

	pushCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	if err := c.sink.Push(pushCtx, sample); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.TrackingPushTotal.WithLabelValues("error").Inc()
		c.log.Error(ctx, "location_push_failed", "failed to push location", err, map[string]any{"booking_id": booking})
		c.emit(SinkFailed{BookingID: booking, Sample: sample, Err: err})
		return
	}
	metrics.TrackingPushTotal.WithLabelValues("ok").Inc()
}

// IsTracking reports whether a session is active.
func (c *Controller) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// LastSample returns a copy of the most recent accepted sample.
func (c *Controller) LastSample() (geo.LocationSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return geo.LocationSample{}, false
	}
	return *c.last, true
}

// Session returns a snapshot of the tracking state.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		Tracking:          c.tracking,
		BookingID:         c.opts.BookingID,
		Accuracy:          c.accuracy,
		LastUpdate:        c.lastUpdate,
		UpdateInterval:    c.interval,
		BatteryOptimized:  c.opts.BatteryOptimized,
		ConsecutiveErrors: c.errCount,
	}
}

// CheckArrival reports whether the last sample is within the arrival radius of destination.
func (c *Controller) CheckArrival(destination geo.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return false
	}
	return geo.HaversineMeters(c.last.Coordinates, destination) <= c.settings.ArrivalRadiusM
}
