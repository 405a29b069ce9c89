package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/tracking/cadence"
)

// etaRefreshEvery bounds how often location updates trigger a passenger ETA push.
const etaRefreshEvery = time.Minute

// tripSession is the live tracking state of one booking.
type tripSession struct {
	bookingID string
	driverID  string
	tracker   *cadence.TripTracker
	unsub     func()

	mu         sync.Mutex
	lastETA    time.Time
	refreshing bool
}

// close stops the tracker while still subscribed, so the final Stopped event is recorded.
func (s *tripSession) close() {
	s.tracker.Close()
	s.unsub()
}

// discard stops the tracker without recording anything.
func (s *tripSession) discard() {
	s.unsub()
	s.tracker.Close()
}

// claimETARefresh reports whether the caller should refresh the ETA now.
func (s *tripSession) claimETARefresh(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing || now.Sub(s.lastETA) < etaRefreshEvery {
		return false
	}
	s.refreshing = true
	return true
}

func (s *tripSession) etaRefreshed(now time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if ok {
		s.lastETA = now
	}
}

// StartTracking attaches a controller to the booking's device feed and starts it. Only the
// assigned driver may start tracking, and the device socket must already be connected.
func (service *trackingService) StartTracking(ctx context.Context, in ports.StartTrackingInput) (ports.TrackingView, error) {
	ctx = service.logger.WithBookingID(ctx, in.BookingID)

	b, err := service.loadBooking(ctx, in.BookingID)
	if err != nil {
		return ports.TrackingView{}, err
	}
	if in.Actor.Role != user.RoleDriver || !b.AssignedTo(in.Actor.ID) {
		return ports.TrackingView{}, ErrForbidden
	}
	if !b.Status.Trackable() {
		return ports.TrackingView{}, ErrNotTrackable
	}

	s, created, err := service.session(b)
	if err != nil {
		return ports.TrackingView{}, err
	}

	err = s.tracker.Start(ctx, cadence.Options{
		UpdateInterval:   in.UpdateInterval,
		HighAccuracy:     in.HighAccuracy,
		BatteryOptimized: in.BatteryOptimized,
	})
	if err != nil {
		if created {
			service.dropSession(b.ID, s)
		}
		service.logger.Warn(ctx, "tracking_start_failed", "Failed to start tracking", map[string]any{
			"error": err.Error(),
		})
		return ports.TrackingView{}, err
	}

	return trackingView(s.tracker), nil
}

// session returns the booking's session, creating it when absent.
func (service *trackingService) session(b *trip.Booking) (*tripSession, bool, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	if service.closed {
		return nil, false, errors.New("tracking service is shutting down")
	}
	if s, ok := service.sessions[b.ID]; ok {
		s.tracker.SetStatus(b.Status)
		return s, false, nil
	}

	record, err := trip.NewTracking(b)
	if err != nil {
		return nil, false, err
	}
	sink := &bookingSink{service: service, bookingID: b.ID, driverID: record.DriverID}
	ctrl := cadence.NewController(service.devices.Geolocation(b.ID), sink, service.directions, service.settings, service.logger)
	tracker := cadence.NewTripTracker(record, ctrl)

	s := &tripSession{bookingID: b.ID, driverID: record.DriverID, tracker: tracker}
	s.unsub = tracker.Subscribe(func(ev cadence.Event) { service.onTrackerEvent(s, ev) })
	service.sessions[b.ID] = s
	return s, true, nil
}

// dropSession removes s if it is still the registered session for bookingID.
func (service *trackingService) dropSession(bookingID string, s *tripSession) {
	service.mu.Lock()
	if service.sessions[bookingID] == s {
		delete(service.sessions, bookingID)
	}
	service.mu.Unlock()
	s.discard()
}

// lookup returns the session of a booking the actor is a party to.
func (service *trackingService) lookup(ctx context.Context, actor ports.Actor, bookingID string, driverOnly bool) (*tripSession, error) {
	b, err := service.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if driverOnly {
		if actor.Role != user.RoleDriver || !b.AssignedTo(actor.ID) {
			return nil, ErrForbidden
		}
	} else if !isParty(b, actor) {
		return nil, ErrForbidden
	}

	service.mu.Lock()
	s, ok := service.sessions[bookingID]
	service.mu.Unlock()
	if !ok {
		return nil, ErrNoTrackingSession
	}
	return s, nil
}

// StopTracking stops the controller but keeps the session so the last known state stays readable.
func (service *trackingService) StopTracking(ctx context.Context, actor ports.Actor, bookingID string) (ports.TrackingView, error) {
	s, err := service.lookup(ctx, actor, bookingID, true)
	if err != nil {
		return ports.TrackingView{}, err
	}
	s.tracker.Stop()
	return trackingView(s.tracker), nil
}

// OptimizeTracking retunes the push cadence from device conditions.
func (service *trackingService) OptimizeTracking(ctx context.Context, in ports.OptimizeTrackingInput) (ports.TrackingView, error) {
	s, err := service.lookup(ctx, in.Actor, in.BookingID, true)
	if err != nil {
		return ports.TrackingView{}, err
	}
	s.tracker.Controller().OptimizeTracking(cadence.Conditions{
		BatteryLevel:   in.Conditions.BatteryLevel,
		IsCharging:     in.Conditions.IsCharging,
		NetworkType:    in.Conditions.NetworkType,
		BackgroundMode: in.Conditions.BackgroundMode,
	})
	return trackingView(s.tracker), nil
}

// GetTrip returns the live tracking view.
func (service *trackingService) GetTrip(ctx context.Context, actor ports.Actor, bookingID string) (ports.TrackingView, error) {
	s, err := service.lookup(ctx, actor, bookingID, false)
	if err != nil {
		return ports.TrackingView{}, err
	}
	return trackingView(s.tracker), nil
}

// GetETA computes an arrival estimate from the last sample to the current leg's target. An explicit speed overrides the
// device-reported one and leaves the stored route untouched.
func (service *trackingService) GetETA(ctx context.Context, actor ports.Actor, bookingID string, speedKMH *float64) (ports.ETAView, error) {
	s, err := service.lookup(ctx, actor, bookingID, false)
	if err != nil {
		return ports.ETAView{}, err
	}

	if speedKMH != nil {
		target, _ := s.tracker.Target()
		eta, err := s.tracker.Controller().CalculateETA(ctx, target, speedKMH)
		if err != nil {
			return ports.ETAView{}, err
		}
		return ports.ETAView{BookingID: bookingID, ETA: eta}, nil
	}

	eta, err := s.tracker.RefreshETA(ctx)
	if err != nil {
		return ports.ETAView{}, err
	}
	rec := s.tracker.Snapshot()
	return ports.ETAView{BookingID: bookingID, ETA: eta, Route: rec.Route}, nil
}

func trackingView(t *cadence.TripTracker) ports.TrackingView {
	sess := t.Controller().Session()
	v := ports.TrackingView{
		Tracking:          t.Snapshot(),
		IsTracking:        sess.Tracking,
		AccuracyLevel:     sess.Accuracy,
		UpdateIntervalMs:  sess.UpdateInterval.Milliseconds(),
		BatteryOptimized:  sess.BatteryOptimized,
		ConsecutiveErrors: sess.ConsecutiveErrors,
	}
	if !sess.LastUpdate.IsZero() {
		last := sess.LastUpdate.UTC()
		v.LastUpdate = &last
	}
	return v
}
