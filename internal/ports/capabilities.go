package ports

import (
	"context"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/general/contracts"
)

// ----- Phone sign-in -----

// PhoneIdentity is what a confirmed verification code yields.
type PhoneIdentity struct {
	ProviderUserID string `json:"provider_user_id"`
	PhoneNumber    string `json:"phone_number"`
	IDToken        string `json:"-"`
	RefreshToken   string `json:"-"`
	IsNewUser      bool   `json:"is_new_user"`
}

// Confirmation is the pending-verification handle returned by a successful send.
type Confirmation interface {
	Confirm(ctx context.Context, code string) (*PhoneIdentity, error)
}

// PhoneAuthProvider sends one-time codes. Errors should be *verification.ProviderError.
type PhoneAuthProvider interface {
	SendCode(ctx context.Context, phoneNumber, challengeToken string) (Confirmation, error)
}

// SecurityChallenge is an anti-abuse challenge mounted into a container before each send.
type SecurityChallenge interface {
	Initialize(ctx context.Context) error
	Render(ctx context.Context) (string, error)
	Clear()
	OnExpired(fn func())
	OnError(fn func(error))
}

// ChallengeFactory creates a challenge bound to the container with the given id.
type ChallengeFactory func(containerID string) SecurityChallenge

// ----- Location -----

// WatchID identifies an active position watch.
type WatchID int64

// Geolocation is the device positioning capability. Watch callbacks are never invoked from
// inside WatchPosition or ClearWatch.
type Geolocation interface {
	CurrentPosition(ctx context.Context, opts geo.PositionOptions) (geo.RawPosition, error)
	WatchPosition(onSuccess func(geo.RawPosition), onError func(error), opts geo.PositionOptions) (WatchID, error)
	ClearWatch(id WatchID)
}

// LocationSink receives periodic location pushes for one trip.
type LocationSink interface {
	Push(ctx context.Context, sample geo.LocationSample) error
}

// DirectionsOptions configures a route query.
type DirectionsOptions struct {
	TravelMode    string // driving
	DepartureTime time.Time
	TrafficModel  string // best_guess
}

// DirectionsProvider computes routes between two points.
type DirectionsProvider interface {
	Directions(ctx context.Context, origin, destination geo.Point, opts DirectionsOptions) ([]trip.Route, error)
}

// ----- Messaging -----

// TripPublisher sends the tracking service's broker messages.
type TripPublisher interface {
	PublishTripEvent(ctx context.Context, msg contracts.TripEventMessage) error
	PublishTripStatus(ctx context.Context, msg contracts.TripStatusMessage) error
	PublishLocation(ctx context.Context, msg contracts.LocationUpdateMessage) error
}
