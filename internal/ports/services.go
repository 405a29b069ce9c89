package ports

import (
	"context"
	"time"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/domain/trip"
	"ride-booking/internal/domain/user"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role user.Role
}

// ----- DTOs for Auth Service -----

// SendCodeInput is the validated input for POST /auth/phone/send.
type SendCodeInput struct {
	SessionID      string
	PhoneNumber    string
	ChallengeToken string
}

// ResendCodeInput is the validated input for POST /auth/phone/resend.
type ResendCodeInput struct {
	SessionID      string
	ChallengeToken string
}

// VerifyCodeInput is the validated input for POST /auth/phone/verify.
type VerifyCodeInput struct {
	SessionID string
	Code      string
}

// SendCodeResult is returned after a code was handed to the provider.
type SendCodeResult struct {
	State       string `json:"state"`
	PhoneNumber string `json:"phone_number"` // masked
	Message     string `json:"message"`
}

// UserProfile is the public view of a user.
type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	IsNewUser bool        `json:"is_new_user"`
	User      UserProfile `json:"user"`
}

// RegisterInput is the validated input for POST /auth/register.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        user.Role
}

// LoginInput is the validated input for POST /auth/login.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput is the validated input for PUT /profile.
type UpdateProfileInput struct {
	UserID      string
	DisplayName string
	Email       string
}

// TokenResult is returned by POST /tokens.
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ----- Auth Service Interface -----

// AuthService exposes phone and email sign-in.
type AuthService interface {
	SendCode(ctx context.Context, in SendCodeInput) (SendCodeResult, error)
	ResendCode(ctx context.Context, in ResendCodeInput) (SendCodeResult, error)
	VerifyCode(ctx context.Context, in VerifyCodeInput) (AuthResult, error)
	CancelVerification(ctx context.Context, sessionID string) error
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
	Login(ctx context.Context, in LoginInput) (AuthResult, error)
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, in UpdateProfileInput) (UserProfile, error)
	IssueToken(ctx context.Context, userID string, role user.Role) (TokenResult, error)
	Close()
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for Tracking Service -----

// CreateBookingInput is the validated input for POST /bookings.
type CreateBookingInput struct {
	PassengerID string
	Pickup      trip.Place
	Destination trip.Place
	VehicleType trip.VehicleType
}

// BookingView is the API view of a booking.
type BookingView struct {
	ID                       string     `json:"booking_id"`
	BookingNumber            string     `json:"booking_number"`
	Status                   string     `json:"status"`
	PassengerID              string     `json:"passenger_id"`
	DriverID                 string     `json:"driver_id,omitempty"`
	VehicleType              string     `json:"vehicle_type"`
	Pickup                   trip.Place `json:"pickup"`
	Destination              trip.Place `json:"destination"`
	EstimatedFare            float64    `json:"estimated_fare"`
	EstimatedDistanceKM      float64    `json:"estimated_distance_km"`
	EstimatedDurationMinutes int        `json:"estimated_duration_minutes"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// UpdateStatusInput is the validated input for POST /bookings/{id}/status.
type UpdateStatusInput struct {
	Actor     Actor
	BookingID string
	Status    trip.Status
}

// StartTrackingInput is the validated input for POST /trips/{id}/tracking/start.
type StartTrackingInput struct {
	Actor            Actor
	BookingID        string
	UpdateInterval   time.Duration
	HighAccuracy     bool
	BatteryOptimized bool
}

// DeviceConditions are the device hints used to pick a tracking cadence.
type DeviceConditions struct {
	BatteryLevel   *float64 `json:"battery_level,omitempty"` // percent
	IsCharging     *bool    `json:"is_charging,omitempty"`
	NetworkType    string   `json:"network_type,omitempty"`
	BackgroundMode bool     `json:"background_mode"`
}

// OptimizeTrackingInput is the validated input for POST /trips/{id}/tracking/optimize.
type OptimizeTrackingInput struct {
	Actor      Actor
	BookingID  string
	Conditions DeviceConditions
}

// TrackingView is the live view of a trip plus the cadence state behind it.
type TrackingView struct {
	trip.Tracking
	IsTracking        bool              `json:"is_tracking"`
	AccuracyLevel     geo.AccuracyLevel `json:"accuracy_level,omitempty"`
	UpdateIntervalMs  int64             `json:"update_interval_ms"`
	BatteryOptimized  bool              `json:"battery_optimized"`
	ConsecutiveErrors int               `json:"consecutive_errors"`
	LastUpdate        *time.Time        `json:"last_update,omitempty"`
}

// ETAView is returned by GET /trips/{id}/eta.
type ETAView struct {
	BookingID string      `json:"booking_id"`
	ETA       trip.ETA    `json:"eta"`
	Route     *trip.Route `json:"route,omitempty"`
}

// ----- Tracking Service Interface -----

// TrackingService owns bookings and the live tracking sessions attached to them.
type TrackingService interface {
	CreateBooking(ctx context.Context, in CreateBookingInput) (BookingView, error)
	GetBooking(ctx context.Context, actor Actor, bookingID string) (BookingView, error)
	UpdateBookingStatus(ctx context.Context, in UpdateStatusInput) (BookingView, error)
	StartTracking(ctx context.Context, in StartTrackingInput) (TrackingView, error)
	StopTracking(ctx context.Context, actor Actor, bookingID string) (TrackingView, error)
	OptimizeTracking(ctx context.Context, in OptimizeTrackingInput) (TrackingView, error)
	GetTrip(ctx context.Context, actor Actor, bookingID string) (TrackingView, error)
	GetETA(ctx context.Context, actor Actor, bookingID string, speedKMH *float64) (ETAView, error)
	Shutdown()
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for Admin Dashboard -----

// OverviewMetrics groups all numeric KPIs for the overview.
type OverviewMetrics struct {
	ActiveTrips          int `json:"active_trips"`
	BookingsToday        int `json:"bookings_today"`
	LocationSamplesToday int `json:"location_samples_today"`
	CodesSentToday       int `json:"codes_sent_today"`
	CodesVerifiedToday   int `json:"codes_verified_today"`
	CodesFailedToday     int `json:"codes_failed_today"`
	RecentTripEvents     int `json:"recent_trip_events"`
}

// SystemOverviewResult is the top-level response DTO for GET /admin/overview endpoint.
type SystemOverviewResult struct {
	Timestamp        time.Time       `json:"timestamp"`
	Metrics          OverviewMetrics `json:"metrics"`
	UsersByRole      map[string]int  `json:"users_by_role"`
	BookingsByStatus map[string]int  `json:"bookings_by_status"`
}

// ActiveTripRow represents a single active booking row in the admin dashboard.
type ActiveTripRow struct {
	BookingID          string     `json:"booking_id"`
	BookingNumber      string     `json:"booking_number"`
	Status             string     `json:"status"`
	PassengerID        string     `json:"passenger_id"`
	DriverID           string     `json:"driver_id,omitempty"`
	PickupAddress      string     `json:"pickup_address"`
	DestinationAddress string     `json:"destination_address"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	LastLocation       *geo.Point `json:"last_location,omitempty"`
	LastLocationAt     *time.Time `json:"last_location_at,omitempty"`
}

// ActiveTripsResult is the top-level response DTO for GET /admin/trips/active endpoint.
type ActiveTripsResult struct {
	Trips      []ActiveTripRow `json:"trips"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// TripEventView is one trip event as consumed from the broker.
type TripEventView struct {
	BookingID  string         `json:"booking_id"`
	EventType  string         `json:"event_type"`
	Data       map[string]any `json:"data,omitempty"`
	Producer   string         `json:"producer,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	ReceivedAt time.Time      `json:"received_at"`
}

// HealthResult reports dependency health.
type HealthResult struct {
	Status    string            `json:"status"` // ok | degraded
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// ----- Admin Service Interface -----

// AdminService exposes monitoring and analytics operations for administrators.
type AdminService interface {
	GetSystemOverview(ctx context.Context) (SystemOverviewResult, error)
	GetActiveTrips(ctx context.Context, page, pageSize string) (ActiveTripsResult, error)
	RecentEvents(limit int) []TripEventView
	RunEventConsumer(ctx context.Context) error
	Health(ctx context.Context) HealthResult
}
