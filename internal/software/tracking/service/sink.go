package service

import (
	"context"
	"fmt"

	"ride-booking/internal/domain/geo"
	"ride-booking/internal/general/contracts"
)

// bookingSink archives each periodic push and fans it out to location subscribers.
type bookingSink struct {
	service   *trackingService
	bookingID string
	driverID  string
}

// Push implements ports.LocationSink.
func (sink *bookingSink) Push(ctx context.Context, sample geo.LocationSample) error {
	service := sink.service
	ctx = service.logger.WithBookingID(ctx, sink.bookingID)

	record, err := geo.NewLocationHistory(sink.bookingID, sink.driverID, sample)
	if err != nil {
		return fmt.Errorf("location history: %w", err)
	}
	if err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.historyRepo.Archive(txCtx, record)
	}); err != nil {
		return fmt.Errorf("archive location: %w", err)
	}

	msg := contracts.LocationUpdateMessage{
		BookingID:      sink.bookingID,
		DriverID:       sink.driverID,
		Location:       contracts.GeoPoint{Lat: sample.Coordinates.Lat, Lng: sample.Coordinates.Lng},
		AccuracyMeters: sample.Accuracy,
		SpeedKMH:       sample.Speed,
		HeadingDegrees: sample.Heading,
		Source:         string(sample.Source),
		Timestamp:      sample.Timestamp.UTC(),
		Envelope:       service.envelope(ctx),
	}
	if err := service.pub.PublishLocation(ctx, msg); err != nil {
		return fmt.Errorf("publish location: %w", err)
	}

	service.logger.Debug(ctx, "location_pushed", "Location archived and broadcast", map[string]any{
		"lat": sample.Coordinates.Lat,
		"lng": sample.Coordinates.Lng,
	})
	return nil
}
