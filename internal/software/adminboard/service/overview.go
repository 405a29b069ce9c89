package service

import (
	"context"
	"strconv"
	"time"

	"ride-booking/internal/ports"
)

// Audit row labels written by the auth service.
const (
	auditSend    = "send"
	auditResend  = "resend"
	auditVerify  = "verify"
	auditSuccess = "success"
	auditFailure = "failure"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// GetSystemOverview collects a set of aggregate metrics about the current state of the system.
func (service *adminService) GetSystemOverview(ctx context.Context) (ports.SystemOverviewResult, error) {
	var res ports.SystemOverviewResult
	now := time.Now().UTC()
	res.Timestamp = now

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// ----- users -----
		byRole, err := service.userRepo.CountByRole(txCtx)
		if err != nil {
			return err
		}
		res.UsersByRole = make(map[string]int, len(byRole))
		for role, n := range byRole {
			res.UsersByRole[role.String()] = n
		}

		// ----- bookings -----
		byStatus, err := service.bookingRepo.CountByStatus(txCtx)
		if err != nil {
			return err
		}
		res.BookingsByStatus = make(map[string]int, len(byStatus))
		for status, n := range byStatus {
			res.BookingsByStatus[status.String()] = n
		}

		if res.Metrics.ActiveTrips, err = service.bookingRepo.CountActive(txCtx); err != nil {
			return err
		}
		if res.Metrics.BookingsToday, err = service.bookingRepo.CountCreatedBetween(txCtx, startOfDay, endOfDay); err != nil {
			return err
		}

		// ----- tracking -----
		if res.Metrics.LocationSamplesToday, err = service.historyRepo.CountRecordedBetween(txCtx, startOfDay, endOfDay); err != nil {
			return err
		}

		// ----- phone sign-in -----
		sent, err := service.auditRepo.CountBetween(txCtx, auditSend, auditSuccess, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		resent, err := service.auditRepo.CountBetween(txCtx, auditResend, auditSuccess, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.CodesSentToday = sent + resent

		if res.Metrics.CodesVerifiedToday, err = service.auditRepo.CountBetween(txCtx, auditVerify, auditSuccess, startOfDay, endOfDay); err != nil {
			return err
		}
		if res.Metrics.CodesFailedToday, err = service.auditRepo.CountBetween(txCtx, auditVerify, auditFailure, startOfDay, endOfDay); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return ports.SystemOverviewResult{}, err
	}

	res.Metrics.RecentTripEvents = service.recentCount()
	return res, nil
}

// GetActiveTrips returns a paginated list of bookings with a driver on the way or on board.
func (service *adminService) GetActiveTrips(ctx context.Context, page, pageSize string) (ports.ActiveTripsResult, error) {
	pageInt, err := strconv.Atoi(page)
	if err != nil || pageInt < 1 {
		pageInt = 1
	}
	sizeInt, err := strconv.Atoi(pageSize)
	if err != nil || sizeInt < 1 {
		sizeInt = defaultPageSize
	}
	if sizeInt > maxPageSize {
		sizeInt = maxPageSize
	}

	res := ports.ActiveTripsResult{Page: pageInt, PageSize: sizeInt, Trips: []ports.ActiveTripRow{}}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		total, err := service.bookingRepo.CountActive(txCtx)
		if err != nil {
			return err
		}
		res.TotalCount = total

		rows, err := service.bookingRepo.ListActive(txCtx, (pageInt-1)*sizeInt, sizeInt)
		if err != nil {
			return err
		}
		res.Trips = append(res.Trips, rows...)
		return nil
	})
	if err != nil {
		return ports.ActiveTripsResult{}, err
	}

	return res, nil
}
