package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ride-booking/internal/ports"

	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

var errBrokerDisconnected = errors.New("not connected")

// Health pings the database and reads the broker connection state concurrently.
func (service *adminService) Health(ctx context.Context) ports.HealthResult {
	res := ports.HealthResult{Status: "ok", Checks: make(map[string]string, 2)}

	var mu sync.Mutex
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			return
		}
		res.Checks[name] = "ok"
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	// checks never fail the group; each outcome is recorded separately
	var g errgroup.Group
	g.Go(func() error {
		set("postgres", service.db.Ping(checkCtx))
		return nil
	})
	g.Go(func() error {
		if service.broker.Connected() {
			set("rabbitmq", nil)
		} else {
			set("rabbitmq", errBrokerDisconnected)
		}
		return nil
	})
	_ = g.Wait()

	res.CheckedAt = time.Now().UTC()
	if res.Status != "ok" {
		service.logger.Warn(ctx, "health_degraded", "Dependency check failed", map[string]any{"checks": res.Checks})
	}
	return res
}
