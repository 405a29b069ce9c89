package cadence

import (
	"strings"
	"time"
)

// Battery thresholds in percent.
const (
	lowBatteryPercent   = 20
	ampleBatteryPercent = 50
)

// Conditions describe the device environment. Nil pointers mean unknown.
type Conditions struct {
	BatteryLevel   *float64 `json:"battery_level,omitempty"` // percent, 0-100
	IsCharging     *bool    `json:"is_charging,omitempty"`
	NetworkType    string   `json:"network_type,omitempty"`
	BackgroundMode bool     `json:"background_mode"`
}

func (cond Conditions) charging() bool {
	return cond.IsCharging != nil && *cond.IsCharging
}

func (cond Conditions) lowBandwidth() bool {
	switch strings.ToLower(strings.TrimSpace(cond.NetworkType)) {
	case "slow-2g", "2g", "3g":
		return true
	default:
		return false
	}
}

// targetInterval picks a cadence for cond. Each constraint can only slow the cadence down
// further; the most conservative value wins.
func (s Settings) targetInterval(base time.Duration, cond Conditions) time.Duration {
	next := base
	switch {
	case cond.BatteryLevel != nil && *cond.BatteryLevel <= lowBatteryPercent && !cond.charging():
		next = s.SlowInterval
	case cond.charging() || (cond.BatteryLevel != nil && *cond.BatteryLevel >= ampleBatteryPercent):
		next = s.FastInterval
	}
	if cond.lowBandwidth() {
		next = max(next, s.SlowInterval)
	}
	if cond.BackgroundMode {
		next = max(next, s.SlowInterval)
	}
	return next
}

// OptimizeTracking recomputes the push interval for cond. When it changes, the push timer of
// an active session is restarted and Optimized is emitted. It returns the interval in effect.
func (c *Controller) OptimizeTracking(cond Conditions) time.Duration {
	c.mu.Lock()
	base := c.opts.UpdateInterval
	if base <= 0 {
		base = c.settings.DefaultInterval
	}
	next := c.settings.targetInterval(base, cond)
	prev := c.interval
	if next == prev || !c.tracking {
		if !c.tracking {
			c.interval = next
		}
		c.mu.Unlock()
		return next
	}

	c.interval = next
	if c.stopTimer != nil {
		c.stopTimer()
	}
	c.startTimerLocked(c.run)
	ev := Optimized{BookingID: c.opts.BookingID, Previous: prev, Interval: next, Conditions: cond}
	logCtx := c.base
	c.mu.Unlock()

	c.log.Info(logCtx, "tracking_optimized", "location cadence changed", map[string]any{
		"booking_id": ev.BookingID, "previous_ms": prev.Milliseconds(), "interval_ms": next.Milliseconds(),
	})
	c.emit(ev)
	return next
}
