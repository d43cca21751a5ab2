// Package risk implements the in-memory portfolio risk guard: an exposure
// and drawdown check the Maker consults every round before reconciling its
// ladder. There is no persistence layer here by design — the guard's state
// (realized PnL, daily baseline, kill deadline) lives in memory only and is
// fed each round from AccountTracker and BookTracker data, so a restart
// always starts from the exchange's own truth rather than a stale snapshot.
package risk

import (
	"log/slog"
	"sync"
	"time"
)

// Config tunes the guard's limits.
type Config struct {
	MaxExposureQuote  float64
	MaxDailyLossQuote float64
	CooldownAfterKill time.Duration
}

// Guard tracks exposure and realized PnL across rounds and can trip a kill
// switch that the Maker honors by cancelling its ladder and skipping rounds
// for the cooldown window.
type Guard struct {
	cfg    Config
	logger *slog.Logger

	mu             sync.Mutex
	realizedPnL    float64
	dayStartPnL    float64
	dayStart       time.Time
	killUntil      time.Time
}

// New constructs a Guard.
func New(cfg Config, logger *slog.Logger) *Guard {
	return &Guard{cfg: cfg, logger: logger.With("component", "risk_guard"), dayStart: time.Now()}
}

// ReportRealizedPnL updates the guard's running realized PnL figure,
// computed by the caller from AccountTracker's own-fill VWAP deltas.
func (g *Guard) ReportRealizedPnL(total float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if time.Since(g.dayStart) > 24*time.Hour {
		g.dayStart = time.Now()
		g.dayStartPnL = total
	}
	g.realizedPnL = total

	dailyLoss := g.dayStartPnL - g.realizedPnL
	if dailyLoss > g.cfg.MaxDailyLossQuote {
		g.trip("daily loss limit exceeded", dailyLoss)
	}
}

// CheckExposure trips the kill switch if notional exceeds the configured
// ceiling.
func (g *Guard) CheckExposure(notionalQuote float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if notionalQuote > g.cfg.MaxExposureQuote {
		g.trip("exposure limit exceeded", notionalQuote)
	}
}

func (g *Guard) trip(reason string, value float64) {
	g.killUntil = time.Now().Add(g.cfg.CooldownAfterKill)
	g.logger.Error("risk guard tripped kill switch", "reason", reason, "value", value, "until", g.killUntil)
}

// Active reports whether the kill switch is currently engaged.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.killUntil)
}

// RemainingBudget returns the quote notional still available before the
// exposure ceiling is hit, floored at zero.
func (g *Guard) RemainingBudget(currentExposure float64) float64 {
	remaining := g.cfg.MaxExposureQuote - currentExposure
	if remaining < 0 {
		return 0
	}
	return remaining
}
