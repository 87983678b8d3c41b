package gateway

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/archmesh/core"
)

// DefaultMinInterval separates successive calls for the same role.
const DefaultMinInterval = 2 * time.Second

// RateGate enforces a minimum interval between successive calls per role.
// Calls are delayed, never dropped; roles never block each other.
type RateGate struct {
	interval time.Duration
	clock    core.Clock

	mu    sync.Mutex
	roles map[core.AgentRole]*roleGate
}

// roleGate serializes reservations of one role so that the timestamps the
// limiter sees never go backwards.
type roleGate struct {
	mu  sync.Mutex
	lim *rate.Limiter
}

// NewRateGate creates a gate. A non-positive interval disables gating.
func NewRateGate(interval time.Duration, clock core.Clock) *RateGate {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &RateGate{interval: interval, clock: clock, roles: make(map[core.AgentRole]*roleGate)}
}

func (g *RateGate) role(role core.AgentRole) *roleGate {
	g.mu.Lock()
	defer g.mu.Unlock()
	rg, ok := g.roles[role]
	if !ok {
		// Burst 1 turns the token bucket into a strict spacing gate.
		rg = &roleGate{lim: rate.NewLimiter(rate.Every(g.interval), 1)}
		g.roles[role] = rg
	}
	return rg
}

// reserve takes the next slot of role and returns the delay until it opens.
func (g *RateGate) reserve(role core.AgentRole) (*rate.Reservation, time.Time, time.Duration) {
	rg := g.role(role)
	rg.mu.Lock()
	defer rg.mu.Unlock()
	now := g.clock.Now()
	r := rg.lim.ReserveN(now, 1)
	return r, now, r.DelayFrom(now)
}

// Wait blocks until the role may issue its next call and returns the time
// spent waiting. On cancellation the reserved slot is released.
func (g *RateGate) Wait(ctx context.Context, role core.AgentRole) (time.Duration, error) {
	if g.interval <= 0 {
		return 0, ctx.Err()
	}
	r, _, delay := g.reserve(role)
	if delay <= 0 {
		return 0, nil
	}
	select {
	case <-g.clock.After(delay):
		return delay, nil
	case <-ctx.Done():
		r.CancelAt(g.clock.Now())
		return 0, ctx.Err()
	}
}
