// Package ticker drives passive income on the client. Every purchased level
// of an automation tier gets its own timer firing one click-unit per
// interval: autoclick every 2s, megaclick every 1s, superclick every 500ms.
// The fan-out is deliberate — income arrives as many small ticks rather than
// one aggregated batch, matching how each level was bought.
package ticker

import (
	"sync"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// Ticker owns the timer fan-out. Emit receives 1 for every timer fire and
// is expected to forward it to the store's ApplyPassiveTick.
type Ticker struct {
	emit func(n int)

	// lifecycle serializes Rebuild and Stop so a rebuild's wg.Add can
	// never interleave with another caller's pending wg.Wait.
	lifecycle sync.Mutex

	mu     sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
	timers []time.Duration
}

// New creates a ticker with no active timers.
func New(emit func(n int)) *Ticker {
	return &Ticker{emit: emit}
}

// Rebuild tears down all timers and recreates one per purchased level of
// each automation tier. Call it after upgrade levels change.
func (t *Ticker) Rebuild(levels map[string]int) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.teardown()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stop = make(chan struct{})
	t.timers = nil

	for _, key := range []string{domain.UpgradeAutoclick, domain.UpgradeMegaclick, domain.UpgradeSuperclick} {
		interval := domain.TierInterval(key)
		if interval <= 0 {
			continue
		}
		for i := 0; i < levels[key]; i++ {
			t.timers = append(t.timers, interval)
			t.wg.Add(1)
			go t.run(interval, t.stop)
		}
	}
}

func (t *Ticker) run(interval time.Duration, stop <-chan struct{}) {
	defer t.wg.Done()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			t.emit(1)
		}
	}
}

// Stop tears down all timers and waits for their goroutines to exit.
func (t *Ticker) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.teardown()
}

// teardown is the shared shutdown path. Callers hold lifecycle.
func (t *Ticker) teardown() {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.timers = nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		t.wg.Wait()
	}
}

// ActiveTimers reports the number of live timers: one per purchased level
// across all tiers.
func (t *Ticker) ActiveTimers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Rate reports the aggregate income rate in click-units per second across
// the live timers.
func (t *Ticker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var rate float64
	for _, interval := range t.timers {
		rate += 1 / interval.Seconds()
	}
	return rate
}

// ─── Energy Display ─────────────────────────────────────────────────────────

// EnergyDisplay is the cosmetic between-sync estimate of the energy bar.
// It ticks up one per second toward the cap; any authoritative value from
// the server supersedes the estimate via Set.
type EnergyDisplay struct {
	mu    sync.Mutex
	value int
	cap   int
}

// NewEnergyDisplay creates a display seeded with an authoritative value.
func NewEnergyDisplay(value, cap int) *EnergyDisplay {
	return &EnergyDisplay{value: value, cap: cap}
}

// Set installs an authoritative energy value and cap.
func (d *EnergyDisplay) Set(value, cap int) {
	d.mu.Lock()
	d.value, d.cap = value, cap
	d.mu.Unlock()
}

// Tick advances the estimate by one, clamped to the cap.
func (d *EnergyDisplay) Tick() {
	d.mu.Lock()
	if d.value < d.cap {
		d.value++
	}
	d.mu.Unlock()
}

// Value returns the current estimate.
func (d *EnergyDisplay) Value() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Run ticks the display once per second until stop is closed.
func (d *EnergyDisplay) Run(stop <-chan struct{}) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			d.Tick()
		}
	}
}
