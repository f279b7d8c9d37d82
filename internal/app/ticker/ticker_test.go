package ticker

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRebuild_TimerCountMatchesLevels(t *testing.T) {
	tk := New(func(int) {})
	defer tk.Stop()

	tk.Rebuild(map[string]int{"autoclick": 2, "megaclick": 1, "superclick": 3})
	if got := tk.ActiveTimers(); got != 6 {
		t.Errorf("active timers = %d, want 6", got)
	}

	tk.Rebuild(map[string]int{"autoclick": 1})
	if got := tk.ActiveTimers(); got != 1 {
		t.Errorf("after rebuild, active timers = %d, want 1", got)
	}
}

func TestRebuild_RateFollowsFormula(t *testing.T) {
	tk := New(func(int) {})
	defer tk.Stop()

	// 0.5/s per autoclick, 1/s per megaclick, 2/s per superclick.
	tests := []struct {
		a, m, s int
		want    float64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 0.5},
		{0, 1, 0, 1},
		{0, 0, 1, 2},
		{2, 1, 3, 8},
	}
	for _, tt := range tests {
		tk.Rebuild(map[string]int{"autoclick": tt.a, "megaclick": tt.m, "superclick": tt.s})
		if got := tk.Rate(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("rate(a=%d m=%d s=%d) = %v, want %v", tt.a, tt.m, tt.s, got, tt.want)
		}
	}
}

func TestRebuild_SameLevelsReproduceRate(t *testing.T) {
	tk := New(func(int) {})
	defer tk.Stop()

	levels := map[string]int{"autoclick": 3, "megaclick": 2, "superclick": 1}
	tk.Rebuild(levels)
	first := tk.Rate()
	tk.Rebuild(levels)
	if second := tk.Rate(); second != first {
		t.Errorf("rate changed across identical rebuilds: %v != %v", second, first)
	}
}

func TestStop_IsIdempotentAndHaltsEmits(t *testing.T) {
	var emits atomic.Int64
	tk := New(func(n int) { emits.Add(int64(n)) })

	tk.Rebuild(map[string]int{"superclick": 2})
	tk.Stop()
	tk.Stop() // second stop must not panic

	if got := tk.ActiveTimers(); got != 0 {
		t.Errorf("active timers after stop = %d, want 0", got)
	}

	settled := emits.Load()
	time.Sleep(600 * time.Millisecond)
	if emits.Load() != settled {
		t.Error("timers emitted after Stop")
	}
}

func TestRebuild_ConcurrentWithStop(t *testing.T) {
	tk := New(func(int) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if n%2 == 0 {
					tk.Rebuild(map[string]int{"autoclick": 2, "superclick": 1})
				} else {
					tk.Stop()
				}
			}
		}(i)
	}
	wg.Wait()

	tk.Stop()
	if got := tk.ActiveTimers(); got != 0 {
		t.Errorf("active timers after final stop = %d, want 0", got)
	}

	// The ticker must still work after the churn.
	tk.Rebuild(map[string]int{"megaclick": 3})
	defer tk.Stop()
	if got := tk.ActiveTimers(); got != 3 {
		t.Errorf("active timers = %d, want 3", got)
	}
}

func TestTimersEmit(t *testing.T) {
	var emits atomic.Int64
	tk := New(func(n int) { emits.Add(int64(n)) })
	defer tk.Stop()

	tk.Rebuild(map[string]int{"superclick": 1}) // fires every 500ms
	time.Sleep(1200 * time.Millisecond)
	if got := emits.Load(); got < 1 {
		t.Errorf("emits = %d, want at least 1", got)
	}
}

func TestEnergyDisplay(t *testing.T) {
	d := NewEnergyDisplay(98, 100)

	d.Tick()
	d.Tick()
	d.Tick() // clamped at cap
	if got := d.Value(); got != 100 {
		t.Errorf("value = %d, want 100", got)
	}

	// Authoritative value supersedes the estimate.
	d.Set(40, 125)
	if got := d.Value(); got != 40 {
		t.Errorf("value = %d, want 40", got)
	}
	d.Tick()
	if got := d.Value(); got != 41 {
		t.Errorf("value = %d, want 41", got)
	}
}
