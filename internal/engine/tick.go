// Package engine runs the civil violence model: the simulation state, the
// random-activation scheduler, agent behaviors, the recorder and a paced
// tick loop for live observation.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation forward in real time.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // Base tick interval (0 = as fast as possible)

	// Callbacks, invoked outside the lock after the tick completes.
	OnTick   func(rec TickRecord) // Every tick
	OnReport func(rec TickRecord) // Every ReportEvery ticks
	OnDone   func(rec TickRecord) // Once, when the simulation stops running

	ReportEvery uint64

	mu      sync.RWMutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	stopped bool
}

// NewEngine wraps sim with default pacing.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:         sim,
		Interval:    0,
		ReportEvery: 50,
		speed:       1.0,
	}
}

// Run ticks until the simulation finishes, Stop is called or ctx is
// cancelled. A tick in progress always completes.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "tick", e.Sim.CurrentTick(), "interval", e.Interval)
	defer func() {
		slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick())
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.mu.RLock()
		speed, stopped, running := e.speed, e.stopped, e.Sim.Running
		e.mu.RUnlock()
		if stopped || !running {
			return nil
		}
		if speed <= 0 {
			// Paused; check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		start := time.Now()
		rec, done := e.step()

		if e.OnTick != nil {
			e.OnTick(rec)
		}
		if e.ReportEvery > 0 && rec.Tick%e.ReportEvery == 0 {
			slog.Info("tick", "tick", rec.Tick, "active", rec.Active, "jailed", rec.Jailed, "quiescent", rec.Quiescent)
			if e.OnReport != nil {
				e.OnReport(rec)
			}
		}
		if done {
			if e.OnDone != nil {
				e.OnDone(rec)
			}
			return nil
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target && !sleep(ctx, target-elapsed) {
			return ctx.Err()
		}
	}
}

// step advances the simulation by one tick under the write lock.
func (e *Engine) step() (TickRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Sim.Step()
	rec, _ := e.Sim.Recorder.Latest()
	return rec, !e.Sim.Running
}

// Stop halts the loop before the next tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

// SetSpeed changes the pace multiplier; 0 pauses.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Speed returns the current pace multiplier.
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// View runs fn with the simulation between ticks. fn must not mutate it.
func (e *Engine) View(fn func(s *Simulation)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.Sim)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
