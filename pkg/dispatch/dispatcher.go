// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dispatch runs at most one repeating task per control axis.
//
// Starting a task on an axis cancels whatever was running there and the new
// task does not fire until the old one has returned, so firings on one axis
// are strictly sequential. Axes are independent of each other.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Axis is an independently repeatable control channel.
type Axis int

// Axis values
const (
	AxisChassis Axis = iota
	AxisGimbal
)

func (a Axis) String() string {
	switch a {
	case AxisChassis:
		return "chassis"
	case AxisGimbal:
		return "gimbal"
	}
	return "unknown"
}

// Task is one firing of a repeating task. It returns the delay until the next
// firing; zero or a negative delay ends the task.
type Task func(ctx context.Context) time.Duration

// Handle refers to one started task.
type Handle struct {
	axis   Axis
	cancel context.CancelFunc
	done   chan struct{}
}

// Axis returns the axis the task runs on.
func (h *Handle) Axis() Axis {
	return h.axis
}

// Cancel stops the task after its current firing. It does not wait.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the task has stopped firing.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task has stopped or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher owns the active task of every axis.
type Dispatcher struct {
	clock clockwork.Clock

	mu     sync.Mutex
	active map[Axis]*Handle
}

// New creates a dispatcher using clock for all scheduling.
func New(clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		clock:  clock,
		active: make(map[Axis]*Handle),
	}
}

// Clock returns the dispatcher's clock.
func (d *Dispatcher) Clock() clockwork.Clock {
	return d.clock
}

// Start replaces the task on axis. The first firing happens as soon as the
// previous task on that axis has finished.
func (d *Dispatcher) Start(axis Axis, task Task) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		axis:   axis,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	d.mu.Lock()
	prev := d.active[axis]
	d.active[axis] = h
	d.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	go d.run(ctx, h, prev, task)
	return h
}

// Repeat runs action now and then every period until cancelled.
func (d *Dispatcher) Repeat(axis Axis, period time.Duration, action func(ctx context.Context)) *Handle {
	return d.Start(axis, func(ctx context.Context) time.Duration {
		action(ctx)
		return period
	})
}

// Once runs action a single time on axis, after any earlier task has finished.
func (d *Dispatcher) Once(axis Axis, action func(ctx context.Context)) *Handle {
	return d.Start(axis, func(ctx context.Context) time.Duration {
		action(ctx)
		return 0
	})
}

// Cancel stops the task on axis, if any.
func (d *Dispatcher) Cancel(axis Axis) {
	d.mu.Lock()
	h := d.active[axis]
	d.mu.Unlock()

	if h != nil {
		h.cancel()
	}
}

// Active reports whether a task is running on axis.
func (d *Dispatcher) Active(axis Axis) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[axis] != nil
}

// Current returns the handle of the task on axis, or nil.
func (d *Dispatcher) Current(axis Axis) *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[axis]
}

func (d *Dispatcher) run(ctx context.Context, h *Handle, prev *Handle, task Task) {
	defer d.release(h)

	if prev != nil {
		<-prev.done
	}

	// Fixed-rate: each firing is scheduled from the previous due time, not
	// from when the previous firing finished.
	next := d.clock.Now()
	for {
		if ctx.Err() != nil {
			return
		}

		delay := task(ctx)
		if delay <= 0 {
			return
		}

		next = next.Add(delay)
		now := d.clock.Now()
		wait := next.Sub(now)
		if wait <= 0 {
			next = now
			continue
		}

		timer := d.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (d *Dispatcher) release(h *Handle) {
	h.cancel()

	d.mu.Lock()
	if d.active[h.axis] == h {
		delete(d.active, h.axis)
	}
	d.mu.Unlock()

	close(h.done)
}
