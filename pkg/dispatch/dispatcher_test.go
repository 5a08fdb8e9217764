// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// firingLog records task firings in order.
type firingLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *firingLog) action(name string) func(context.Context) {
	return func(context.Context) {
		l.mu.Lock()
		l.entries = append(l.entries, name)
		l.mu.Unlock()
	}
}

func (l *firingLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("task on %s did not stop: %v", h.Axis(), err)
	}
}

func TestRepeat_GimbalHold150ms(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)
	log := &firingLog{}

	h := d.Repeat(AxisGimbal, 50*time.Millisecond, log.action("step"))

	fc.BlockUntil(1)
	fc.Advance(50 * time.Millisecond)
	fc.BlockUntil(1)
	fc.Advance(50 * time.Millisecond)
	fc.BlockUntil(1)
	fc.Advance(49 * time.Millisecond)

	d.Cancel(AxisGimbal)
	waitDone(t, h)

	if got := len(log.snapshot()); got != 3 {
		t.Errorf("firings = %d, want 3", got)
	}
	if d.Active(AxisGimbal) {
		t.Error("gimbal axis still active after cancel")
	}
}

func TestStart_ReplacesPreviousTask(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)
	log := &firingLog{}

	first := d.Repeat(AxisChassis, time.Second, log.action("old"))
	fc.BlockUntil(1)

	second := d.Repeat(AxisChassis, time.Second, log.action("new"))
	waitDone(t, first)

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	fc.BlockUntil(1)

	d.Cancel(AxisChassis)
	waitDone(t, second)

	want := []string{"old", "new", "new", "new"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("firings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("firings = %v, want %v", got, want)
		}
	}
}

func TestStart_WaitsForRunningFiring(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)
	log := &firingLog{}

	entered := make(chan struct{})
	unblock := make(chan struct{})
	first := d.Start(AxisChassis, func(ctx context.Context) time.Duration {
		close(entered)
		<-unblock
		log.action("old")(ctx)
		return time.Second
	})
	<-entered

	second := d.Once(AxisChassis, log.action("new"))

	select {
	case <-second.Done():
		t.Fatal("new task finished while the old firing was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(unblock)
	waitDone(t, first)
	waitDone(t, second)

	got := log.snapshot()
	if len(got) != 2 || got[0] != "old" || got[1] != "new" {
		t.Errorf("firings = %v, want [old new]", got)
	}
}

func TestStart_TaskDelays(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)

	delays := []time.Duration{20 * time.Millisecond, 20 * time.Millisecond, 5 * time.Millisecond, 0}
	var mu sync.Mutex
	var at []time.Time
	start := fc.Now()

	h := d.Start(AxisChassis, func(context.Context) time.Duration {
		mu.Lock()
		defer mu.Unlock()
		at = append(at, fc.Now())
		return delays[len(at)-1]
	})

	fc.BlockUntil(1)
	fc.Advance(20 * time.Millisecond)
	fc.BlockUntil(1)
	fc.Advance(20 * time.Millisecond)
	fc.BlockUntil(1)
	fc.Advance(5 * time.Millisecond)
	waitDone(t, h)

	want := []time.Duration{0, 20 * time.Millisecond, 40 * time.Millisecond, 45 * time.Millisecond}
	mu.Lock()
	defer mu.Unlock()
	if len(at) != len(want) {
		t.Fatalf("firings = %d, want %d", len(at), len(want))
	}
	for i, w := range want {
		if got := at[i].Sub(start); got != w {
			t.Errorf("firing %d at %v, want %v", i, got, w)
		}
	}
}

func TestCancel_Idle(t *testing.T) {
	d := New(clockwork.NewFakeClock())

	d.Cancel(AxisChassis)
	d.Cancel(AxisGimbal)

	if d.Active(AxisChassis) || d.Active(AxisGimbal) {
		t.Error("idle dispatcher reports an active axis")
	}
	if d.Current(AxisGimbal) != nil {
		t.Error("Current() on idle axis is not nil")
	}
}

func TestAxesIndependent(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)
	log := &firingLog{}

	chassis := d.Repeat(AxisChassis, time.Second, log.action("chassis"))
	gimbal := d.Repeat(AxisGimbal, time.Second, log.action("gimbal"))
	fc.BlockUntil(2)

	d.Cancel(AxisChassis)
	waitDone(t, chassis)

	if !d.Active(AxisGimbal) {
		t.Fatal("cancelling chassis stopped gimbal")
	}

	d.Cancel(AxisGimbal)
	waitDone(t, gimbal)
}

func TestOnce(t *testing.T) {
	d := New(clockwork.NewFakeClock())
	log := &firingLog{}

	h := d.Once(AxisGimbal, log.action("stop"))
	waitDone(t, h)

	if got := log.snapshot(); len(got) != 1 {
		t.Errorf("firings = %v, want one", got)
	}
	if d.Active(AxisGimbal) {
		t.Error("axis still active after single firing")
	}
}
