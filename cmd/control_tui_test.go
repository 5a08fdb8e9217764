// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/teleop"
	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
)

type fakeRobot struct {
	mu   sync.Mutex
	sent []wire.Command
}

func (f *fakeRobot) Send(_ context.Context, cmd wire.Command) (transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	if wire.ExpectsReply(cmd) {
		return transport.Response(`{"T":1001,"L":0.5,"R":0.5,"odl":12,"odr":13,"v":1180}`), nil
	}
	return nil, nil
}

func (f *fakeRobot) Close() error   { return nil }
func (f *fakeRobot) String() string { return "fake robot" }

func (f *fakeRobot) last() wire.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func newTestModel(t *testing.T) (*controlModel, *fakeRobot) {
	t.Helper()
	robot := &fakeRobot{}
	fc := clockwork.NewFakeClock()
	meter := transport.NewMeter(robot, fc, nil)
	c, err := teleop.New(teleop.Options{
		Codec:     wire.MustCodec(wire.DefaultPolicy()),
		Transport: meter,
		Clock:     fc,
	})
	if err != nil {
		t.Fatalf("teleop.New() error: %v", err)
	}
	return initialControlModel(c, meter, 10*time.Second), robot
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func countEntries(m *controlModel, message string) int {
	n := 0
	for _, e := range m.eventLog {
		if e.message == message {
			n++
		}
	}
	return n
}

func TestControlModel_HoldIgnoresKeyRepeat(t *testing.T) {
	m, robot := newTestModel(t)
	codec := m.controller.Codec()

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})

	if m.heldChassis != wire.North {
		t.Fatalf("held = %v, want NORTH", m.heldChassis)
	}
	if got := countEntries(m, "Hold NORTH"); got != 1 {
		t.Errorf("hold logged %d times, want 1", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if m.heldChassis != wire.Stop {
		t.Errorf("held after release = %v, want STOP", m.heldChassis)
	}

	stop := codec.EncodeDrive(wire.Stop, 0)
	waitFor(t, "stop command", func() bool { return robot.last() == stop })
}

func TestControlModel_DriveOnceAndGimbalStep(t *testing.T) {
	m, robot := newTestModel(t)
	codec := m.controller.Codec()

	m.Update(runeKey("l"))
	east := codec.EncodeDrive(wire.East, 600)
	waitFor(t, "east command", func() bool { return robot.last() == east })

	m.Update(runeKey("J"))
	up := codec.EncodeGimbalAbsolute(0, 2)
	waitFor(t, "gimbal step", func() bool { return robot.last() == up })
	if m.gimbalHeld {
		t.Error("a single step latched the gimbal")
	}
}

func TestControlModel_GimbalHoldAndRelease(t *testing.T) {
	m, robot := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyShiftLeft})
	if !m.gimbalHeld || m.heldGimbal != (gimbalDelta{pan: -1}) {
		t.Fatalf("gimbal hold = %v/%v", m.gimbalHeld, m.heldGimbal)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftLeft})
	if got := countEntries(m, "Hold gimbal PAN LEFT"); got != 1 {
		t.Errorf("gimbal hold logged %d times, want 1", got)
	}

	m.Update(runeKey("g"))
	if m.gimbalHeld {
		t.Error("gimbal still held after g")
	}
	waitFor(t, "gimbal stop", func() bool { return robot.last() == wire.EncodeGimbalStop() })
}

func TestControlModel_Speed(t *testing.T) {
	m, _ := newTestModel(t)

	tests := []struct {
		key  string
		want int
	}{
		{"1", 200},
		{"4", 900},
		{"+", 900},
		{"-", 850},
		{"2", 400},
		{"+", 450},
	}

	for _, tt := range tests {
		m.Update(runeKey(tt.key))
		if got := m.controller.SpeedLevel(); got != tt.want {
			t.Errorf("after %q speed = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestControlModel_Lights(t *testing.T) {
	m, robot := newTestModel(t)
	codec := m.controller.Codec()

	_, cmd := m.Update(runeKey("]"))
	if cmd == nil {
		t.Fatal("] returned no command")
	}
	m.Update(cmd())

	_, cmd = m.Update(runeKey("}"))
	m.Update(cmd())
	_, cmd = m.Update(runeKey("}"))
	m.Update(cmd())
	_, cmd = m.Update(runeKey("{"))
	m.Update(cmd())

	if got, want := robot.last(), codec.EncodeLed(32, 32); got != want {
		t.Errorf("last = %s, want %s", got, want)
	}

	_, cmd = m.Update(runeKey("["))
	m.Update(cmd())
	_, cmd = m.Update(runeKey("["))
	m.Update(cmd())
	if got, want := robot.last(), codec.EncodeLed(0, 32); got != want {
		t.Errorf("clamped = %s, want %s", got, want)
	}
}

func TestControlModel_Feedback(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(runeKey("f"))
	if cmd == nil {
		t.Fatal("f returned no command")
	}
	m.Update(cmd())

	if !m.hasFeedback {
		t.Fatal("feedback not stored")
	}
	if m.feedback.Volts() != 11.8 || m.feedback.OdometerRight != 13 {
		t.Errorf("feedback = %+v", m.feedback)
	}
	if !strings.Contains(m.View(), "11.80V") {
		t.Error("view does not show the battery voltage")
	}
}

func TestControlModel_LinkTransitions(t *testing.T) {
	m, _ := newTestModel(t)
	failed := teleop.Event{Source: teleop.SourceGimbal, Command: wire.EncodeGimbalStop(), Err: errors.New("timeout")}
	ok := teleop.Event{Source: teleop.SourceGimbal, Command: wire.EncodeGimbalStop()}

	m.Update(commandEventMsg(failed))
	m.Update(commandEventMsg(failed))
	m.Update(commandEventMsg(failed))
	if !m.linkDown {
		t.Fatal("link not marked down")
	}
	if len(m.eventLog) != 1 || !m.eventLog[0].isError {
		t.Fatalf("log = %+v, want one error", m.eventLog)
	}
	if !strings.Contains(m.View(), "LINK DOWN") {
		t.Error("view does not show the link state")
	}

	m.Update(commandEventMsg(ok))
	if m.linkDown {
		t.Error("link still down after a delivered command")
	}
	if got := countEntries(m, "Link restored"); got != 1 {
		t.Errorf("restored logged %d times", got)
	}
}

func TestControlModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(runeKey("q"))
	if !m.quitting {
		t.Error("q did not set quitting")
	}
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestControlModel_EventLogBounded(t *testing.T) {
	m, _ := newTestModel(t)
	for i := 0; i < maxLogEntries+25; i++ {
		m.addLogEntry("entry", false)
	}
	if len(m.eventLog) != maxLogEntries {
		t.Errorf("log length = %d, want %d", len(m.eventLog), maxLogEntries)
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		v, total int
		want     float64
	}{
		{0, 900, 0},
		{450, 900, 0.5},
		{1000, 900, 1},
		{-5, 900, 0},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := fraction(tt.v, tt.total); got != tt.want {
			t.Errorf("fraction(%d, %d) = %v, want %v", tt.v, tt.total, got, tt.want)
		}
	}
}
