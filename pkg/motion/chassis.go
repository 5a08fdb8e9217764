// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motion

import (
	"sync"

	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// DefaultSpeedLevel is the configured speed on start-up.
const DefaultSpeedLevel = 600

// Phase is where sustained chassis motion currently is.
type Phase int

// Phase values
const (
	PhaseStopped Phase = iota
	PhaseRampingUp
	PhaseSteady
	PhaseRampingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "STOPPED"
	case PhaseRampingUp:
		return "RAMPING_UP"
	case PhaseSteady:
		return "STEADY"
	case PhaseRampingDown:
		return "RAMPING_DOWN"
	}
	return "UNKNOWN"
}

// SpeedPreset is a coarse speed tier offered by the UI.
type SpeedPreset int

// Speed presets
const (
	PresetLevelOne SpeedPreset = iota
	PresetLevelTwo
	PresetLevelThree
	PresetLevelFour
)

// Speed returns the speed level of the preset.
func (p SpeedPreset) Speed() int {
	switch p {
	case PresetLevelOne:
		return 200
	case PresetLevelTwo:
		return 400
	case PresetLevelThree:
		return 600
	case PresetLevelFour:
		return 900
	}
	return 0
}

// ChassisSnapshot is a consistent copy of ChassisState.
type ChassisSnapshot struct {
	SpeedLevel int
	Direction  wire.Direction
	LastSent   int
	Phase      Phase
}

// ChassisState owns the configured speed level and the direction last
// commanded. The level actually sent during a ramp is tracked separately so
// the configured level survives the ramp.
type ChassisState struct {
	maxSpeed int

	mu        sync.Mutex
	speed     int
	direction wire.Direction
	lastSent  int
	phase     Phase
}

// NewChassisState creates a stopped chassis with the given configured level.
func NewChassisState(maxSpeed, speedLevel int) *ChassisState {
	c := &ChassisState{maxSpeed: maxSpeed, direction: wire.Stop}
	c.SetSpeedLevel(speedLevel)
	return c
}

// SetSpeedLevel sets the configured level, clamped to [0, max].
func (c *ChassisState) SetSpeedLevel(level int) {
	c.mu.Lock()
	c.speed = c.clampLevel(level)
	c.mu.Unlock()
}

func (c *ChassisState) clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if c.maxSpeed > 0 && level > c.maxSpeed {
		return c.maxSpeed
	}
	return level
}

// SpeedLevel returns the configured level.
func (c *ChassisState) SpeedLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// AdjustSpeedLevel adds delta to the configured level and returns the result.
func (c *ChassisState) AdjustSpeedLevel(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = c.clampLevel(c.speed + delta)
	return c.speed
}

// SetDirection records the direction last commanded.
func (c *ChassisState) SetDirection(d wire.Direction) {
	c.mu.Lock()
	c.direction = d
	if d == wire.Stop {
		c.phase = PhaseStopped
		c.lastSent = 0
	}
	c.mu.Unlock()
}

// Direction returns the direction last commanded.
func (c *ChassisState) Direction() wire.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

// Moving reports whether the last commanded direction is not Stop.
func (c *ChassisState) Moving() bool {
	return c.Direction() != wire.Stop
}

// RecordSent stores the level of the drive command just sent.
func (c *ChassisState) RecordSent(level int) {
	c.mu.Lock()
	c.lastSent = level
	c.mu.Unlock()
}

// LastSent returns the level of the most recent drive command.
func (c *ChassisState) LastSent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSent
}

// SetPhase records the ramp phase.
func (c *ChassisState) SetPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of the state.
func (c *ChassisState) Snapshot() ChassisSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChassisSnapshot{
		SpeedLevel: c.speed,
		Direction:  c.direction,
		LastSent:   c.lastSent,
		Phase:      c.phase,
	}
}
