// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package motion holds the local state the client keeps about what it last
// told the robot: gimbal angles, chassis speed and direction, and light levels.
//
// The robot remains the source of truth. State here is updated before a
// command is sent and is never rolled back when a send fails.
package motion

import (
	"sync"

	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// GimbalStepDegrees is the angle moved by one gimbal step.
const GimbalStepDegrees = 2

// GimbalPosition is a pan/tilt pair in degrees.
type GimbalPosition struct {
	Pan  int
	Tilt int
}

// GimbalLimits bounds the reachable pan/tilt range.
type GimbalLimits struct {
	PanMin, PanMax   int
	TiltMin, TiltMax int
}

// DefaultGimbalLimits returns the mechanical range of the 2-axis pan-tilt module.
func DefaultGimbalLimits() GimbalLimits {
	return GimbalLimits{
		PanMin:  wire.PanMin,
		PanMax:  wire.PanMax,
		TiltMin: wire.TiltMin,
		TiltMax: wire.TiltMax,
	}
}

// GimbalState owns the current gimbal position.
type GimbalState struct {
	codec  wire.Codec
	limits GimbalLimits
	step   int

	mu  sync.Mutex
	pos GimbalPosition
}

// NewGimbalState creates a gimbal centred at (0, 0).
func NewGimbalState(codec wire.Codec, limits GimbalLimits) *GimbalState {
	return &GimbalState{
		codec:  codec,
		limits: limits,
		step:   GimbalStepDegrees,
	}
}

// Position returns the last commanded position.
func (g *GimbalState) Position() GimbalPosition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pos
}

// StepPan moves pan one step left (delta < 0) or right (delta > 0) and returns
// the absolute command for the resulting position.
func (g *GimbalState) StepPan(delta int) wire.Command {
	return g.Step(delta, 0)
}

// StepTilt moves tilt one step down (delta < 0) or up (delta > 0) and returns
// the absolute command for the resulting position.
func (g *GimbalState) StepTilt(delta int) wire.Command {
	return g.Step(0, delta)
}

// Step moves both axes by one step in the sign of each delta. An axis that
// would leave its range stays where it is.
func (g *GimbalState) Step(dPan, dTilt int) wire.Command {
	g.mu.Lock()
	g.pos.Pan = stepWithin(g.pos.Pan, sign(dPan)*g.step, g.limits.PanMin, g.limits.PanMax)
	g.pos.Tilt = stepWithin(g.pos.Tilt, sign(dTilt)*g.step, g.limits.TiltMin, g.limits.TiltMax)
	pos := g.pos
	g.mu.Unlock()

	return g.codec.EncodeGimbalAbsolute(pos.Pan, pos.Tilt)
}

// SetAbsolute moves directly to pan/tilt. Callers pass valid angles; no range
// check is applied here.
func (g *GimbalState) SetAbsolute(pan, tilt int) wire.Command {
	g.mu.Lock()
	g.pos = GimbalPosition{Pan: pan, Tilt: tilt}
	g.mu.Unlock()

	return g.codec.EncodeGimbalAbsolute(pan, tilt)
}

// stepWithin returns v+delta, or v unchanged if that leaves [lo, hi]. An
// angle already outside the range after an absolute move may still step back
// toward it.
func stepWithin(v, delta, lo, hi int) int {
	next := v + delta
	switch {
	case next >= lo && next <= hi:
		return next
	case v > hi && delta < 0, v < lo && delta > 0:
		return next
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
