// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motion

import (
	"sync"

	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// LedState holds the chassis and gimbal light levels. The controller only
// accepts both in one command, so every change re-sends the pair.
type LedState struct {
	codec wire.Codec

	mu      sync.Mutex
	chassis int
	gimbal  int
}

// NewLedState creates a light state with both lights off.
func NewLedState(codec wire.Codec) *LedState {
	return &LedState{codec: codec}
}

// SetChassis sets the chassis light and returns the LED command for both lights.
func (l *LedState) SetChassis(brightness int) wire.Command {
	l.mu.Lock()
	l.chassis = wire.ClampBrightness(brightness)
	c, g := l.chassis, l.gimbal
	l.mu.Unlock()
	return l.codec.EncodeLed(c, g)
}

// SetGimbal sets the gimbal light and returns the LED command for both lights.
func (l *LedState) SetGimbal(brightness int) wire.Command {
	l.mu.Lock()
	l.gimbal = wire.ClampBrightness(brightness)
	c, g := l.chassis, l.gimbal
	l.mu.Unlock()
	return l.codec.EncodeLed(c, g)
}

// Set sets both lights at once.
func (l *LedState) Set(chassis, gimbal int) wire.Command {
	l.mu.Lock()
	l.chassis = wire.ClampBrightness(chassis)
	l.gimbal = wire.ClampBrightness(gimbal)
	c, g := l.chassis, l.gimbal
	l.mu.Unlock()
	return l.codec.EncodeLed(c, g)
}

// Adjust changes both lights by the given deltas in one update.
func (l *LedState) Adjust(dChassis, dGimbal int) wire.Command {
	l.mu.Lock()
	l.chassis = wire.ClampBrightness(l.chassis + dChassis)
	l.gimbal = wire.ClampBrightness(l.gimbal + dGimbal)
	c, g := l.chassis, l.gimbal
	l.mu.Unlock()
	return l.codec.EncodeLed(c, g)
}

// Levels returns the chassis and gimbal brightness.
func (l *LedState) Levels() (chassis, gimbal int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chassis, l.gimbal
}
