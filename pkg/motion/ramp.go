// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motion

import "time"

// SpeedRamp describes the soft start and soft stop of sustained chassis motion.
type SpeedRamp struct {
	UpFloor    int           // first level sent when starting
	UpStep     int           // increment per step while starting
	UpInterval time.Duration // delay between start steps

	DownFloor    int           // last level sent before the stop command
	DownStep     int           // decrement per step while stopping
	DownInterval time.Duration // delay between stop steps
}

// DefaultSpeedRamp returns +50 every 20ms from 100, and -200 every 5ms to 200.
func DefaultSpeedRamp() SpeedRamp {
	return SpeedRamp{
		UpFloor:      100,
		UpStep:       50,
		UpInterval:   20 * time.Millisecond,
		DownFloor:    200,
		DownStep:     200,
		DownInterval: 5 * time.Millisecond,
	}
}

// Up returns the levels to send when starting towards target. The sequence is
// non-decreasing and its last element is exactly target.
func (r SpeedRamp) Up(target int) []int {
	if target <= r.UpFloor || r.UpStep <= 0 {
		return []int{target}
	}

	levels := make([]int, 0, (target-r.UpFloor)/r.UpStep+2)
	for s := r.UpFloor; s < target; s += r.UpStep {
		levels = append(levels, s)
	}
	return append(levels, target)
}

// Down returns the levels to send when stopping from level, before the final
// stop command. The sequence is non-increasing and ends at DownFloor. It is
// empty when level is already at or below the floor.
func (r SpeedRamp) Down(from int) []int {
	if from <= r.DownFloor || r.DownStep <= 0 {
		return nil
	}

	levels := make([]int, 0, (from-r.DownFloor)/r.DownStep+1)
	for s := from - r.DownStep; s > r.DownFloor; s -= r.DownStep {
		levels = append(levels, s)
	}
	return append(levels, r.DownFloor)
}
