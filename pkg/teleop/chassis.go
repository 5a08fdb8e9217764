// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package teleop

import (
	"context"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/dispatch"
	"github.com/Thermoquad/cobraflex/pkg/motion"
	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// HoldChassis starts sustained motion in dir: a ramp up to the configured
// speed, then a refresh at that speed every chassis period until released.
// Holding Stop is the same as StopChassis.
func (c *Controller) HoldChassis(dir wire.Direction) *dispatch.Handle {
	if dir == wire.Stop {
		return c.StopChassis()
	}
	return c.dispatcher.Start(dispatch.AxisChassis, c.holdTask(dir))
}

// ReleaseChassis ends sustained motion. A moving chassis ramps down from the
// last speed sent before the stop command; a stopped one just gets the stop
// command.
func (c *Controller) ReleaseChassis() *dispatch.Handle {
	return c.dispatcher.Start(dispatch.AxisChassis, c.releaseTask())
}

// DriveOnce sends a single drive command at the configured speed, replacing
// any sustained motion.
func (c *Controller) DriveOnce(dir wire.Direction) *dispatch.Handle {
	return c.dispatcher.Once(dispatch.AxisChassis, func(ctx context.Context) {
		level := c.chassis.SpeedLevel()
		if dir == wire.Stop {
			level = 0
		}
		c.chassis.SetDirection(dir)
		if dir != wire.Stop {
			c.chassis.SetPhase(motion.PhaseSteady)
		}
		c.drive(ctx, dir, level)
	})
}

// StopChassis cancels chassis motion and sends one stop command.
func (c *Controller) StopChassis() *dispatch.Handle {
	return c.dispatcher.Once(dispatch.AxisChassis, func(ctx context.Context) {
		c.chassis.SetDirection(wire.Stop)
		c.drive(ctx, wire.Stop, 0)
	})
}

func (c *Controller) drive(ctx context.Context, dir wire.Direction, level int) {
	c.chassis.RecordSent(level)
	c.send(ctx, SourceChassis, c.codec.EncodeDrive(dir, level))
}

// holdTask ramps up through the precomputed levels, then refreshes at the
// configured level.
func (c *Controller) holdTask(dir wire.Direction) dispatch.Task {
	var levels []int
	step := 0

	return func(ctx context.Context) time.Duration {
		if levels == nil {
			levels = c.ramp.Up(c.chassis.SpeedLevel())
			c.chassis.SetDirection(dir)
		}

		if step < len(levels) {
			level := levels[step]
			step++
			if step < len(levels) {
				c.chassis.SetPhase(motion.PhaseRampingUp)
				c.drive(ctx, dir, level)
				return c.ramp.UpInterval
			}
			c.chassis.SetPhase(motion.PhaseSteady)
			c.drive(ctx, dir, level)
			return c.chassisPeriod
		}

		c.drive(ctx, dir, c.chassis.SpeedLevel())
		return c.chassisPeriod
	}
}

// releaseTask reads the chassis state on its first firing, after the task it
// replaced has finished, so it ramps down from what was actually sent.
func (c *Controller) releaseTask() dispatch.Task {
	var (
		started bool
		dir     wire.Direction
		levels  []int
		step    int
	)

	return func(ctx context.Context) time.Duration {
		if !started {
			started = true
			snap := c.chassis.Snapshot()
			dir = snap.Direction
			if dir != wire.Stop {
				levels = c.ramp.Down(snap.LastSent)
				c.chassis.SetPhase(motion.PhaseRampingDown)
			}
		}

		if step < len(levels) {
			level := levels[step]
			step++
			c.drive(ctx, dir, level)
			return c.ramp.DownInterval
		}

		c.chassis.SetDirection(wire.Stop)
		c.drive(ctx, wire.Stop, 0)
		return 0
	}
}
