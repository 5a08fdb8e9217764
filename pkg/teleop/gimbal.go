// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package teleop

import (
	"context"

	"github.com/Thermoquad/cobraflex/pkg/dispatch"
)

// StepGimbal moves the gimbal one step. dPan and dTilt select the direction
// by sign.
func (c *Controller) StepGimbal(dPan, dTilt int) *dispatch.Handle {
	return c.dispatcher.Once(dispatch.AxisGimbal, func(ctx context.Context) {
		c.send(ctx, SourceGimbal, c.gimbal.Step(dPan, dTilt))
	})
}

// HoldGimbal steps the gimbal every gimbal period until released.
func (c *Controller) HoldGimbal(dPan, dTilt int) *dispatch.Handle {
	return c.dispatcher.Repeat(dispatch.AxisGimbal, c.gimbalPeriod, func(ctx context.Context) {
		c.send(ctx, SourceGimbal, c.gimbal.Step(dPan, dTilt))
	})
}

// ReleaseGimbal ends gimbal motion and sends the gimbal stop command.
func (c *Controller) ReleaseGimbal() *dispatch.Handle {
	return c.dispatcher.Once(dispatch.AxisGimbal, func(ctx context.Context) {
		c.send(ctx, SourceGimbal, c.codec.EncodeGimbalStop())
	})
}

// MoveGimbal moves the gimbal to an absolute position. The angles are sent as
// given.
func (c *Controller) MoveGimbal(pan, tilt int) *dispatch.Handle {
	return c.dispatcher.Once(dispatch.AxisGimbal, func(ctx context.Context) {
		c.send(ctx, SourceGimbal, c.gimbal.SetAbsolute(pan, tilt))
	})
}

// CenterGimbal moves the gimbal to (0, 0).
func (c *Controller) CenterGimbal() *dispatch.Handle {
	return c.MoveGimbal(0, 0)
}
