// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package teleop turns operator intents into wire commands.
//
// A Controller owns the motion state, the per-axis dispatcher and the
// transport. Chassis and gimbal intents run as tasks on their axis, so every
// state change and send on one axis happens in order on that axis's task.
// Lights and feedback queries are sent directly by the caller.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/dispatch"
	"github.com/Thermoquad/cobraflex/pkg/log"
	"github.com/Thermoquad/cobraflex/pkg/motion"
	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/jonboulle/clockwork"
)

// ErrNoFeedback is returned when the robot's reply to a feedback query could
// not be read as base feedback.
var ErrNoFeedback = errors.New("no feedback from robot")

// Default repeat periods
const (
	DefaultChassisPeriod = 1000 * time.Millisecond
	DefaultGimbalPeriod  = 50 * time.Millisecond
)

// Event sources
const (
	SourceChassis  = "chassis"
	SourceGimbal   = "gimbal"
	SourceLed      = "led"
	SourceFeedback = "feedback"
)

// Event reports one command sent by the controller.
type Event struct {
	Time     time.Time
	Source   string
	Command  wire.Command
	Response transport.Response
	Err      error
}

// Options configures New. Zero values take defaults.
type Options struct {
	Codec         wire.Codec
	Transport     transport.Transport
	Clock         clockwork.Clock
	Logger        log.Logger
	Ramp          *motion.SpeedRamp
	GimbalLimits  *motion.GimbalLimits
	SpeedLevel    int
	ChassisPeriod time.Duration
	GimbalPeriod  time.Duration
}

// State is a snapshot of everything the controller last told the robot.
type State struct {
	Chassis      motion.ChassisSnapshot
	Gimbal       motion.GimbalPosition
	ChassisLight int
	GimbalLight  int
	ChassisBusy  bool
	GimbalBusy   bool
}

// Controller translates intents into commands.
type Controller struct {
	codec     wire.Codec
	transport transport.Transport
	clock     clockwork.Clock
	logger    log.Logger

	ramp          motion.SpeedRamp
	chassisPeriod time.Duration
	gimbalPeriod  time.Duration

	chassis    *motion.ChassisState
	gimbal     *motion.GimbalState
	leds       *motion.LedState
	dispatcher *dispatch.Dispatcher

	obsMu     sync.RWMutex
	observers []func(Event)
}

// New creates a controller. The robot is assumed stopped, centred and dark.
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	codec := opts.Codec
	if codec.Policy().MaxSpeed == 0 {
		var err error
		codec, err = wire.NewCodec(wire.DefaultPolicy())
		if err != nil {
			return nil, err
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ramp := motion.DefaultSpeedRamp()
	if opts.Ramp != nil {
		ramp = *opts.Ramp
	}
	limits := motion.DefaultGimbalLimits()
	if opts.GimbalLimits != nil {
		limits = *opts.GimbalLimits
	}

	speed := opts.SpeedLevel
	if speed == 0 {
		speed = motion.DefaultSpeedLevel
	}

	c := &Controller{
		codec:         codec,
		transport:     opts.Transport,
		clock:         clock,
		logger:        log.OrDiscard(opts.Logger),
		ramp:          ramp,
		chassisPeriod: orDefault(opts.ChassisPeriod, DefaultChassisPeriod),
		gimbalPeriod:  orDefault(opts.GimbalPeriod, DefaultGimbalPeriod),
		chassis:       motion.NewChassisState(codec.Policy().MaxSpeed, speed),
		gimbal:        motion.NewGimbalState(codec, limits),
		leds:          motion.NewLedState(codec),
		dispatcher:    dispatch.New(clock),
	}
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Observe registers fn to be called after every send. fn runs on the sending
// goroutine and must not block.
func (c *Controller) Observe(fn func(Event)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
}

// State returns a snapshot of the local state.
func (c *Controller) State() State {
	chassisLight, gimbalLight := c.leds.Levels()
	return State{
		Chassis:      c.chassis.Snapshot(),
		Gimbal:       c.gimbal.Position(),
		ChassisLight: chassisLight,
		GimbalLight:  gimbalLight,
		ChassisBusy:  c.dispatcher.Active(dispatch.AxisChassis),
		GimbalBusy:   c.dispatcher.Active(dispatch.AxisGimbal),
	}
}

// Codec returns the codec commands are encoded with.
func (c *Controller) Codec() wire.Codec {
	return c.codec
}

// SpeedLevel returns the configured chassis speed.
func (c *Controller) SpeedLevel() int {
	return c.chassis.SpeedLevel()
}

// SetSpeedLevel sets the configured chassis speed, clamped to [0, max], and
// returns the stored value. Sustained motion picks it up at its next refresh.
func (c *Controller) SetSpeedLevel(level int) int {
	c.chassis.SetSpeedLevel(level)
	return c.chassis.SpeedLevel()
}

// AdjustSpeedLevel adds delta to the configured chassis speed.
func (c *Controller) AdjustSpeedLevel(delta int) int {
	return c.chassis.AdjustSpeedLevel(delta)
}

// SetSpeedPreset sets the configured chassis speed to a preset tier.
func (c *Controller) SetSpeedPreset(p motion.SpeedPreset) int {
	return c.SetSpeedLevel(p.Speed())
}

// send delivers cmd. A failed send is logged and yields an empty response;
// local state is never rolled back. A send already in flight is allowed to
// finish even if its task is superseded.
func (c *Controller) send(ctx context.Context, source string, cmd wire.Command) (transport.Response, error) {
	resp, err := c.transport.Send(context.WithoutCancel(ctx), cmd)
	if err != nil {
		c.logger.WithField("axis", source).Debugf("%s not delivered: %v", wire.FormatCommand(cmd), err)
		resp = nil
	}

	c.obsMu.RLock()
	observers := c.observers
	c.obsMu.RUnlock()

	ev := Event{Time: c.clock.Now(), Source: source, Command: cmd, Response: resp, Err: err}
	for _, fn := range observers {
		fn(ev)
	}
	return resp, err
}

// SetChassisLight sets the chassis light and sends both light levels.
func (c *Controller) SetChassisLight(ctx context.Context, brightness int) error {
	_, err := c.send(ctx, SourceLed, c.leds.SetChassis(brightness))
	return err
}

// SetGimbalLight sets the gimbal light and sends both light levels.
func (c *Controller) SetGimbalLight(ctx context.Context, brightness int) error {
	_, err := c.send(ctx, SourceLed, c.leds.SetGimbal(brightness))
	return err
}

// SetLights sets both lights.
func (c *Controller) SetLights(ctx context.Context, chassis, gimbal int) error {
	_, err := c.send(ctx, SourceLed, c.leds.Set(chassis, gimbal))
	return err
}

// AdjustLights changes both lights by the given deltas.
func (c *Controller) AdjustLights(ctx context.Context, dChassis, dGimbal int) error {
	_, err := c.send(ctx, SourceLed, c.leds.Adjust(dChassis, dGimbal))
	return err
}

// Feedback queries the robot's base feedback.
func (c *Controller) Feedback(ctx context.Context) (wire.Feedback, error) {
	resp, err := c.send(ctx, SourceFeedback, wire.EncodeFeedbackQuery())
	if err != nil {
		return wire.Feedback{}, err
	}
	fb, ok := wire.ParseFeedback(resp)
	if !ok {
		return wire.Feedback{}, ErrNoFeedback
	}
	return fb, nil
}

// StopAll stops the chassis and the gimbal.
func (c *Controller) StopAll() {
	c.StopChassis()
	c.ReleaseGimbal()
}

// Shutdown cancels both axes, waits for them to finish, then stops the
// chassis, stops the gimbal and turns the lights off.
func (c *Controller) Shutdown(ctx context.Context) error {
	var errs []error

	for _, axis := range []dispatch.Axis{dispatch.AxisChassis, dispatch.AxisGimbal} {
		h := c.dispatcher.Current(axis)
		if h == nil {
			continue
		}
		h.Cancel()
		if err := h.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s task did not stop: %w", axis, err))
		}
	}

	c.chassis.SetDirection(wire.Stop)
	if _, err := c.send(ctx, SourceChassis, c.codec.EncodeDrive(wire.Stop, 0)); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.send(ctx, SourceGimbal, c.codec.EncodeGimbalStop()); err != nil {
		errs = append(errs, err)
	}
	if err := c.SetLights(ctx, 0, 0); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
