// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"encoding/json"
	"fmt"
)

// Command is an encoded wire command, ready to hand to a transport.
type Command string

// WheelCommand holds the four signed wheel speeds for one drive command.
type WheelCommand struct {
	FrontLeft  int
	FrontRight int
	RearLeft   int
	RearRight  int
}

// IsZero reports whether every wheel is stopped.
func (w WheelCommand) IsZero() bool {
	return w == WheelCommand{}
}

// Policy captures the conventions that differ between controller firmware
// revisions. The zero value is not usable; start from DefaultPolicy.
type Policy struct {
	MaxSpeed        int
	DiagonalDivisor int // inner wheels on a diagonal run at speed - speed/DiagonalDivisor
	WheelOrder      WheelOrder
	LEDPins         LEDPins
}

// DefaultPolicy returns the conventions of the current Cobra Flex firmware.
func DefaultPolicy() Policy {
	return Policy{
		MaxSpeed:        DefaultMaxSpeed,
		DiagonalDivisor: DefaultDiagonalDivisor,
		WheelOrder:      OrderFrontLeftFrontRightRearRightRearLeft,
		LEDPins:         PinsIO1IO2,
	}
}

// Validate checks that the policy can be used by a Codec.
func (p Policy) Validate() error {
	if p.MaxSpeed <= 0 {
		return fmt.Errorf("max speed must be positive, got %d", p.MaxSpeed)
	}
	if p.DiagonalDivisor != 2 && p.DiagonalDivisor != 3 {
		return fmt.Errorf("diagonal divisor must be 2 or 3, got %d", p.DiagonalDivisor)
	}
	switch p.WheelOrder {
	case OrderFrontLeftFrontRightRearRightRearLeft, OrderFrontLeftFrontRightRearLeftRearRight:
	default:
		return fmt.Errorf("unknown wheel order %d", p.WheelOrder)
	}
	switch p.LEDPins {
	case PinsIO1IO2, PinsIO4IO5:
	default:
		return fmt.Errorf("unknown LED pin mapping %d", p.LEDPins)
	}
	return nil
}

// Codec renders intents into wire commands. It holds no mutable state and is
// safe to copy and share.
type Codec struct {
	policy Policy
}

// NewCodec creates a Codec for the given policy.
func NewCodec(p Policy) (Codec, error) {
	if err := p.Validate(); err != nil {
		return Codec{}, err
	}
	return Codec{policy: p}, nil
}

// MustCodec is NewCodec for policies known to be valid. Panics otherwise.
func MustCodec(p Policy) Codec {
	c, err := NewCodec(p)
	if err != nil {
		panic(fmt.Sprintf("wire: %v", err))
	}
	return c
}

// Policy returns the codec's policy.
func (c Codec) Policy() Policy {
	return c.policy
}

// ClampSpeed limits a speed level to [0, MaxSpeed].
func (c Codec) ClampSpeed(speed int) int {
	return clamp(speed, 0, c.policy.MaxSpeed)
}

// Drive computes the wheel speeds for moving in direction at speed.
// Front and rear wheels on the same side always receive the same value.
func (c Codec) Drive(direction Direction, speed int) WheelCommand {
	s := c.ClampSpeed(speed)
	divisor := c.policy.DiagonalDivisor
	if divisor <= 0 {
		divisor = DefaultDiagonalDivisor
	}
	reduced := s - s/divisor

	var left, right int
	switch direction {
	case North:
		left, right = s, s
	case NorthEast:
		left, right = s, reduced
	case East:
		left, right = s, -s
	case SouthEast:
		left, right = -s, -reduced
	case South:
		left, right = -s, -s
	case SouthWest:
		left, right = -reduced, -s
	case West:
		left, right = -s, s
	case NorthWest:
		left, right = reduced, s
	}

	return WheelCommand{
		FrontLeft:  left,
		FrontRight: right,
		RearLeft:   left,
		RearRight:  right,
	}
}

type speedControl struct {
	T  int `json:"T"`
	M1 int `json:"M1"`
	M2 int `json:"M2"`
	M3 int `json:"M3"`
	M4 int `json:"M4"`
}

// EncodeDrive renders a drive command for direction at speed.
func (c Codec) EncodeDrive(direction Direction, speed int) Command {
	return c.EncodeWheels(c.Drive(direction, speed))
}

// EncodeWheels renders wheel speeds in the policy's wire order.
func (c Codec) EncodeWheels(w WheelCommand) Command {
	limit := c.policy.MaxSpeed
	cmd := speedControl{
		T:  CmdSpeedControl,
		M1: clamp(w.FrontLeft, -limit, limit),
		M2: clamp(w.FrontRight, -limit, limit),
	}
	switch c.policy.WheelOrder {
	case OrderFrontLeftFrontRightRearLeftRearRight:
		cmd.M3 = clamp(w.RearLeft, -limit, limit)
		cmd.M4 = clamp(w.RearRight, -limit, limit)
	default:
		cmd.M3 = clamp(w.RearRight, -limit, limit)
		cmd.M4 = clamp(w.RearLeft, -limit, limit)
	}
	return marshal(cmd)
}

type gimbalAbsolute struct {
	T   int `json:"T"`
	X   int `json:"X"`
	Y   int `json:"Y"`
	SPD int `json:"SPD"`
	ACC int `json:"ACC"`
}

// EncodeGimbalAbsolute renders an absolute pan/tilt move at the device's
// fastest speed and acceleration.
func (c Codec) EncodeGimbalAbsolute(pan, tilt int) Command {
	return marshal(gimbalAbsolute{
		T:   CmdGimbalAbsolute,
		X:   pan,
		Y:   tilt,
		SPD: gimbalFastest,
		ACC: gimbalFastest,
	})
}

type typeOnly struct {
	T int `json:"T"`
}

// EncodeGimbalStop renders the gimbal stop command.
func (c Codec) EncodeGimbalStop() Command {
	return EncodeGimbalStop()
}

// EncodeGimbalStop renders the gimbal stop command.
func EncodeGimbalStop() Command {
	return marshal(typeOnly{T: CmdGimbalStop})
}

// EncodeFeedbackQuery renders the base feedback query.
func EncodeFeedbackQuery() Command {
	return marshal(typeOnly{T: CmdFeedbackQuery})
}

type ledIO12 struct {
	T   int `json:"T"`
	IO1 int `json:"IO1"`
	IO2 int `json:"IO2"`
}

type ledIO45 struct {
	T   int `json:"T"`
	IO4 int `json:"IO4"`
	IO5 int `json:"IO5"`
}

// EncodeLed renders both light levels in one LED command. Each brightness is
// clamped to [0, 255] independently.
func (c Codec) EncodeLed(chassis, gimbal int) Command {
	chassis = ClampBrightness(chassis)
	gimbal = ClampBrightness(gimbal)
	if c.policy.LEDPins == PinsIO4IO5 {
		return marshal(ledIO45{T: CmdLedControl, IO4: chassis, IO5: gimbal})
	}
	return marshal(ledIO12{T: CmdLedControl, IO1: chassis, IO2: gimbal})
}

// ClampBrightness limits a light level to [0, 255].
func ClampBrightness(b int) int {
	return clamp(b, BrightnessMin, BrightnessMax)
}

// marshal encodes one of the fixed command structs. These contain only ints,
// so encoding cannot fail.
func marshal(v interface{}) Command {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("wire: encode error: %v", err))
	}
	return Command(data)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
