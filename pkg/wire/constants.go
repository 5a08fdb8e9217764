// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wire renders operator intents into the JSON command set understood by
// the Cobra Flex controller board, and decodes those commands and the board's
// feedback back into Go values.
//
// Every command is a flat JSON object whose "T" field selects the command type.
// Encoding is deterministic: identical inputs always produce identical bytes.
package wire

// Command type codes (the "T" field)
const (
	CmdSpeedControl   = 11
	CmdFeedbackQuery  = 130
	CmdLedControl     = 132
	CmdGimbalAbsolute = 133
	CmdGimbalStop     = 135
	CmdBaseFeedback   = 1001
)

// Speed limits
const (
	DefaultMaxSpeed        = 900
	DefaultDiagonalDivisor = 3
)

// Gimbal limits in degrees
const (
	PanMin  = -180
	PanMax  = 180
	TiltMin = -30
	TiltMax = 90
)

// LED brightness limits
const (
	BrightnessMin = 0
	BrightnessMax = 255
)

// gimbalFastest is the device convention for "maximum speed and acceleration"
// in the SPD and ACC fields of an absolute gimbal command.
const gimbalFastest = 0

// WheelOrder selects how the four wheels map onto the M1..M4 wire fields.
type WheelOrder int

// Wheel order values
const (
	// OrderFrontLeftFrontRightRearRightRearLeft is M1=FL, M2=FR, M3=RR, M4=RL.
	OrderFrontLeftFrontRightRearRightRearLeft WheelOrder = iota
	// OrderFrontLeftFrontRightRearLeftRearRight is M1=FL, M2=FR, M3=RL, M4=RR.
	OrderFrontLeftFrontRightRearLeftRearRight
)

// LEDPins selects which IO fields of the LED command carry the two lights.
type LEDPins int

// LED pin mappings
const (
	// PinsIO1IO2 drives the chassis light on IO1 and the gimbal light on IO2.
	PinsIO1IO2 LEDPins = iota
	// PinsIO4IO5 drives the chassis light on IO4 and the pan-tilt light on IO5.
	PinsIO4IO5
)
