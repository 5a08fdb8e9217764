// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"fmt"
	"strings"
)

// FormatMessageType returns a human-readable name for a T code.
func FormatMessageType(t int) string {
	switch t {
	case CmdSpeedControl:
		return "SPEED_CTRL"
	case CmdFeedbackQuery:
		return "FEEDBACK_QUERY"
	case CmdLedControl:
		return "LED_CTRL"
	case CmdGimbalAbsolute:
		return "GIMBAL_CTRL"
	case CmdGimbalStop:
		return "GIMBAL_STOP"
	case CmdBaseFeedback:
		return "BASE_FEEDBACK"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand renders a command on one line, e.g.
// "SPEED_CTRL FL=600 FR=600 RR=600 RL=600". Unparseable commands are quoted.
func FormatCommand(cmd Command) string {
	msg, err := ParseCommand(cmd)
	if err != nil {
		return fmt.Sprintf("INVALID %q", string(cmd))
	}
	return FormatMessage(msg)
}

// FormatMessage renders a decoded message on one line.
func FormatMessage(msg Message) string {
	var s strings.Builder
	s.WriteString(FormatMessageType(msg.Type))

	switch msg.Type {
	case CmdSpeedControl:
		m1, _ := msg.Int("M1")
		m2, _ := msg.Int("M2")
		m3, _ := msg.Int("M3")
		m4, _ := msg.Int("M4")
		fmt.Fprintf(&s, " M1=%d M2=%d M3=%d M4=%d", m1, m2, m3, m4)

	case CmdGimbalAbsolute:
		x, _ := msg.Int("X")
		y, _ := msg.Int("Y")
		fmt.Fprintf(&s, " pan=%d tilt=%d", x, y)

	case CmdBaseFeedback:
		if fb, ok := feedbackFromMessage(msg); ok {
			fmt.Fprintf(&s, " L=%.2f R=%.2f odl=%d odr=%d %.2fV", fb.Left, fb.Right, fb.OdometerLeft, fb.OdometerRight, fb.Volts())
		}

	default:
		for _, k := range msg.Keys() {
			fmt.Fprintf(&s, " %s=%s", k, msg.Fields[k])
		}
	}

	return s.String()
}
