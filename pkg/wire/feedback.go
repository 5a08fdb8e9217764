// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "encoding/json"

// Feedback is the chassis state reported in reply to a feedback query.
type Feedback struct {
	Left          float64 // left side wheel speed
	Right         float64 // right side wheel speed
	OdometerLeft  int     // cm since chassis start
	OdometerRight int     // cm since chassis start
	Voltage       int     // battery voltage in centivolts
}

// Volts returns the battery voltage in volts.
func (f Feedback) Volts() float64 {
	return float64(f.Voltage) / 100.0
}

// ParseFeedback decodes a feedback reply. It returns false for empty or
// unrelated replies, which transports produce when the robot is unreachable.
//
// Older bridge firmware omits the T field and reports the wheel speeds as
// M1..M4; both shapes are accepted.
func ParseFeedback(data []byte) (Feedback, bool) {
	raw, err := decodeObject(data)
	if err != nil {
		return Feedback{}, false
	}

	code := CmdBaseFeedback
	if t, ok := raw["T"].(json.Number); ok {
		n, err := t.Int64()
		if err != nil || int(n) != CmdBaseFeedback {
			return Feedback{}, false
		}
	}
	return feedbackFromMessage(messageFromObject(code, raw))
}

func feedbackFromMessage(msg Message) (Feedback, bool) {
	v, hasVoltage := msg.Float("v")
	odl, hasOdl := msg.Int("odl")
	odr, hasOdr := msg.Int("odr")
	if !hasVoltage && !hasOdl && !hasOdr {
		return Feedback{}, false
	}

	fb := Feedback{
		OdometerLeft:  odl,
		OdometerRight: odr,
		Voltage:       int(v),
	}

	if l, ok := msg.Float("L"); ok {
		fb.Left = l
	} else if m1, ok := msg.Float("M1"); ok {
		fb.Left = m1
	}
	if r, ok := msg.Float("R"); ok {
		fb.Right = r
	} else if m2, ok := msg.Float("M2"); ok {
		fb.Right = m2
	}

	return fb, true
}
