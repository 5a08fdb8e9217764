// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"math"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	c := MustCodec(DefaultPolicy())

	msg, err := ParseCommand(c.EncodeDrive(East, 500))
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}
	if msg.Type != CmdSpeedControl {
		t.Errorf("Type = %d, want %d", msg.Type, CmdSpeedControl)
	}

	want := map[string]int{"M1": 500, "M2": -500, "M3": -500, "M4": 500}
	for k, v := range want {
		got, ok := msg.Int(k)
		if !ok {
			t.Errorf("missing field %s", k)
			continue
		}
		if got != v {
			t.Errorf("%s = %d, want %d", k, got, v)
		}
	}
}

func TestParseMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"not json", "T=11"},
		{"no type", `{"M1":1}`},
		{"string type", `{"T":"eleven"}`},
		{"fractional type", `{"T":1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.data)); err == nil {
				t.Errorf("ParseMessage(%q) succeeded, want error", tt.data)
			}
		})
	}
}

func TestExpectsReply(t *testing.T) {
	c := MustCodec(DefaultPolicy())

	if !ExpectsReply(EncodeFeedbackQuery()) {
		t.Error("feedback query should expect a reply")
	}
	for _, cmd := range []Command{c.EncodeDrive(North, 100), c.EncodeGimbalStop(), c.EncodeLed(1, 2), "garbage"} {
		if ExpectsReply(cmd) {
			t.Errorf("ExpectsReply(%s) = true, want false", cmd)
		}
	}
}

func TestFormatCommand(t *testing.T) {
	c := MustCodec(DefaultPolicy())

	tests := []struct {
		cmd  Command
		want string
	}{
		{c.EncodeDrive(North, 200), "SPEED_CTRL M1=200 M2=200 M3=200 M4=200"},
		{c.EncodeGimbalAbsolute(4, -2), "GIMBAL_CTRL pan=4 tilt=-2"},
		{c.EncodeGimbalStop(), "GIMBAL_STOP"},
		{c.EncodeLed(7, 9), "LED_CTRL IO1=7 IO2=9"},
		{EncodeFeedbackQuery(), "FEEDBACK_QUERY"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatCommand(tt.cmd); got != tt.want {
				t.Errorf("FormatCommand() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := FormatCommand("nope"); !strings.HasPrefix(got, "INVALID") {
		t.Errorf("FormatCommand(invalid) = %q, want INVALID prefix", got)
	}
}

func TestParseFeedback(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		ok    bool
		want  Feedback
		wantV float64
	}{
		{
			name:  "base feedback",
			data:  `{"T":1001,"L":0.5,"R":-0.25,"odl":120,"odr":118,"v":1215}`,
			ok:    true,
			want:  Feedback{Left: 0.5, Right: -0.25, OdometerLeft: 120, OdometerRight: 118, Voltage: 1215},
			wantV: 12.15,
		},
		{
			name:  "bridge feedback without type",
			data:  `{"M1":300,"M2":300,"M3":300,"M4":300,"odl":5,"odr":6,"v":1190}`,
			ok:    true,
			want:  Feedback{Left: 300, Right: 300, OdometerLeft: 5, OdometerRight: 6, Voltage: 1190},
			wantV: 11.90,
		},
		{name: "empty object", data: `{}`, ok: false},
		{name: "empty reply", data: ``, ok: false},
		{name: "other type", data: `{"T":133,"X":1,"Y":2}`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFeedback([]byte(tt.data))
			if ok != tt.ok {
				t.Fatalf("ParseFeedback() ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if got != tt.want {
				t.Errorf("ParseFeedback() = %+v, want %+v", got, tt.want)
			}
			if math.Abs(got.Volts()-tt.wantV) > 0.0001 {
				t.Errorf("Volts() = %.4f, want %.4f", got.Volts(), tt.wantV)
			}
		})
	}
}
