// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/teleop"
	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// eventTimeFormat is used for every printed or logged event.
const eventTimeFormat = "15:04:05.000"

// formatEvent renders one sent command, e.g.
// "[chassis] SPEED_CTRL M1=600 M2=600 M3=600 M4=600".
func formatEvent(ev teleop.Event) string {
	var s strings.Builder
	fmt.Fprintf(&s, "[%s] %s", ev.Source, wire.FormatCommand(ev.Command))
	if ev.Err != nil {
		fmt.Fprintf(&s, " FAILED: %v", ev.Err)
		return s.String()
	}
	if !ev.Response.Empty() {
		if msg, err := wire.ParseMessage(ev.Response); err == nil {
			fmt.Fprintf(&s, " -> %s", wire.FormatMessage(msg))
		}
	}
	return s.String()
}

// printEvents prints every command the controller sends.
func printEvents(c *teleop.Controller) {
	c.Observe(func(ev teleop.Event) {
		fmt.Printf("%s %s\n", ev.Time.Format(eventTimeFormat), formatEvent(ev))
	})
}

// formatElapsed renders a duration as 1h02m03s, dropping leading zero units.
func formatElapsed(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
