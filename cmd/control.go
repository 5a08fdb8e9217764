// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/cobraflex/pkg/teleop"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving the robot",
	Long: `Drive the chassis and move the gimbal from the keyboard.

Keys:
  h j k l          one drive command West / North / South / East
  arrows, y u b n  hold a direction (NW NE SW SE for y u b n) until space
  space            release: ramp down and stop
  H J K L          one gimbal step (pan left / tilt up / tilt down / pan right)
  shift+arrows     keep stepping the gimbal until g
  g                stop the gimbal
  c                centre the gimbal
  1 2 3 4          speed presets
  + -              adjust speed
  [ ]  { }         chassis light / gimbal light down and up
  f                query feedback now
  esc              stop everything
  q, ctrl+c        stop everything, lights off, quit

Terminals report key presses but not releases, so held directions are latched
until released explicitly. Repeated presses of a held key are ignored.

Feedback is polled every feedback.interval (10s by default). Logs go to the
configured log file only, since the TUI owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	s.logger.Infof("control session started on %s", s.meter)

	m := initialControlModel(s.controller, s.meter, cfg.Feedback.Interval.Std())

	// Create TUI program with alt screen
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Send returns immediately once the program has exited, so late events
	// from the final stop commands are dropped.
	s.controller.Observe(func(ev teleop.Event) {
		p.Send(commandEventMsg(ev))
	})

	_, runErr := p.Run()
	if runErr != nil {
		runErr = fmt.Errorf("TUI error: %v", runErr)
	}

	s.logger.Infof("control session ending, stopping robot")
	return s.finish(runErr)
}
