// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/cobraflex/pkg/dispatch"
	"github.com/Thermoquad/cobraflex/pkg/teleop"
	"github.com/spf13/cobra"
)

var gimbalCmd = &cobra.Command{
	Use:   "gimbal",
	Short: "Move the pan/tilt gimbal",
	Long: `Move the pan/tilt gimbal.

Angles are in degrees. Pan runs from -180 to 180 and tilt from -30 to 90.
Absolute moves are sent as given; the gimbal firmware enforces its own range.`,
}

var gimbalMoveCmd = &cobra.Command{
	Use:   "move <pan> <tilt>",
	Short: "Move the gimbal to an absolute position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pan, tilt, err := parseAngles(args)
		if err != nil {
			return err
		}
		return runGimbal(cmd, func(c *teleop.Controller) *dispatch.Handle {
			return c.MoveGimbal(pan, tilt)
		})
	},
}

var gimbalCenterCmd = &cobra.Command{
	Use:   "center",
	Short: "Move the gimbal to pan 0, tilt 0",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGimbal(cmd, (*teleop.Controller).CenterGimbal)
	},
}

var gimbalStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop gimbal motion",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGimbal(cmd, (*teleop.Controller).ReleaseGimbal)
	},
}

func init() {
	rootCmd.AddCommand(gimbalCmd)
	gimbalCmd.AddCommand(gimbalMoveCmd, gimbalCenterCmd, gimbalStopCmd)
}

func parseAngles(args []string) (int, int, error) {
	pan, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pan angle %q", args[0])
	}
	tilt, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tilt angle %q", args[1])
	}
	return pan, tilt, nil
}

func runGimbal(cmd *cobra.Command, action func(*teleop.Controller) *dispatch.Handle) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()
	printEvents(s.controller)

	ctx, cancel := interruptContext(cmd)
	defer cancel()
	return action(s.controller).Wait(ctx)
}
