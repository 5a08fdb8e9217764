// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	driveSpeed int
	driveHold  time.Duration
)

var driveCmd = &cobra.Command{
	Use:   "drive <direction>",
	Short: "Send a drive command to the chassis",
	Long: `Drive the chassis in one of eight compass directions, relative to the robot.

Directions: ` + directionList() + `
Short forms (n, ne, e, ...) are accepted.

Without --hold a single command is sent; the robot keeps moving until told
otherwise. With --hold the chassis ramps up to the speed, is refreshed until
the hold time passes or Ctrl+C is pressed, then ramps down and stops.

Examples:
  cobraflex drive north --speed 400
  cobraflex drive ne --hold 3s
  cobraflex drive stop`,
	Args: cobra.ExactArgs(1),
	RunE: runDrive,
}

func init() {
	rootCmd.AddCommand(driveCmd)
	driveCmd.Flags().IntVarP(&driveSpeed, "speed", "s", 0, "Speed (0 uses the configured speed level)")
	driveCmd.Flags().DurationVar(&driveHold, "hold", 0, "Hold the direction this long, then ramp down and stop")
}

func directionList() string {
	names := make([]string, len(wire.Directions))
	for i, d := range wire.Directions {
		names[i] = strings.ToLower(d.String())
	}
	return strings.Join(names, ", ")
}

func runDrive(cmd *cobra.Command, args []string) error {
	dir, err := wire.ParseDirection(args[0])
	if err != nil {
		return err
	}

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.controller
	if driveSpeed > 0 {
		c.SetSpeedLevel(driveSpeed)
	}
	printEvents(c)

	ctx, cancel := interruptContext(cmd)
	defer cancel()

	if driveHold <= 0 || dir == wire.Stop {
		return c.DriveOnce(dir).Wait(ctx)
	}

	fmt.Printf("Holding %s at %d for %v (Ctrl+C to release early)\n", dir, c.SpeedLevel(), driveHold)
	c.HoldChassis(dir)

	select {
	case <-ctx.Done():
	case <-time.After(driveHold):
	}

	// The ramp down must finish even after Ctrl+C.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer waitCancel()
	if err := c.ReleaseChassis().Wait(waitCtx); err != nil {
		return fmt.Errorf("chassis did not stop: %w", err)
	}
	return nil
}
