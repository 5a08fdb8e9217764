// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var ledCmd = &cobra.Command{
	Use:   "led <chassis> <gimbal>",
	Short: "Set the chassis and gimbal lights",
	Long: `Set the brightness of the chassis light and the gimbal light.

Brightness runs from 0 (off) to 255. Values outside the range are clamped.
Both lights are always sent together.`,
	Args: cobra.ExactArgs(2),
	RunE: runLed,
}

func init() {
	rootCmd.AddCommand(ledCmd)
}

func runLed(cmd *cobra.Command, args []string) error {
	var levels [2]int
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid brightness %q", arg)
		}
		levels[i] = v
	}

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()
	printEvents(s.controller)

	ctx, cancel := interruptContext(cmd)
	defer cancel()
	return s.controller.SetLights(ctx, levels[0], levels[1])
}
