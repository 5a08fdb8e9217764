// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <json>",
	Short: "Send a raw JSON command",
	Long: `Send one raw JSON command to the robot and print the reply, if any.

The command must be a JSON object with a numeric T field. It is sent as given,
without clamping, and does not change the state tracked by other commands.

Example:
  cobraflex send '{"T":133,"X":45,"Y":10,"SPD":0,"ACC":0}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	command := wire.Command(strings.TrimSpace(args[0]))
	if _, err := wire.ParseCommand(command); err != nil {
		return fmt.Errorf("not a command: %w", err)
	}

	logger, logCloser, err := newLogger(true)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	meter, err := OpenTransport(logger)
	if err != nil {
		return err
	}
	defer meter.Close()

	ctx, cancel := interruptContext(cmd)
	defer cancel()

	fmt.Printf("-> %s\n", wire.FormatCommand(command))
	resp, err := meter.Send(ctx, command)
	if err != nil {
		return err
	}
	if resp.Empty() {
		return nil
	}

	if msg, err := wire.ParseMessage(resp); err == nil {
		fmt.Printf("<- %s\n", wire.FormatMessage(msg))
	} else {
		fmt.Printf("<- %s\n", strings.TrimSpace(string(resp)))
	}
	return nil
}
