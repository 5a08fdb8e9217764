// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/journal"
	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	replaySpeed float64
	replayDump  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <journal>",
	Short: "Replay or print a command journal",
	Long: `Re-send the commands recorded in a journal (see --journal) with their
original relative timing.

--speed scales playback: 2 plays twice as fast. --dump prints the journal
without connecting to the robot.

The robot is not stopped when the replay ends; a journal that ends while
driving leaves the chassis driving.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayDump, "dump", false, "Print the journal instead of replaying it")
}

func formatRecord(rec journal.Record) string {
	line := fmt.Sprintf("#%-5d %s %s", rec.Seq, rec.Time().Format(eventTimeFormat), wire.FormatCommand(wire.Command(rec.Command)))
	switch {
	case rec.Error != "":
		line += " FAILED: " + rec.Error
	case len(rec.Reply) > 0:
		if msg, err := wire.ParseMessage(rec.Reply); err == nil {
			line += " -> " + wire.FormatMessage(msg)
		}
	}
	return line
}

func runReplay(cmd *cobra.Command, args []string) error {
	records, err := journal.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("journal '%s' is empty", args[0])
	}

	if replayDump {
		session := ""
		for _, rec := range records {
			if rec.Session != session {
				session = rec.Session
				fmt.Printf("--- session %s ---\n", session)
			}
			fmt.Println(formatRecord(rec))
		}
		return nil
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

	span := records[len(records)-1].Time().Sub(records[0].Time())
	fmt.Printf("Cobraflex - Replay\n")
	fmt.Printf("Connection: %s\n", meter)
	fmt.Printf("Journal: %s (%d commands over %s, speed %.2gx)\n\n", args[0], len(records), formatElapsed(span), replaySpeed)

	ctx, cancel := interruptContext(cmd)
	defer cancel()

	err = journal.Replay(ctx, records, meter, journal.ReplayOptions{
		Speed: replaySpeed,
		Sent: func(rec journal.Record, _ transport.Response, err error) {
			status := "ok"
			if err != nil {
				status = "FAILED: " + err.Error()
			}
			fmt.Printf("%s #%d %s %s\n", time.Now().Format(eventTimeFormat), rec.Seq, wire.FormatCommand(wire.Command(rec.Command)), status)
		},
	})

	fmt.Printf("\n%s", meter.Summary())
	return err
}
