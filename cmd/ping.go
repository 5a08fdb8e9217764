// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	pingTimeout time.Duration
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link to the robot with feedback queries",
	Long: `Send feedback queries to the robot and wait for each reply.

A query is the only command the robot answers, so a parsed reply proves that
commands reach the controller board and replies come back.

This is useful for verifying:
  - The robot host or port is reachable
  - HTTP Basic authentication works (WebSocket)
  - The controller board is processing commands

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "wait", 5*time.Second, "Timeout for each ping")
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Cobraflex - Ping Test\n")
	fmt.Printf("Connection: %s\n", s.meter)
	fmt.Printf("Timeout: %v per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	ctx, cancel := interruptContext(cmd)
	defer cancel()

	successCount := 0
	failCount := 0
	var totalRTT time.Duration

	for i := 1; i <= pingCount && ctx.Err() == nil; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// A query in flight is never cancelled, so the timeout is enforced here.
		type pingResult struct {
			fb  wire.Feedback
			err error
		}
		resultChan := make(chan pingResult, 1)
		startTime := time.Now()
		go func() {
			fb, err := s.controller.Feedback(ctx)
			resultChan <- pingResult{fb: fb, err: err}
		}()

		select {
		case res := <-resultChan:
			rtt := time.Since(startTime)
			if res.err != nil {
				fmt.Printf("FAILED: %v\n", res.err)
				failCount++
				break
			}
			fmt.Printf("reply battery=%.2fV, rtt=%v\n", res.fb.Volts(), rtt.Round(time.Millisecond))
			successCount++
			totalRTT += rtt

		case <-time.After(pingTimeout):
			fmt.Printf("TIMEOUT (no response in %v)\n", pingTimeout)
			failCount++

		case <-ctx.Done():
			fmt.Printf("INTERRUPTED\n")
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	sent := successCount + failCount

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	if sent > 0 {
		fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
			sent, successCount, float64(failCount)/float64(sent)*100)
	}
	if successCount > 0 {
		fmt.Printf("average rtt %v\n", (totalRTT / time.Duration(successCount)).Round(time.Millisecond))
	}

	s.Close()
	if failCount > 0 || sent < pingCount {
		os.Exit(1)
	}
	return nil
}
