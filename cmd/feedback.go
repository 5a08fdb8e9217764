// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	feedbackWatch    bool
	feedbackInterval time.Duration
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Query chassis feedback (wheel speeds, odometry, battery)",
	Long: `Ask the robot for its base feedback and print it.

With --watch the query repeats until Ctrl+C. Failed queries are reported and
do not stop the watch.`,
	Args: cobra.NoArgs,
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.Flags().BoolVarP(&feedbackWatch, "watch", "w", false, "Keep polling until Ctrl+C")
	feedbackCmd.Flags().DurationVar(&feedbackInterval, "interval", 0, "Poll interval with --watch (default from config)")
}

func formatFeedback(fb wire.Feedback) string {
	return fmt.Sprintf("L=%.2f R=%.2f odl=%dcm odr=%dcm battery=%.2fV",
		fb.Left, fb.Right, fb.OdometerLeft, fb.OdometerRight, fb.Volts())
}

func runFeedback(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptContext(cmd)
	defer cancel()

	if !feedbackWatch {
		fb, err := s.controller.Feedback(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatFeedback(fb))
		return nil
	}

	interval := feedbackInterval
	if interval <= 0 {
		interval = cfg.Feedback.Interval.Std()
	}

	fmt.Printf("Cobraflex - Feedback\n")
	fmt.Printf("Connection: %s\n", s.meter)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fb, err := s.controller.Feedback(ctx)
		now := time.Now().Format(eventTimeFormat)
		if err != nil {
			fmt.Printf("%s [ERROR] %v\n", now, err)
		} else {
			fmt.Printf("%s %s\n", now, formatFeedback(fb))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
