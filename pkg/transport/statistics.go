// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// Statistics tracks command delivery and failure rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalCommands  uint64
	Delivered      uint64
	Failed         uint64
	EmptyReplies   uint64 // commands expecting a reply that got none
	BackoffSkipped uint64 // commands dropped while waiting to reconnect
	ByType         map[int]uint64

	LastError string

	// Rates (calculated)
	CommandRate float64 // commands/sec
	ErrorRate   float64 // failures/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByType:         make(map[int]uint64),
	}
}

// Update records the outcome of one Send
func (s *Statistics) Update(now time.Time, cmd wire.Command, resp Response, err error) {
	s.TotalCommands++
	s.ByType[cmd.Type()]++
	s.LastUpdateTime = now

	if err != nil {
		s.Failed++
		if errors.Is(err, ErrBackoff) {
			s.BackoffSkipped++
		}
		if errors.Is(err, ErrNoReply) {
			s.EmptyReplies++
		}
		s.LastError = err.Error()
		return
	}

	s.Delivered++
	if wire.ExpectsReply(cmd) && resp.Empty() {
		s.EmptyReplies++
	}
}

// CalculateRates calculates command and error rates
func (s *Statistics) CalculateRates(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CommandRate = float64(s.TotalCommands) / elapsed
		s.ErrorRate = float64(s.Failed) / elapsed
	}
}

// Clone returns a deep copy
func (s *Statistics) Clone() Statistics {
	c := *s
	c.ByType = make(map[int]uint64, len(s.ByType))
	for k, v := range s.ByType {
		c.ByType[k] = v
	}
	return c
}

// Summary returns a formatted statistics summary as of now
func (s *Statistics) Summary(now time.Time) string {
	s.CalculateRates(now)

	var deliveredPercent, failedPercent float64
	if s.TotalCommands > 0 {
		deliveredPercent = float64(s.Delivered) * 100.0 / float64(s.TotalCommands)
		failedPercent = float64(s.Failed) * 100.0 / float64(s.TotalCommands)
	}

	elapsed := now.Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Commands:  %8d\n", s.TotalCommands)
	result += fmt.Sprintf("Delivered:       %8d (%.1f%%)\n", s.Delivered, deliveredPercent)

	if s.Failed > 0 {
		result += fmt.Sprintf("Failed:          %8d (%.1f%%)\n", s.Failed, failedPercent)
		if s.BackoffSkipped > 0 {
			result += fmt.Sprintf("  Reconnecting:     %5d\n", s.BackoffSkipped)
		}
	}
	if s.EmptyReplies > 0 {
		result += fmt.Sprintf("Empty Replies:   %8d\n", s.EmptyReplies)
	}

	types := make([]int, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Ints(types)
	for _, t := range types {
		result += fmt.Sprintf("  %-15s %6d\n", wire.FormatMessageType(t)+":", s.ByType[t])
	}

	result += fmt.Sprintf("Command Rate:    %8.1f cmds/sec\n", s.CommandRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	if s.LastError != "" {
		result += fmt.Sprintf("Last Error:      %s\n", s.LastError)
	}
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset(now time.Time) {
	*s = *NewStatistics(now)
}
