// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"sync"

	"github.com/Thermoquad/cobraflex/pkg/log"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/jonboulle/clockwork"
)

// Meter wraps a Transport, counts every Send and logs failures.
type Meter struct {
	next   Transport
	clock  clockwork.Clock
	logger log.Logger

	mu    sync.Mutex
	stats *Statistics
}

// NewMeter wraps next. A nil clock uses the real clock.
func NewMeter(next Transport, clock clockwork.Clock, logger log.Logger) *Meter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Meter{
		next:   next,
		clock:  clock,
		logger: log.OrDiscard(logger).WithField("transport", next.String()),
		stats:  NewStatistics(clock.Now()),
	}
}

// Send forwards to the wrapped transport.
func (m *Meter) Send(ctx context.Context, cmd wire.Command) (Response, error) {
	resp, err := m.next.Send(ctx, cmd)

	m.mu.Lock()
	m.stats.Update(m.clock.Now(), cmd, resp, err)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warnf("send %s failed: %v", wire.FormatCommand(cmd), err)
	} else {
		m.logger.Debugf("sent %s", cmd)
		if !resp.Empty() {
			m.logger.Debugf("reply %s", resp)
		}
	}
	return resp, err
}

// Statistics returns a copy of the counters with rates calculated.
func (m *Meter) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.CalculateRates(m.clock.Now())
	return m.stats.Clone()
}

// Summary returns the formatted counters.
func (m *Meter) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.Summary(m.clock.Now())
}

// ResetStatistics clears the counters.
func (m *Meter) ResetStatistics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Reset(m.clock.Now())
}

// Close closes the wrapped transport.
func (m *Meter) Close() error {
	return m.next.Close()
}

// String describes the wrapped transport.
func (m *Meter) String() string {
	return m.next.String()
}
