// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport delivers encoded wire commands to the robot.
//
// Three links are supported: HTTP to the ESP32 controller board or to the
// Jetson bridge in front of it, newline framed JSON over a serial port, and
// text frames over a WebSocket bridge.
package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport closed")

	// ErrNoReply is returned when a command that expects a reply gets none.
	ErrNoReply = errors.New("no reply from robot")

	// ErrBackoff is returned while a failed link waits before reconnecting.
	ErrBackoff = errors.New("waiting to reconnect")
)

// Response is the raw JSON the robot returned for a command. It is empty for
// commands the robot does not answer.
type Response []byte

// Empty reports whether the response carries no data.
func (r Response) Empty() bool {
	return len(bytes.TrimSpace(r)) == 0
}

// Transport delivers one command and returns the robot's reply.
type Transport interface {
	Send(ctx context.Context, cmd wire.Command) (Response, error)
	Close() error
	String() string
}

// Reconnect backoff limits
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 30 * time.Second
)

// reconnectBackoff gates reconnect attempts of a stream link. After each
// failure the wait doubles, up to MaxBackoff.
type reconnectBackoff struct {
	clock clockwork.Clock

	mu      sync.Mutex
	delay   time.Duration
	retryAt time.Time
}

func newReconnectBackoff(clock clockwork.Clock) *reconnectBackoff {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &reconnectBackoff{clock: clock}
}

// wait returns how long until the next attempt is allowed.
func (b *reconnectBackoff) wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retryAt.IsZero() {
		return 0
	}
	if d := b.retryAt.Sub(b.clock.Now()); d > 0 {
		return d
	}
	return 0
}

func (b *reconnectBackoff) failed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.delay == 0 {
		b.delay = InitialBackoff
	} else {
		b.delay *= 2
		if b.delay > MaxBackoff {
			b.delay = MaxBackoff
		}
	}
	b.retryAt = b.clock.Now().Add(b.delay)
}

func (b *reconnectBackoff) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = 0
	b.retryAt = time.Time{}
}
