// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/jonboulle/clockwork"
	"go.bug.st/serial"
)

// DefaultBaudRate is the controller board's UART speed.
const DefaultBaudRate = 115200

// serialPort is the part of serial.Port the transport uses.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

type portOpener func(name string, mode *serial.Mode) (serialPort, error)

func openSerialPort(name string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(name, mode)
}

// SerialOptions configures NewSerialTransport.
type SerialOptions struct {
	Port         string
	BaudRate     int
	ReplyTimeout time.Duration // how long to wait for a reply line
	Clock        clockwork.Clock
}

// SerialTransport writes newline terminated JSON commands to the controller
// board's UART. The port is opened lazily and reopened after a failure.
type SerialTransport struct {
	name         string
	mode         *serial.Mode
	replyTimeout time.Duration
	clock        clockwork.Clock
	open         portOpener
	backoff      *reconnectBackoff

	mu     sync.Mutex
	port   serialPort
	closed bool
}

// NewSerialTransport opens the port once so configuration errors surface
// immediately.
func NewSerialTransport(opts SerialOptions) (*SerialTransport, error) {
	t := newSerialTransport(opts, openSerialPort)
	if _, err := t.ensureOpen(); err != nil {
		return nil, err
	}
	return t, nil
}

func newSerialTransport(opts SerialOptions, open portOpener) *SerialTransport {
	baud := opts.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	replyTimeout := opts.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = 2 * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &SerialTransport{
		name: opts.Port,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		replyTimeout: replyTimeout,
		clock:        clock,
		open:         open,
		backoff:      newReconnectBackoff(clock),
	}
}

// String describes the port.
func (t *SerialTransport) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", t.name, t.mode.BaudRate)
}

// Send writes cmd and, for commands the robot answers, reads one reply line.
func (t *SerialTransport) Send(ctx context.Context, cmd wire.Command) (Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	port, err := t.ensureOpen()
	if err != nil {
		return nil, err
	}

	expectsReply := wire.ExpectsReply(cmd)
	if expectsReply {
		// Drop unsolicited output so the next line is the reply.
		_ = port.ResetInputBuffer()
	}

	line := make([]byte, 0, len(cmd)+1)
	line = append(line, cmd...)
	line = append(line, '\n')
	if _, err := port.Write(line); err != nil {
		t.drop()
		return nil, fmt.Errorf("serial write failed: %w", err)
	}

	if !expectsReply {
		return nil, nil
	}
	return t.readReply(ctx, port)
}

// readReply returns the first JSON object line read before the reply timeout.
func (t *SerialTransport) readReply(ctx context.Context, port serialPort) (Response, error) {
	deadline := t.clock.Now().Add(t.replyTimeout)
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		t.drop()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	var pending []byte
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := port.Read(buf)
		if err != nil {
			t.drop()
			return nil, fmt.Errorf("serial read failed: %w", err)
		}
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			l := bytes.TrimSpace(pending[:i])
			pending = pending[i+1:]
			if len(l) > 0 && l[0] == '{' {
				return Response(append([]byte(nil), l...)), nil
			}
		}

		// Chatter that never forms a JSON line must not hold the port.
		if !t.clock.Now().Before(deadline) {
			return nil, ErrNoReply
		}
	}
}

// ensureOpen returns the open port, opening it if allowed by the backoff.
// Callers hold t.mu or own t exclusively.
func (t *SerialTransport) ensureOpen() (serialPort, error) {
	if t.port != nil {
		return t.port, nil
	}
	if wait := t.backoff.wait(); wait > 0 {
		return nil, fmt.Errorf("%w (%s)", ErrBackoff, wait.Round(time.Millisecond))
	}

	port, err := t.open(t.name, t.mode)
	if err != nil {
		t.backoff.failed()
		return nil, fmt.Errorf("failed to open serial port %s: %w", t.name, err)
	}
	t.backoff.reset()
	t.port = port
	return port, nil
}

// drop closes a failed port; the next Send reopens it.
func (t *SerialTransport) drop() {
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	t.backoff.failed()
}

// Close closes the port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
