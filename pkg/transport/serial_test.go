// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/jonboulle/clockwork"
	"go.bug.st/serial"
)

// fakePort answers reads from a canned buffer and advances a fake clock on
// every empty read, mimicking a read timeout.
type fakePort struct {
	clock *clockwork.FakeClock

	mu       sync.Mutex
	written  bytes.Buffer
	reply    []byte
	writeErr error
	closed   bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reply) == 0 {
		p.clock.Advance(100 * time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.reply)
	p.reply = p.reply[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (p *fakePort) ResetInputBuffer() error            { return nil }

func newFakeSerial(t *testing.T, port *fakePort, openErr error) (*SerialTransport, *int) {
	t.Helper()
	opens := 0
	tr := newSerialTransport(SerialOptions{Port: "/dev/ttyUSB0", Clock: port.clock},
		func(string, *serial.Mode) (serialPort, error) {
			opens++
			if openErr != nil {
				return nil, openErr
			}
			return port, nil
		})
	return tr, &opens
}

func TestSerialTransport_WritesLines(t *testing.T) {
	port := &fakePort{clock: clockwork.NewFakeClock()}
	tr, _ := newFakeSerial(t, port, nil)
	codec := wire.MustCodec(wire.DefaultPolicy())

	for _, cmd := range []wire.Command{codec.EncodeDrive(wire.South, 200), wire.EncodeGimbalStop()} {
		resp, err := tr.Send(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Send(%s) error: %v", cmd, err)
		}
		if !resp.Empty() {
			t.Errorf("Send(%s) response = %s, want empty", cmd, resp)
		}
	}

	want := `{"T":11,"M1":-200,"M2":-200,"M3":-200,"M4":-200}` + "\n" + `{"T":135}` + "\n"
	if got := port.written.String(); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSerialTransport_ReadsReply(t *testing.T) {
	port := &fakePort{
		clock: clockwork.NewFakeClock(),
		reply: []byte("boot noise\r\n{\"T\":1001,\"odl\":3,\"odr\":4,\"v\":1180}\r\n"),
	}
	tr, _ := newFakeSerial(t, port, nil)

	resp, err := tr.Send(context.Background(), wire.EncodeFeedbackQuery())
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if string(resp) != `{"T":1001,"odl":3,"odr":4,"v":1180}` {
		t.Errorf("response = %q", resp)
	}
}

func TestSerialTransport_NoReply(t *testing.T) {
	port := &fakePort{clock: clockwork.NewFakeClock()}
	tr, _ := newFakeSerial(t, port, nil)

	_, err := tr.Send(context.Background(), wire.EncodeFeedbackQuery())
	if !errors.Is(err, ErrNoReply) {
		t.Errorf("Send() error = %v, want ErrNoReply", err)
	}
}

// chattyPort prints a log line on every read and never answers.
type chattyPort struct {
	*fakePort
}

func (p chattyPort) Read(b []byte) (int, error) {
	p.clock.Advance(100 * time.Millisecond)
	return copy(b, "boot: wifi retry\n"), nil
}

func TestSerialTransport_ChatterTimesOut(t *testing.T) {
	port := chattyPort{&fakePort{clock: clockwork.NewFakeClock()}}
	tr := newSerialTransport(SerialOptions{Port: "/dev/ttyUSB0", Clock: port.clock},
		func(string, *serial.Mode) (serialPort, error) { return port, nil })

	done := make(chan error, 1)
	go func() {
		_, err := tr.Send(context.Background(), wire.EncodeFeedbackQuery())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrNoReply) {
			t.Fatalf("Send() error = %v, want ErrNoReply", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send() still waiting for a reply past the reply timeout")
	}

	codec := wire.MustCodec(wire.DefaultPolicy())
	stop := codec.EncodeDrive(wire.Stop, 0)
	if _, err := tr.Send(context.Background(), stop); err != nil {
		t.Fatalf("Send(stop) error: %v", err)
	}
	if !bytes.HasSuffix(port.written.Bytes(), []byte(string(stop)+"\n")) {
		t.Errorf("written = %q, want it to end with the stop command", port.written.String())
	}
}

func TestSerialTransport_ReopenBackoff(t *testing.T) {
	fc := clockwork.NewFakeClock()
	port := &fakePort{clock: fc, writeErr: errors.New("device unplugged")}
	tr, opens := newFakeSerial(t, port, nil)

	if _, err := tr.Send(context.Background(), wire.EncodeGimbalStop()); err == nil {
		t.Fatal("Send() with failing write succeeded")
	}
	if !port.closed {
		t.Error("failed port was not closed")
	}

	_, err := tr.Send(context.Background(), wire.EncodeGimbalStop())
	if !errors.Is(err, ErrBackoff) {
		t.Fatalf("Send() during backoff error = %v, want ErrBackoff", err)
	}
	if *opens != 1 {
		t.Errorf("opens = %d, want 1", *opens)
	}

	port.mu.Lock()
	port.writeErr = nil
	port.mu.Unlock()
	fc.Advance(InitialBackoff)

	if _, err := tr.Send(context.Background(), wire.EncodeGimbalStop()); err != nil {
		t.Fatalf("Send() after backoff error: %v", err)
	}
	if *opens != 2 {
		t.Errorf("opens = %d, want 2", *opens)
	}
}

func TestSerialTransport_Closed(t *testing.T) {
	port := &fakePort{clock: clockwork.NewFakeClock()}
	tr, _ := newFakeSerial(t, port, nil)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := tr.Send(context.Background(), wire.EncodeGimbalStop()); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
}

func TestReconnectBackoff(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := newReconnectBackoff(fc)

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		b.failed()
		if got := b.wait(); got != w*time.Second {
			t.Errorf("failure %d: wait = %v, want %v", i+1, got, w*time.Second)
		}
	}

	b.reset()
	if got := b.wait(); got != 0 {
		t.Errorf("wait after reset = %v, want 0", got)
	}
}
