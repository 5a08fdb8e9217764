// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package journal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/jonboulle/clockwork"
)

type stubTransport struct {
	mu   sync.Mutex
	sent []wire.Command
	fail bool
}

func (s *stubTransport) Send(_ context.Context, cmd wire.Command) (transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	if s.fail {
		return nil, errors.New("robot unreachable")
	}
	if wire.ExpectsReply(cmd) {
		return transport.Response(`{"T":1001,"v":1200}`), nil
	}
	return nil, nil
}

func (s *stubTransport) Close() error   { return nil }
func (s *stubTransport) String() string { return "stub" }

func (s *stubTransport) commands() []wire.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Command(nil), s.sent...)
}

func TestRecorderRoundTrip(t *testing.T) {
	fc := clockwork.NewFakeClock()
	next := &stubTransport{}
	var buf bytes.Buffer
	r := NewRecorder(next, &buf, fc)
	ctx := context.Background()
	codec := wire.MustCodec(wire.DefaultPolicy())

	r.Send(ctx, codec.EncodeDrive(wire.North, 300))
	fc.Advance(250 * time.Millisecond)
	r.Send(ctx, wire.EncodeFeedbackQuery())
	next.fail = true
	fc.Advance(time.Second)
	r.Send(ctx, wire.EncodeGimbalStop())

	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	records, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	for i, rec := range records {
		if rec.Session != r.Session() {
			t.Errorf("record %d session = %q, want %q", i, rec.Session, r.Session())
		}
		if rec.Seq != uint64(i+1) {
			t.Errorf("record %d seq = %d", i, rec.Seq)
		}
	}
	if got := records[1].Time().Sub(records[0].Time()); got != 250*time.Millisecond {
		t.Errorf("gap = %v, want 250ms", got)
	}
	if string(records[1].Reply) != `{"T":1001,"v":1200}` {
		t.Errorf("reply = %q", records[1].Reply)
	}
	if records[2].Error != "robot unreachable" {
		t.Errorf("error = %q", records[2].Error)
	}
	if records[0].Command != string(codec.EncodeDrive(wire.North, 300)) {
		t.Errorf("command = %s", records[0].Command)
	}
}

func TestCreateAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	r, err := Create(path, &stubTransport{}, clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	r.Send(context.Background(), wire.EncodeGimbalStop())
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	records, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(records) != 1 || records[0].Command != `{"T":135}` {
		t.Errorf("records = %+v", records)
	}
}

func TestReadAll_Corrupt(t *testing.T) {
	if _, err := ReadAll(bytes.NewReader([]byte{0xff, 0x00, 0x13})); err == nil {
		t.Error("ReadAll() of garbage succeeded")
	}
}

func TestReplay(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := []Record{
		{Seq: 1, UnixNano: base.UnixNano(), Command: `{"T":11,"M1":100,"M2":100,"M3":100,"M4":100}`},
		{Seq: 2, UnixNano: base.Add(100 * time.Millisecond).UnixNano(), Command: `{"T":11,"M1":150,"M2":150,"M3":150,"M4":150}`},
		{Seq: 3, UnixNano: base.Add(300 * time.Millisecond).UnixNano(), Command: `{"T":11,"M1":0,"M2":0,"M3":0,"M4":0}`},
	}

	fc := clockwork.NewFakeClock()
	target := &stubTransport{}
	var sentSeqs []uint64

	done := make(chan error, 1)
	go func() {
		done <- Replay(context.Background(), records, target, ReplayOptions{
			Clock: fc,
			Speed: 2,
			Sent: func(rec Record, _ transport.Response, _ error) {
				sentSeqs = append(sentSeqs, rec.Seq)
			},
		})
	}()

	fc.BlockUntil(1)
	if got := len(target.commands()); got != 1 {
		t.Fatalf("sent before first gap = %d, want 1", got)
	}
	fc.Advance(50 * time.Millisecond)
	fc.BlockUntil(1)
	fc.Advance(100 * time.Millisecond)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Replay() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Replay() did not finish")
	}

	got := target.commands()
	if len(got) != 3 {
		t.Fatalf("sent = %d, want 3", len(got))
	}
	for i, rec := range records {
		if string(got[i]) != rec.Command || sentSeqs[i] != rec.Seq {
			t.Errorf("command %d = %s", i, got[i])
		}
	}
}

func TestReplay_Cancelled(t *testing.T) {
	records := []Record{
		{Seq: 1, UnixNano: 0, Command: `{"T":135}`},
		{Seq: 2, UnixNano: int64(time.Hour), Command: `{"T":135}`},
	}
	fc := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Replay(ctx, records, &stubTransport{}, ReplayOptions{Clock: fc})
	}()

	fc.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Replay() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Replay() did not stop")
	}
}
