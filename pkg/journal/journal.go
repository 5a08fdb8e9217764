// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package journal records every command sent to the robot as a stream of
// CBOR records, and reads and replays such streams.
package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Record is one sent command. Keys are small integers to keep records compact.
type Record struct {
	Session  string `cbor:"1,keyasint"`
	Seq      uint64 `cbor:"2,keyasint"`
	UnixNano int64  `cbor:"3,keyasint"`
	Command  string `cbor:"4,keyasint"`
	Reply    []byte `cbor:"5,keyasint,omitempty"`
	Error    string `cbor:"6,keyasint,omitempty"`
}

// Time returns when the command was sent.
func (r Record) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

// Recorder is a Transport that journals every Send of the transport it wraps.
type Recorder struct {
	next    transport.Transport
	clock   clockwork.Clock
	session string
	closer  io.Closer

	mu  sync.Mutex
	enc *cbor.Encoder
	seq uint64
	err error
}

// NewRecorder journals to w under a fresh session id.
func NewRecorder(next transport.Transport, w io.Writer, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{
		next:    next,
		clock:   clock,
		session: uuid.New().String(),
		enc:     cbor.NewEncoder(w),
	}
}

// Create opens path for appending and journals to it. Closing the recorder
// closes the file.
func Create(path string, next transport.Transport, clock clockwork.Clock) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal '%s': %w", path, err)
	}
	r := NewRecorder(next, f, clock)
	r.closer = f
	return r, nil
}

// Session returns the session id written with every record.
func (r *Recorder) Session() string {
	return r.session
}

// Send forwards cmd and appends a record of the outcome. A journal write
// failure does not affect delivery; it is reported by Err and Close.
func (r *Recorder) Send(ctx context.Context, cmd wire.Command) (transport.Response, error) {
	sentAt := r.clock.Now()
	resp, err := r.next.Send(ctx, cmd)

	rec := Record{
		Session:  r.session,
		UnixNano: sentAt.UnixNano(),
		Command:  string(cmd),
		Reply:    resp,
	}
	if err != nil {
		rec.Error = err.Error()
	}

	r.mu.Lock()
	r.seq++
	rec.Seq = r.seq
	if werr := r.enc.Encode(rec); werr != nil && r.err == nil {
		r.err = fmt.Errorf("journal write failed: %w", werr)
	}
	r.mu.Unlock()

	return resp, err
}

// Err returns the first journal write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the wrapped transport and the journal file.
func (r *Recorder) Close() error {
	errs := []error{r.next.Close(), r.Err()}
	if r.closer != nil {
		errs = append(errs, r.closer.Close())
	}
	return errors.Join(errs...)
}

// String describes the wrapped transport.
func (r *Recorder) String() string {
	return r.next.String() + " (journaled)"
}

// Reader decodes a record stream.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode journal record: %w", err)
	}
	return rec, nil
}

// ReadAll reads every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	reader := NewReader(r)
	var records []Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// ReadFile reads every record in the journal at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal '%s': %w", path, err)
	}
	defer f.Close()
	return ReadAll(f)
}

// ReplayOptions configures Replay.
type ReplayOptions struct {
	Clock clockwork.Clock
	Speed float64 // playback rate; 0 or less means 1
	// Sent, if set, is called after each command is re-sent.
	Sent func(rec Record, resp transport.Response, err error)
}

// Replay re-sends the commands in records through t, keeping their original
// relative timing scaled by Speed. Send failures are reported to Sent and do
// not stop the replay.
func Replay(ctx context.Context, records []Record, t transport.Transport, opts ReplayOptions) error {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}

	for i, rec := range records {
		if i > 0 {
			gap := time.Duration(float64(rec.UnixNano-records[i-1].UnixNano) / speed)
			if gap > 0 {
				timer := clock.NewTimer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.Chan():
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := t.Send(ctx, wire.Command(rec.Command))
		if opts.Sent != nil {
			opts.Sent(rec, resp, err)
		}
	}
	return nil
}
