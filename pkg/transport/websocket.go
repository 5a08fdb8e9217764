// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// WebSocketOptions configures NewWebSocketTransport.
type WebSocketOptions struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	ReplyTimeout  time.Duration
	Clock         clockwork.Clock
}

// WebSocketTransport sends each command as one text frame to a WebSocket
// bridge. The bridge answers commands that expect a reply with one text frame.
type WebSocketTransport struct {
	url          string
	headers      http.Header
	dialer       websocket.Dialer
	replyTimeout time.Duration
	backoff      *reconnectBackoff

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebSocketTransport validates the URL and dials once.
func NewWebSocketTransport(opts WebSocketOptions) (*WebSocketTransport, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	replyTimeout := opts.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = 5 * time.Second
	}

	t := &WebSocketTransport{
		url:          opts.URL,
		headers:      headers,
		dialer:       dialer,
		replyTimeout: replyTimeout,
		backoff:      newReconnectBackoff(opts.Clock),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := t.ensureConn(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// String describes the endpoint.
func (t *WebSocketTransport) String() string {
	return fmt.Sprintf("WebSocket: %s", t.url)
}

// Send writes cmd as a text frame and, for commands the robot answers, waits
// for the next text frame.
func (t *WebSocketTransport) Send(ctx context.Context, cmd wire.Command) (Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	conn, err := t.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.replyTimeout)); err != nil {
		t.drop()
		return nil, fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.drop()
		return nil, fmt.Errorf("websocket write failed: %w", err)
	}

	if !wire.ExpectsReply(cmd) {
		return nil, nil
	}

	deadline := time.Now().Add(t.replyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.drop()
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.drop()
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				return nil, ErrNoReply
			}
			return nil, fmt.Errorf("websocket read failed: %w", err)
		}

		// Skip binary frames and anything that is not a JSON object.
		if messageType != websocket.TextMessage {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 || data[0] != '{' {
			continue
		}
		return Response(data), nil
	}
}

func (t *WebSocketTransport) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	if wait := t.backoff.wait(); wait > 0 {
		return nil, fmt.Errorf("%w (%s)", ErrBackoff, wait.Round(time.Millisecond))
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.headers)
	if err != nil {
		t.backoff.failed()
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	t.backoff.reset()
	t.conn = conn
	return conn, nil
}

// drop closes a failed connection; the next Send redials.
func (t *WebSocketTransport) drop() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.backoff.failed()
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn == nil {
		return nil
	}
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := t.conn.Close()
	t.conn = nil
	return err
}
