// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/wire"
)

// Dialect selects the HTTP API the robot exposes.
type Dialect int

// HTTP dialects
const (
	// DialectESP32 talks to the controller board directly:
	// GET http://host/js?json=<command>.
	DialectESP32 Dialect = iota
	// DialectJetson talks to the bridge service:
	// POST http://host:8000/cobraflex/cmd and GET /cobraflex/feedback.
	DialectJetson
)

// Jetson bridge endpoints
const (
	JetsonPort         = "8000"
	JetsonCommandPath  = "/cobraflex/cmd"
	JetsonFeedbackPath = "/cobraflex/feedback"
)

func (d Dialect) String() string {
	switch d {
	case DialectESP32:
		return "esp32"
	case DialectJetson:
		return "jetson"
	}
	return "unknown"
}

// DefaultTimeout returns the per-request timeout used when none is set.
func (d Dialect) DefaultTimeout() time.Duration {
	if d == DialectJetson {
		return 1 * time.Second
	}
	return 2 * time.Second
}

// ParseDialect parses "esp32" or "jetson".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "esp32", "esp32s3", "":
		return DialectESP32, nil
	case "jetson", "orin":
		return DialectJetson, nil
	}
	return DialectESP32, fmt.Errorf("unknown HTTP dialect: %s (use esp32 or jetson)", s)
}

// HTTPOptions configures NewHTTPTransport.
type HTTPOptions struct {
	Host    string // host, host:port, or a full http:// base URL
	Dialect Dialect
	Timeout time.Duration
	Client  *http.Client
}

// HTTPTransport sends each command as its own HTTP request.
type HTTPTransport struct {
	base    *url.URL
	dialect Dialect
	client  *http.Client
}

// NewHTTPTransport validates the host and builds the transport. No request is
// made until the first Send.
func NewHTTPTransport(opts HTTPOptions) (*HTTPTransport, error) {
	base, err := baseURL(opts.Host, opts.Dialect)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = opts.Dialect.DefaultTimeout()
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPTransport{base: base, dialect: opts.Dialect, client: client}, nil
}

func baseURL(host string, dialect Dialect) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("robot host is not set")
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid robot URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported URL scheme: %s (use http:// or https://)", u.Scheme)
		}
		u.Path = strings.TrimSuffix(u.Path, "/")
		return u, nil
	}

	if dialect == DialectJetson {
		if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, JetsonPort)
		}
	}
	return &url.URL{Scheme: "http", Host: host}, nil
}

// String describes the endpoint.
func (t *HTTPTransport) String() string {
	return fmt.Sprintf("HTTP (%s): %s", t.dialect, t.base.String())
}

// Send performs one request. A status of 300 or above is an error.
func (t *HTTPTransport) Send(ctx context.Context, cmd wire.Command) (Response, error) {
	req, err := t.request(ctx, cmd)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("robot returned HTTP %d", resp.StatusCode)
	}
	return Response(body), nil
}

func (t *HTTPTransport) request(ctx context.Context, cmd wire.Command) (*http.Request, error) {
	u := *t.base

	if t.dialect == DialectJetson {
		if cmd.Type() == wire.CmdFeedbackQuery {
			u.Path += JetsonFeedbackPath
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}
		u.Path += JetsonCommandPath
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader([]byte(cmd)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	u.Path += "/js"
	u.RawQuery = url.Values{"json": {string(cmd)}}.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
