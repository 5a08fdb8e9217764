// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Thermoquad/cobraflex/pkg/wire"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	ctype  string
}

func recordingServer(t *testing.T, status int, reply string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query().Get("json"),
			body:   string(body),
			ctype:  r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestHTTPTransport_ESP32(t *testing.T) {
	srv, requests := recordingServer(t, http.StatusOK, `{"T":1001,"v":1200}`)
	tr, err := NewHTTPTransport(HTTPOptions{Host: srv.URL, Dialect: DialectESP32})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error: %v", err)
	}
	defer tr.Close()

	codec := wire.MustCodec(wire.DefaultPolicy())
	cmd := codec.EncodeDrive(wire.North, 300)

	resp, err := tr.Send(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if string(resp) != `{"T":1001,"v":1200}` {
		t.Errorf("response = %s", resp)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].method != http.MethodGet || reqs[0].path != "/js" {
		t.Errorf("request = %s %s, want GET /js", reqs[0].method, reqs[0].path)
	}
	if reqs[0].query != string(cmd) {
		t.Errorf("json param = %q, want %q", reqs[0].query, cmd)
	}
}

func TestHTTPTransport_Jetson(t *testing.T) {
	srv, requests := recordingServer(t, http.StatusOK, `{}`)
	tr, err := NewHTTPTransport(HTTPOptions{Host: srv.URL, Dialect: DialectJetson})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error: %v", err)
	}

	codec := wire.MustCodec(wire.DefaultPolicy())
	cmd := codec.EncodeGimbalAbsolute(10, 20)

	if _, err := tr.Send(context.Background(), cmd); err != nil {
		t.Fatalf("Send(gimbal) error: %v", err)
	}
	if _, err := tr.Send(context.Background(), wire.EncodeFeedbackQuery()); err != nil {
		t.Fatalf("Send(feedback) error: %v", err)
	}

	reqs := requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}

	post := reqs[0]
	if post.method != http.MethodPost || post.path != JetsonCommandPath {
		t.Errorf("command request = %s %s", post.method, post.path)
	}
	if post.body != string(cmd) || post.ctype != "application/json" {
		t.Errorf("command body = %q (%s)", post.body, post.ctype)
	}

	get := reqs[1]
	if get.method != http.MethodGet || get.path != JetsonFeedbackPath {
		t.Errorf("feedback request = %s %s", get.method, get.path)
	}
}

func TestHTTPTransport_ErrorStatus(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusInternalServerError, "boom")
	tr, err := NewHTTPTransport(HTTPOptions{Host: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error: %v", err)
	}

	_, err = tr.Send(context.Background(), wire.EncodeGimbalStop())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Send() error = %v, want HTTP 500", err)
	}
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	tr, err := NewHTTPTransport(HTTPOptions{Host: host})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error: %v", err)
	}
	if _, err := tr.Send(context.Background(), wire.EncodeGimbalStop()); err == nil {
		t.Error("Send() to closed server succeeded")
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host    string
		dialect Dialect
		want    string
		wantErr bool
	}{
		{"192.168.4.1", DialectESP32, "http://192.168.4.1", false},
		{"192.168.4.1", DialectJetson, "http://192.168.4.1:8000", false},
		{"orin.local:9000", DialectJetson, "http://orin.local:9000", false},
		{"http://robot/", DialectESP32, "http://robot", false},
		{"ftp://robot", DialectESP32, "", true},
		{"", DialectESP32, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			u, err := baseURL(tt.host, tt.dialect)
			if tt.wantErr {
				if err == nil {
					t.Errorf("baseURL(%q) succeeded, want error", tt.host)
				}
				return
			}
			if err != nil {
				t.Fatalf("baseURL(%q) error: %v", tt.host, err)
			}
			if u.String() != tt.want {
				t.Errorf("baseURL(%q) = %s, want %s", tt.host, u, tt.want)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"esp32", DialectESP32, false},
		{"", DialectESP32, false},
		{"Jetson", DialectJetson, false},
		{"zigbee", DialectESP32, true},
	}

	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDialect(%q) = %v, %v", tt.in, got, err)
		}
	}
}
