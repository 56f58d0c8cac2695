package httpkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func echoHeader(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get(name)))
	}
}

func get(t *testing.T, c *http.Client, req *http.Request) string {
	t.Helper()
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestNewClient_Timeouts(t *testing.T) {
	if c := NewClient(); c.Timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", c.Timeout)
	}
	if c := NewClient(WithTimeout(0)); c.Timeout != 0 {
		t.Errorf("zero timeout = %v, want 0", c.Timeout)
	}
}

func TestNewClient_UserAgent(t *testing.T) {
	srv := httptest.NewServer(echoHeader("User-Agent"))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if got := get(t, NewClient(), req); !strings.HasPrefix(got, "vitaroute/") {
		t.Errorf("default User-Agent = %q, want vitaroute/ prefix", got)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	if got := get(t, NewClient(WithUserAgent("vitaroute-test/1")), req); got != "vitaroute-test/1" {
		t.Errorf("User-Agent = %q, want vitaroute-test/1", got)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "caller/2")
	if got := get(t, NewClient(), req); got != "caller/2" {
		t.Errorf("caller User-Agent overwritten: %q", got)
	}
}

func TestNewClient_WithHeader(t *testing.T) {
	srv := httptest.NewServer(echoHeader("Api-Key"))
	defer srv.Close()

	c := NewClient(WithHeader("api-key", "secret"))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if got := get(t, c, req); got != "secret" {
		t.Errorf("api-key = %q, want secret", got)
	}
}

func TestNewTransport_Defaults(t *testing.T) {
	tr := NewTransport()
	if tr.ResponseHeaderTimeout != DefaultResponseHeader {
		t.Errorf("ResponseHeaderTimeout = %v", tr.ResponseHeaderTimeout)
	}
	if tr.MaxIdleConnsPerHost != DefaultMaxIdleConnsPerHost {
		t.Errorf("MaxIdleConnsPerHost = %d", tr.MaxIdleConnsPerHost)
	}
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad input"))
			return
		}
		fmt.Fprintf(w, `{"echo":%q}`, in["msg"])
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := DoJSON(context.Background(), NewClient(), http.MethodPost, srv.URL+"/ok", nil, map[string]string{"msg": "hi"}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Echo != "hi" {
		t.Errorf("echo = %q, want hi", out.Echo)
	}

	err = DoJSON(context.Background(), NewClient(), http.MethodPost, srv.URL+"/fail", nil, map[string]string{"msg": "x"}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Body != "bad input" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestReadErrorBody(t *testing.T) {
	if got := ReadErrorBody(io.NopCloser(strings.NewReader("details")), 512); got != "details" {
		t.Errorf("got %q", got)
	}
	if got := ReadErrorBody(io.NopCloser(strings.NewReader(strings.Repeat("x", 100))), 10); len(got) != 10 {
		t.Errorf("truncated length = %d, want 10", len(got))
	}
	if got := ReadErrorBody(nil, 10); got != "" {
		t.Errorf("nil body = %q", got)
	}
	DrainAndClose(nil, 10)
}

type flakyRoundTripper struct {
	failures int
	calls    int
}

func (f *flakyRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	}
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("ok"))}, nil
}

func TestRetryTransport(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"no failure", 0, 1, false},
		{"recovers", 1, 2, false},
		{"exhausted", 10, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &flakyRoundTripper{failures: tt.failures}
			rt := &retryTransport{base: ft, count: 2, delay: time.Millisecond}
			req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
			_, err := rt.RoundTrip(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ft.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", ft.calls, tt.wantCalls)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("oops"), false},
		{syscall.EHOSTUNREACH, true},
		{syscall.ECONNRESET, false},
		{fmt.Errorf("dial: %w", syscall.ENETUNREACH), true},
	}
	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
