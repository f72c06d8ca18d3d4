package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/rawhttp"
	"github.com/DimaGolomozy/rawhttp/internal/router"
)

type recorder struct {
	mu  sync.Mutex
	got []Exchange
}

func (r *recorder) Observe(ex Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ex)
}

func (r *recorder) exchanges() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.got...)
}

func startServer(t *testing.T, dir string, opts Options) *Server {
	t.Helper()
	opts.Host = "127.0.0.1"
	srv, err := Listen(0, router.New(dir), opts)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func send(t *testing.T, srv *Server, line string) *rawhttp.Response {
	t.Helper()
	text := fmt.Sprintf("%s\r\nHost: %s\r\n\r\n", line, srv.Addr().String())
	req, err := rawhttp.ParseRequest(text)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := &Client{ConnectTimeout: time.Second}
	res, err := client.Send(ctx, req)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	return res
}

func body(t *testing.T, res *rawhttp.Response) string {
	t.Helper()
	if res.Body == nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := res.Body.WriteTo(&buf); err != nil {
		t.Fatalf("Body.WriteTo() error = %v", err)
	}
	return buf.String()
}

func TestServeScenarios(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := startServer(t, dir, Options{})

	tests := []struct {
		name       string
		line       string
		wantStatus string
		wantBody   string
	}{
		{"Existing file", "GET /index.html HTTP/1.1", "HTTP/1.1 200 OK", "hi"},
		{"Missing file", "GET /missing.txt HTTP/1.1", "HTTP/1.1 404 Not Found", "Resource does not exist."},
		{"Wrong method", "POST /index.html HTTP/1.1", "HTTP/1.1 405 Method Not Allowed", "Method not allowed."},
		{"Version is echoed", "GET /index.html HTTP/1.0", "HTTP/1.0 200 OK", "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := send(t, srv, tt.line)
			if got := res.StatusLine(); got != tt.wantStatus {
				t.Errorf("status line = %q, want %q", got, tt.wantStatus)
			}
			if got := body(t, res); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestServedFileHasContentLength(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.bin"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := startServer(t, dir, Options{})

	res := send(t, srv, "GET /data.bin HTTP/1.1")
	if got := res.Header.Get("Content-Length"); got != "10" {
		t.Errorf("Content-Length = %q, want %q", got, "10")
	}
	names := make([]string, 0, len(res.Header))
	for _, f := range res.Header {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "Content-Type,Server,Content-Length" {
		t.Errorf("header order = %s", got)
	}
}

func TestConcurrentRequests(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		if err := os.WriteFile(name, []byte(strings.Repeat("x", i+1)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rec := &recorder{}
	srv := startServer(t, dir, Options{MaxConnections: 2, Observers: []Observer{rec}})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := rawhttp.ParseRequest(fmt.Sprintf("GET http://%s/f%d.txt HTTP/1.1", srv.Addr(), i%5))
			if err != nil {
				errs <- err
				return
			}
			res, err := (&Client{}).Send(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if res.Status != 200 || res.Body.Len() != int64(i%5+1) {
				errs <- fmt.Errorf("request %d: status %d, body length %d", i, res.Status, res.Body.Len())
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := len(rec.exchanges()); got != 20 {
		t.Errorf("observed %d exchanges, want 20", got)
	}
}

func TestMalformedRequestGets400(t *testing.T) {
	rec := &recorder{}
	srv := startServer(t, t.TempDir(), Options{Observers: []Observer{rec}})

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, "NOT A REQUEST AT ALL\r\n"); err != nil {
		t.Fatal(err)
	}

	res, err := rawhttp.ReadResponse(conn, "GET")
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if res.Status != 400 {
		t.Errorf("status = %d, want 400", res.Status)
	}

	srv.Stop()
	got := rec.exchanges()
	if len(got) != 1 || got[0].Err == nil || got[0].Status != 400 {
		t.Errorf("exchanges = %+v, want one failed exchange with status 400", got)
	}
}

func TestOversizedBodyGets400(t *testing.T) {
	rec := &recorder{}
	srv := startServer(t, t.TempDir(), Options{Observers: []Observer{rec}})

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 9223372036854775807\r\n\r\n"); err != nil {
		t.Fatal(err)
	}

	res, err := rawhttp.ReadResponse(conn, "POST")
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if res.Status != 400 {
		t.Errorf("status = %d, want 400", res.Status)
	}

	// The server is still up.
	if res := send(t, srv, "GET /missing HTTP/1.1"); res.Status != 404 {
		t.Errorf("status after rejected body = %d, want 404", res.Status)
	}
}

func TestEmptyConnectionIsNotAnExchange(t *testing.T) {
	rec := &recorder{}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := startServer(t, dir, Options{Observers: []Observer{rec}})

	idle, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	idle.Close()

	if res := send(t, srv, "GET /a.txt HTTP/1.1"); res.Status != 200 {
		t.Fatalf("status = %d, want 200", res.Status)
	}

	srv.Stop()
	got := rec.exchanges()
	if len(got) != 1 || got[0].Status != 200 || got[0].Err != nil {
		t.Errorf("exchanges = %+v, want only the GET", got)
	}
}

func TestHandlerPanicClosesOnlyThatConnection(t *testing.T) {
	rec := &recorder{}
	handler := router.HandlerFunc(func(req *rawhttp.Request) *rawhttp.Response {
		if req.Path() == "/boom" {
			panic("boom")
		}
		return rawhttp.NewResponse(req.Version, 204, nil, nil)
	})
	srv, err := Listen(0, handler, Options{Host: "127.0.0.1", Observers: []Observer{rec}})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, "GET /boom HTTP/1.1\r\nHost: x\r\n\r\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := rawhttp.ReadResponse(conn, "GET"); err == nil {
		t.Error("ReadResponse() error = nil, want the connection closed without a response")
	}

	if res := send(t, srv, "GET /fine HTTP/1.1"); res.Status != 204 {
		t.Errorf("status after panic = %d, want 204", res.Status)
	}

	srv.Stop()
	var failed int
	for _, ex := range rec.exchanges() {
		if ex.Err != nil && errcode.CodeOf(ex.Err) == errcode.UnexpectedError {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("exchanges = %+v, want one failed with %s", rec.exchanges(), errcode.UnexpectedError)
	}
}

func TestStop(t *testing.T) {
	srv := startServer(t, t.TempDir(), Options{})
	addr := srv.Addr().String()

	// An idle connection must not keep Stop waiting.
	idle, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer idle.Close()
	time.Sleep(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- srv.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}

	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("Dial() after Stop() succeeded, want error")
	}
}

func TestListenPortInUse(t *testing.T) {
	srv := startServer(t, t.TempDir(), Options{})
	port := srv.Addr().(*net.TCPAddr).Port

	_, err := Listen(port, router.New(t.TempDir()), Options{Host: "127.0.0.1"})
	if err == nil {
		t.Fatal("Listen() on a bound port error = nil")
	}
	if got := errcode.CodeOf(err); got != errcode.IOException {
		t.Errorf("CodeOf() = %s, want %s", got, errcode.IOException)
	}
}

func TestSendConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	req, err := rawhttp.ParseRequest("GET http://" + addr + "/ HTTP/1.1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = (&Client{ConnectTimeout: time.Second}).Send(context.Background(), req)
	if err == nil {
		t.Fatal("Send() error = nil, want error")
	}
	if got := errcode.CodeOf(err); got != errcode.IOException {
		t.Errorf("CodeOf() = %s, want %s", got, errcode.IOException)
	}
}

func TestSendWithoutHost(t *testing.T) {
	req, err := rawhttp.ParseRequest("GET /index.html HTTP/1.1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = (&Client{}).Send(context.Background(), req)
	if got := errcode.CodeOf(err); got != errcode.InvalidHTTPRequest {
		t.Errorf("CodeOf(%v) = %s, want %s", err, got, errcode.InvalidHTTPRequest)
	}
}
