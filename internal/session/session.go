// Package session runs serve mode: it validates the served directory, binds
// a listener answering with the static file router, and tears it down when
// told to stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/logging"
	"github.com/DimaGolomozy/rawhttp/internal/metrics"
	"github.com/DimaGolomozy/rawhttp/internal/router"
	"github.com/DimaGolomozy/rawhttp/internal/transport"
)

// State is where a Session is in its lifecycle.
type State int

const (
	NotStarted State = iota
	Listening
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Listening:
		return "Listening"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a serving session.
type Options struct {
	Dir  string
	Port int
	// Host to bind; empty means all interfaces.
	Host           string
	LogRequests    bool
	MaxConnections int
	// MetricsAddr, when set, exposes Prometheus metrics at /metrics.
	MetricsAddr string
}

// Session serves one directory until its context ends. It runs once.
type Session struct {
	opts Options
	out  io.Writer
	log  zerolog.Logger

	mu    sync.Mutex
	state State
	addr  net.Addr
}

// New prepares a session. The banner is written to out.
func New(opts Options, out io.Writer, log zerolog.Logger) *Session {
	return &Session{opts: opts, out: out, log: log}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address once the session is listening.
func (s *Session) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Session) setState(st State, addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	if addr != nil {
		s.addr = addr
	}
}

// Serve listens until ctx is done, then stops the listener and returns. If
// ctx was cancelled with a cause carrying an errcode category, that cause is
// returned after the listener has stopped.
func (s *Session) Serve(ctx context.Context) error {
	if s.State() != NotStarted {
		return errcode.Errorf(errcode.UnexpectedError, "session already %s", s.State())
	}

	fi, err := os.Stat(s.opts.Dir)
	if err != nil || !fi.IsDir() {
		return errcode.Errorf(errcode.BadUsage, "Error: not a directory - %s", s.opts.Dir)
	}
	root, err := filepath.Abs(s.opts.Dir)
	if err != nil {
		return errcode.New(errcode.IOException, err)
	}

	var observers []transport.Observer
	if s.opts.LogRequests {
		observers = append(observers, logging.NewRequestLogger(s.log))
	}
	if s.opts.MetricsAddr != "" {
		collector := metrics.New()
		_, stopMetrics, err := collector.Expose(s.opts.MetricsAddr, s.log)
		if err != nil {
			return err
		}
		defer stopMetrics(context.Background())
		observers = append(observers, collector)
	}

	srv, err := transport.Listen(s.opts.Port, router.New(root), transport.Options{
		Host:           s.opts.Host,
		MaxConnections: s.opts.MaxConnections,
		Logger:         &s.log,
		Observers:      observers,
	})
	if err != nil {
		return err
	}
	s.setState(Listening, srv.Addr())

	port := s.opts.Port
	if tcp, ok := srv.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	fmt.Fprintf(s.out, "Serving directory %s on port %s\n", color.CyanString(root), color.New(color.Bold).Sprint(port))
	fmt.Fprintln(s.out, "Press Enter key to stop the server.")
	s.log.Debug().Str("root", root).Stringer("addr", srv.Addr()).Msg("listening")

	<-ctx.Done()

	if err := srv.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("closing listener")
	}
	s.setState(Stopped, nil)
	s.log.Debug().Msg("stopped")

	var coded *errcode.Error
	if cause := context.Cause(ctx); errors.As(cause, &coded) {
		return cause
	}
	return nil
}
