package transport

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/rawhttp"
	"github.com/DimaGolomozy/rawhttp/internal/router"
)

// Exchange describes one served connection after its response was written
// or the attempt failed.
type Exchange struct {
	Remote   net.Addr
	Request  *rawhttp.Request
	Status   int
	Duration time.Duration
	Err      error
}

// Observer is notified of every exchange. Observers are called from the
// connection goroutines and must be safe for concurrent use.
type Observer interface {
	Observe(ex Exchange)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ex Exchange)

func (f ObserverFunc) Observe(ex Exchange) { f(ex) }

// Options configures Listen.
type Options struct {
	// Host to bind. Empty binds all interfaces.
	Host string
	// MaxConnections caps concurrently open connections. Zero is unlimited.
	MaxConnections int
	Logger         *zerolog.Logger
	Observers      []Observer
}

// Server accepts connections and serves one request per connection.
type Server struct {
	ln        net.Listener
	handler   router.Handler
	logger    zerolog.Logger
	observers []Observer

	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	stopped  bool
	stopOnce sync.Once
}

// Listen binds port and starts accepting in the background. Port 0 picks a
// free port; see Addr.
func Listen(port int, handler router.Handler, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(opts.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, errcode.New(errcode.IOException, err)
	}
	if opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConnections)
	}

	s := &Server{
		ln:        ln,
		handler:   handler,
		logger:    zerolog.Nop(),
		observers: opts.Observers,
		conns:     map[net.Conn]struct{}{},
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stop closes the listener, aborts connections still waiting for a request
// and waits for responses in flight to finish. Calling Stop more than once
// is harmless.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		err = s.ln.Close()
		for conn := range s.conns {
			conn.SetReadDeadline(time.Now())
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("accept failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	start := time.Now()
	ex := Exchange{Remote: conn.RemoteAddr()}
	quiet := false
	defer func() {
		if r := recover(); r != nil {
			ex.Err = errcode.Errorf(errcode.UnexpectedError, "panic serving connection: %v", r)
			s.logger.Error().Err(ex.Err).Stringer("remote", ex.Remote).Msg("connection aborted")
		}
		if quiet {
			return
		}
		ex.Duration = time.Since(start)
		s.notify(ex)
	}()

	req, err := rawhttp.ReadRequest(bufio.NewReader(conn))
	if errors.Is(err, rawhttp.ErrEmptyRequest) {
		// Health checks connect and close without sending a byte.
		quiet = true
		s.logger.Debug().Stringer("remote", ex.Remote).Msg("connection closed without a request")
		return
	}
	if err != nil {
		ex.Err = err
		if errcode.CodeOf(err) == errcode.InvalidHTTPRequest {
			ex.Status = 400
			s.writeBadRequest(conn)
		}
		s.logger.Warn().Err(err).Stringer("remote", ex.Remote).Stringer("code", errcode.CodeOf(err)).Msg("could not read request")
		return
	}
	ex.Request = req

	res := s.handler.Handle(req)
	ex.Status = res.Status
	if err := rawhttp.WriteResponse(conn, res.Framed()); err != nil {
		ex.Err = err
		s.logger.Error().Err(err).
			Stringer("remote", ex.Remote).
			Str("path", req.Path()).
			Stringer("code", errcode.CodeOf(err)).
			Msg("could not write response")
	}
}

func (s *Server) writeBadRequest(conn net.Conn) {
	res := rawhttp.NewResponse(rawhttp.DefaultVersion, 400, rawhttp.Header{
		{Name: "Content-Length", Value: "0"},
		{Name: "Server", Value: "RawHTTP"},
	}, nil)
	rawhttp.WriteResponse(conn, res)
}

func (s *Server) notify(ex Exchange) {
	for _, o := range s.observers {
		o.Observe(ex)
	}
}
