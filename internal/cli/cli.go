// Package cli turns a command line into one of the rawhttp modes: send a
// request from text, a file or stdin, or serve a directory.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/DimaGolomozy/rawhttp/internal/config"
	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/logging"
	"github.com/DimaGolomozy/rawhttp/internal/rawhttp"
	"github.com/DimaGolomozy/rawhttp/internal/sender"
	"github.com/DimaGolomozy/rawhttp/internal/session"
	"github.com/DimaGolomozy/rawhttp/internal/transport"
)

const usageHint = "For usage, run with the --help option."

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	log    zerolog.Logger
}

// Main runs rawhttp with args (without the program name) and returns the
// process exit status. Failures are reported as a single message on stderr.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, cfg: config.Default()}
	if err := a.run(ctx, args); err != nil {
		return a.fail(err)
	}
	return 0
}

func (a *app) fail(err error) int {
	code := errcode.CodeOf(err)
	msg := err.Error()
	if code == errcode.BadUsage {
		msg += "\n" + usageHint
	}
	color.New(color.FgRed).Fprintln(a.stderr, msg)
	return code.ExitStatus()
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.setup()
		return a.sendFrom(ctx, a.stdin)
	}

	opts, err := ParseOptions(args)
	if err != nil {
		return err
	}
	if opts.ShowHelp {
		fmt.Fprintln(a.stdout, HelpTextMain)
		return nil
	}

	if opts.ConfigFile != "" {
		cfg, err := config.Load(opts.ConfigFile)
		if err != nil {
			if errcode.CodeOf(err) == errcode.IOException {
				return err
			}
			return errcode.New(errcode.BadUsage, err)
		}
		a.cfg = cfg
	}
	a.setup()

	switch {
	case opts.RequestText != "":
		req, err := rawhttp.ParseRequest(opts.RequestText)
		if err != nil {
			return err
		}
		return a.send(ctx, req)
	case opts.RequestFile != "":
		return a.sendFile(ctx, opts.RequestFile)
	case opts.Server != nil:
		return a.serve(ctx, opts)
	}
	return errcode.Errorf(errcode.BadUsage, "Nothing to do")
}

func (a *app) setup() {
	level := a.cfg.LogLevel
	if env := os.Getenv(logging.EnvLevel); env != "" {
		level = env
	}
	a.log = logging.New(a.stderr, level)
}

func (a *app) sendFrom(ctx context.Context, r io.Reader) error {
	req, err := rawhttp.ReadRequest(r)
	if err != nil {
		return err
	}
	return a.send(ctx, req)
}

func (a *app) sendFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errcode.New(errcode.IOException, err)
	}
	defer f.Close()

	return a.sendFrom(ctx, f)
}

func (a *app) send(ctx context.Context, req *rawhttp.Request) error {
	timeout, err := a.cfg.Client.Timeout()
	if err != nil {
		return errcode.New(errcode.BadUsage, err)
	}
	a.log.Debug().Str("method", req.Method).Str("target", req.Target).Msg("sending request")

	s := &sender.Sender{
		Transport: &transport.Client{ConnectTimeout: timeout},
		Out:       a.stdout,
	}
	return s.Send(ctx, req)
}

func (a *app) serve(ctx context.Context, opts Options) error {
	srvCfg := a.cfg.Server
	sopts := session.Options{
		Dir:            srvCfg.Dir,
		Port:           srvCfg.Port,
		LogRequests:    srvCfg.LogRequests || opts.LogRequests,
		MaxConnections: srvCfg.MaxConnections,
		MetricsAddr:    srvCfg.MetricsAddr,
	}
	if opts.Server.Dir != "" {
		sopts.Dir = opts.Server.Dir
	}
	if opts.Server.Port != 0 {
		sopts.Port = opts.Server.Port
	}
	if opts.MetricsAddr != "" {
		sopts.MetricsAddr = opts.MetricsAddr
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go waitForEnter(a.stdin, cancel)

	return session.New(sopts, a.stdout, a.log).Serve(ctx)
}

// waitForEnter cancels the session once a line, or the end of input, is
// read from r.
func waitForEnter(r io.Reader, cancel context.CancelCauseFunc) {
	_, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		cancel(errcode.New(errcode.IOException, err))
		return
	}
	cancel(nil)
}
