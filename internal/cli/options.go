package cli

import (
	"strconv"
	"strings"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
)

// ServerOptions holds what was given after --server. Zero values mean the
// option was not given on the command line.
type ServerOptions struct {
	Dir  string
	Port int
}

// Options is the parsed command line. At most one of RequestText,
// RequestFile and Server is set.
type Options struct {
	ShowHelp    bool
	RequestText string
	RequestFile string
	Server      *ServerOptions
	LogRequests bool
	ConfigFile  string
	MetricsAddr string
}

func usageError(format string, args ...any) error {
	return errcode.Errorf(errcode.BadUsage, format, args...)
}

func isOption(arg string) bool {
	return strings.HasPrefix(arg, "-") && len(arg) > 1
}

// ParseOptions parses the arguments that follow the program name.
//
// The --server option takes up to two optional values, a directory and a
// port, which is why this does not use the flag package.
func ParseOptions(args []string) (Options, error) {
	var opts Options
	sources := 0

	for i := 0; i < len(args); i++ {
		arg := args[i]

		next := func(name string) (string, error) {
			if i+1 >= len(args) || isOption(args[i+1]) {
				return "", usageError("%s option requires an argument", name)
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "-h", "--help":
			opts.ShowHelp = true
		case "-f", "--file":
			file, err := next(arg)
			if err != nil {
				return opts, err
			}
			opts.RequestFile = file
			sources++
		case "-s", "--server":
			srv := &ServerOptions{}
			if i+1 < len(args) && !isOption(args[i+1]) {
				i++
				srv.Dir = args[i]
				if i+1 < len(args) && !isOption(args[i+1]) {
					i++
					port, err := parsePort(args[i])
					if err != nil {
						return opts, err
					}
					srv.Port = port
				}
			}
			opts.Server = srv
			sources++
		case "-l", "--log-requests":
			opts.LogRequests = true
		case "-c", "--config":
			file, err := next(arg)
			if err != nil {
				return opts, err
			}
			opts.ConfigFile = file
		case "--metrics":
			addr, err := next(arg)
			if err != nil {
				return opts, err
			}
			opts.MetricsAddr = addr
		default:
			if isOption(arg) {
				return opts, usageError("Unknown option: %s", arg)
			}
			if opts.RequestText != "" {
				return opts, usageError("Unexpected argument: %s", arg)
			}
			opts.RequestText = arg
			sources++
		}
	}

	if opts.ShowHelp {
		return opts, nil
	}
	if sources > 1 {
		return opts, usageError("Only one of a request, --file or --server may be given")
	}
	if opts.Server == nil && (opts.LogRequests || opts.MetricsAddr != "") {
		return opts, usageError("--log-requests and --metrics can only be used with --server")
	}
	return opts, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, usageError("Invalid port: %s", s)
	}
	return port, nil
}
