package cli

// HelpTextMain is printed for --help.
const HelpTextMain = `=============== RawHTTP CLI ===============

RawHTTP CLI is a utility to send HTTP requests to remote servers or serve the
contents of a local directory via HTTP.

Usage:
  rawhttp [option [args]] | request

Options:
  --help, -h                   show this help message.
  --file, -f <file>            send request from file.
  --server, -s [<dir> [port]]  serve contents of directory (default: current
                               directory on port 8080).
  --log-requests, -l           log requests received by the server (--server mode).
  --config, -c <file>          read defaults from a .toml or .yaml file.
  --metrics <addr>             expose Prometheus metrics at http://<addr>/metrics
                               (--server mode).

If no arguments are given, RawHTTP reads a HTTP request from stdin.

Exit status:
  0  success
  1  bad usage
  2  invalid HTTP request
  3  unexpected error
  4  I/O error

Environment:
  RAWHTTP_LOG_LEVEL  log level (debug, info, warn, error). Overrides log_level
                     from the configuration file.`
