// Package config loads optional defaults for rawhttp from a TOML or YAML
// file. Values given on the command line always win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
)

// Defaults used for keys the file leaves out.
const (
	DefaultDir  = "."
	DefaultPort = 8080
)

var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrOutOfRange    = errors.New("config: value out of range")
	ErrInvalidValue  = errors.New("config: invalid value")
)

// Config mirrors the layout of the configuration file:
//
//	log_level = "info"
//
//	[server]
//	dir = "./public"
//	port = 8080
//	log_requests = true
//	max_connections = 64
//	metrics_addr = "127.0.0.1:9090"
//
//	[client]
//	connect_timeout = "10s"
type Config struct {
	LogLevel string `toml:"log_level" yaml:"log_level"`
	Server   Server `toml:"server" yaml:"server"`
	Client   Client `toml:"client" yaml:"client"`
}

// Server holds the defaults for --server mode.
type Server struct {
	Dir            string `toml:"dir" yaml:"dir"`
	Port           int    `toml:"port" yaml:"port"`
	LogRequests    bool   `toml:"log_requests" yaml:"log_requests"`
	MaxConnections int    `toml:"max_connections" yaml:"max_connections"`
	MetricsAddr    string `toml:"metrics_addr" yaml:"metrics_addr"`
}

// Client holds settings for sending requests.
type Client struct {
	ConnectTimeout string `toml:"connect_timeout" yaml:"connect_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Dir:  DefaultDir,
			Port: DefaultPort,
		},
	}
}

// Load reads path, choosing the decoder by extension (.toml, .yaml, .yml).
// Keys missing from the file keep their default values. A file that cannot
// be read is an errcode.IOException.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errcode.New(errcode.IOException, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("can't parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) != 0 {
			return cfg, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidValue, path, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("can't parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w %q, use .toml, .yaml or .yml", ErrUnknownFormat, filepath.Ext(path))
	}

	if err := cfg.Valid(); err != nil {
		return cfg, fmt.Errorf("configuration file %s is invalid: %w", path, err)
	}
	return cfg, nil
}

// Valid reports every problem with the configuration at once.
func (c Config) Valid() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port %d is not between 1 and 65535", ErrOutOfRange, c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("%w: server.max_connections %d is negative", ErrOutOfRange, c.Server.MaxConnections))
	}
	if c.Server.Dir == "" {
		errs = append(errs, fmt.Errorf("%w: server.dir is empty", ErrInvalidValue))
	}
	if _, err := c.Client.Timeout(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timeout parses ConnectTimeout. An empty value means no timeout.
func (c Client) Timeout() (time.Duration, error) {
	if c.ConnectTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: client.connect_timeout: %w", ErrInvalidValue, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: client.connect_timeout %s is negative", ErrOutOfRange, d)
	}
	return d, nil
}
