// Kunhua Huang 2026

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

const (
	ModeGoroutine = "goroutine"
	ModeMultiplex = "multiplex"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Mode           string   `yaml:"mode"` // goroutine/multiplex
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	MaxPayloadSize uint64   `yaml:"max_payload_size"`
	MaxConnections int      `yaml:"max_connections"` // goroutine mode only, 0 = unlimited
	PoolSize       int      `yaml:"pool_size"`       // multiplex mode only
	PollInterval   Duration `yaml:"poll_interval"`
	RateLimit      float64  `yaml:"rate_limit"` // packets per second, 0 = unlimited
	RateBurst      int      `yaml:"rate_burst"`
	MetricsAddr    string   `yaml:"metrics_addr"`
	Interceptors   struct {
		Recovery bool `yaml:"recovery"`
		Logging  bool `yaml:"logging"`
	} `yaml:"interceptors"`
}

type ClientConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	DialTimeout    Duration `yaml:"dial_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	MaxPayloadSize uint64   `yaml:"max_payload_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`  // debug/info/warn/error
	Format     string `yaml:"format"` // text/json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Default returns a configuration with every field but the ports filled in.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Mode:           ModeGoroutine,
			ReadTimeout:    Duration{10 * time.Second},
			WriteTimeout:   Duration{10 * time.Second},
			MaxPayloadSize: protocol.MaxPayloadSize,
			PoolSize:       1024,
			PollInterval:   Duration{100 * time.Millisecond},
		},
		Client: ClientConfig{
			Host:           "localhost",
			DialTimeout:    Duration{5 * time.Second},
			ReadTimeout:    Duration{10 * time.Second},
			WriteTimeout:   Duration{10 * time.Second},
			MaxPayloadSize: protocol.MaxPayloadSize,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
	cfg.Server.Interceptors.Recovery = true
	return cfg
}

// Load reads a YAML file over Default(). Unknown keys are rejected. The
// result is not validated so that flags can still be applied on top.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Port))
	}
	switch s.Mode {
	case ModeGoroutine, ModeMultiplex:
	default:
		errs = append(errs, fmt.Errorf("server.mode must be %q or %q, got %q", ModeGoroutine, ModeMultiplex, s.Mode))
	}
	if s.ReadTimeout.Duration < 0 || s.WriteTimeout.Duration < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if s.MaxPayloadSize == 0 || s.MaxPayloadSize > protocol.PayloadSizeLimit {
		errs = append(errs, fmt.Errorf("server.max_payload_size must be in (0, %d], got %d", protocol.PayloadSizeLimit, s.MaxPayloadSize))
	}
	if s.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must be >= 0, got %d", s.MaxConnections))
	}
	if s.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("server.pool_size must be > 0, got %d", s.PoolSize))
	}
	if s.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("server.poll_interval must be > 0"))
	}
	if s.RateLimit < 0 || s.RateBurst < 0 {
		errs = append(errs, errors.New("server.rate_limit and server.rate_burst must not be negative"))
	}

	cl := c.Client
	if cl.Port < 0 || cl.Port > 65535 {
		errs = append(errs, fmt.Errorf("client.port %d out of range", cl.Port))
	}
	if cl.MaxPayloadSize == 0 || cl.MaxPayloadSize > protocol.PayloadSizeLimit {
		errs = append(errs, fmt.Errorf("client.max_payload_size must be in (0, %d], got %d", protocol.PayloadSizeLimit, cl.MaxPayloadSize))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ListenAddr is the host:port the server binds.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (c ClientConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
