// Kunhua Huang 2026

package server

import (
	"log/slog"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/config"
	"github.com/ecstasoy/CipherInGo/pkg/interceptor"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

type serverOptions struct {
	address        string
	mode           string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxPayloadSize uint64
	maxConnections int
	poolCapacity   int
	pollInterval   time.Duration
	logger         *slog.Logger
	observer       transport.Observer
	metrics        *interceptor.Metrics
}

func defaultServerOptions() *serverOptions {
	return &serverOptions{
		address:        ":8080",
		mode:           config.ModeGoroutine,
		readTimeout:    10 * time.Second,
		writeTimeout:   10 * time.Second,
		maxPayloadSize: protocol.MaxPayloadSize,
		maxConnections: 0,
		poolCapacity:   1024,
		pollInterval:   100 * time.Millisecond,
		logger:         slog.Default(),
	}
}

func (o *serverOptions) transportOptions() []transport.ServerOption {
	opts := []transport.ServerOption{
		transport.WithServerTimeout(o.readTimeout, o.writeTimeout),
		transport.WithMaxPayloadSize(o.maxPayloadSize),
		transport.WithMaxConnections(o.maxConnections),
		transport.WithPoolCapacity(o.poolCapacity),
		transport.WithPollInterval(o.pollInterval),
		transport.WithLogger(o.logger),
	}

	switch {
	case o.observer != nil:
		opts = append(opts, transport.WithObserver(o.observer))
	case o.metrics != nil:
		opts = append(opts, transport.WithObserver(o.metrics))
	}

	return opts
}

type Option func(*serverOptions)

func WithAddress(addr string) Option {
	return func(o *serverOptions) {
		o.address = addr
	}
}

// WithMode selects the connection strategy, config.ModeGoroutine or
// config.ModeMultiplex.
func WithMode(mode string) Option {
	return func(o *serverOptions) {
		o.mode = mode
	}
}

func WithTimeout(read, write time.Duration) Option {
	return func(o *serverOptions) {
		o.readTimeout = read
		o.writeTimeout = write
	}
}

func WithMaxPayloadSize(size uint64) Option {
	return func(o *serverOptions) {
		o.maxPayloadSize = size
	}
}

func WithConcurrency(maxConnections, poolCapacity int) Option {
	return func(o *serverOptions) {
		o.maxConnections = maxConnections
		o.poolCapacity = poolCapacity
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *serverOptions) {
		o.pollInterval = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver replaces the connection observer. It takes precedence over
// the one installed by WithMetrics.
func WithObserver(observer transport.Observer) Option {
	return func(o *serverOptions) {
		o.observer = observer
	}
}

// WithMetrics records connection events on m and installs its interceptor
// in front of the chain.
func WithMetrics(m *interceptor.Metrics) Option {
	return func(o *serverOptions) {
		o.metrics = m
	}
}

// FromConfig converts the server section of a configuration file.
func FromConfig(cfg config.ServerConfig) []Option {
	return []Option{
		WithAddress(cfg.ListenAddr()),
		WithMode(cfg.Mode),
		WithTimeout(cfg.ReadTimeout.Duration, cfg.WriteTimeout.Duration),
		WithMaxPayloadSize(cfg.MaxPayloadSize),
		WithConcurrency(cfg.MaxConnections, cfg.PoolSize),
		WithPollInterval(cfg.PollInterval.Duration),
	}
}
