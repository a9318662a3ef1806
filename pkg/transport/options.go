package transport

import (
	"log/slog"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

// ------------------- Client Options -------------------

type ClientOptions struct {
	DialTimeout     time.Duration
	KeepAlive       bool
	KeepAlivePeriod time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxPayloadSize  uint64
}

func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		DialTimeout:     5 * time.Second,
		KeepAlive:       true,
		KeepAlivePeriod: 30 * time.Second,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,

		MaxPayloadSize: protocol.MaxPayloadSize,
	}
}

type ClientOption func(*ClientOptions)

func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.DialTimeout = timeout
	}
}

func WithReadTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.ReadTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.WriteTimeout = timeout
	}
}

func WithKeepAlive(keepAlive bool, period time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.KeepAlive = keepAlive
		opts.KeepAlivePeriod = period
	}
}

func WithClientMaxPayload(size uint64) ClientOption {
	return func(opts *ClientOptions) {
		opts.MaxPayloadSize = size
	}
}

// ------------------- Server Options -------------------

type ServerOptions struct {
	// ReadTimeout and WriteTimeout bound a single transaction. Zero waits
	// forever, which lets one stalled client hold up the multiplexed loop.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxPayloadSize uint64
	// MaxConnections caps concurrent connections in goroutine mode, 0 is unlimited.
	MaxConnections int
	// PoolCapacity is the slot count of the multiplexed pool.
	PoolCapacity int
	PollInterval time.Duration

	Logger   *slog.Logger
	Observer Observer
}

func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxPayloadSize: protocol.MaxPayloadSize,
		MaxConnections: 0,
		PoolCapacity:   1024,
		PollInterval:   100 * time.Millisecond,
		Logger:         slog.Default(),
		Observer:       nopObserver{},
	}
}

type ServerOption func(*ServerOptions)

func WithServerTimeout(read, write time.Duration) ServerOption {
	return func(opts *ServerOptions) {
		opts.ReadTimeout = read
		opts.WriteTimeout = write
	}
}

func WithMaxPayloadSize(size uint64) ServerOption {
	return func(opts *ServerOptions) {
		opts.MaxPayloadSize = size
	}
}

func WithMaxConnections(n int) ServerOption {
	return func(opts *ServerOptions) {
		opts.MaxConnections = n
	}
}

func WithPoolCapacity(n int) ServerOption {
	return func(opts *ServerOptions) {
		opts.PoolCapacity = n
	}
}

func WithPollInterval(d time.Duration) ServerOption {
	return func(opts *ServerOptions) {
		opts.PollInterval = d
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(opts *ServerOptions) {
		if logger != nil {
			opts.Logger = logger
		}
	}
}

func WithObserver(observer Observer) ServerOption {
	return func(opts *ServerOptions) {
		if observer != nil {
			opts.Observer = observer
		}
	}
}
