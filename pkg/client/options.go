package client

import (
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/config"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

type clientOptions struct {
	dialTimeout    time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	callTimeout    time.Duration
	maxPayloadSize uint64
	keepAlive      bool
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		dialTimeout:    5 * time.Second,
		readTimeout:    10 * time.Second,
		writeTimeout:   10 * time.Second,
		callTimeout:    0,
		maxPayloadSize: protocol.MaxPayloadSize,
		keepAlive:      true,
	}
}

func (o *clientOptions) transportOptions() []transport.ClientOption {
	return []transport.ClientOption{
		transport.WithDialTimeout(o.dialTimeout),
		transport.WithReadTimeout(o.readTimeout),
		transport.WithWriteTimeout(o.writeTimeout),
		transport.WithClientMaxPayload(o.maxPayloadSize),
		transport.WithKeepAlive(o.keepAlive, 30*time.Second),
	}
}

type Option func(*clientOptions)

func WithDialTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.dialTimeout = timeout
	}
}

func WithIOTimeout(read, write time.Duration) Option {
	return func(o *clientOptions) {
		o.readTimeout = read
		o.writeTimeout = write
	}
}

// WithTimeout bounds a whole call, dial included. Zero leaves it to the
// caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.callTimeout = timeout
	}
}

func WithMaxPayloadSize(size uint64) Option {
	return func(o *clientOptions) {
		o.maxPayloadSize = size
	}
}

func FromConfig(cfg config.ClientConfig) []Option {
	return []Option{
		WithDialTimeout(cfg.DialTimeout.Duration),
		WithIOTimeout(cfg.ReadTimeout.Duration, cfg.WriteTimeout.Duration),
		WithMaxPayloadSize(cfg.MaxPayloadSize),
	}
}
