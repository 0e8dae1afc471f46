package tntcore

import (
	"time"

	"go.uber.org/zap"
)

// config collects the options recognised by ConnectWithConfig: credentials
// plus transport timeouts. Further options are reserved.
type config struct {
	user, pass string
	hasCreds   bool

	dialTimeout time.Duration
	logger      *zap.Logger
}

func defaultConfig() *config {
	return &config{
		dialTimeout: 10 * time.Second,
		logger:      zap.NewNop(),
	}
}

// Option configures a Client at connect time.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithCredentials enables greeting-phase chap-sha1 authentication with the
// given username and password.
func WithCredentials(user, password string) Option {
	return optionFunc(func(c *config) {
		c.user = user
		c.pass = password
		c.hasCreds = true
	})
}

// WithDialTimeout bounds how long Connect/ConnectWithConfig waits for the
// TCP handshake. Reading the greeting is bounded only by the context's
// deadline. The default is 10 seconds.
func WithDialTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.dialTimeout = d })
}

// WithLogger sets the structured logger used for the two non-fatal
// conditions the connection core itself logs: a response with no
// registered waiter, and (at debug level) a dump of every outgoing frame.
// The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}
