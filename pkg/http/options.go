package http

import "time"

type HttpOpts func(*clientConfig)

// WithDialTimeout bounds establishing the TCP connection
func WithDialTimeout(timeout time.Duration) HttpOpts {
	return func(c *clientConfig) {
		if timeout > 0 {
			c.dialTimeout = timeout
		}
	}
}

// WithRequestTimeout bounds a whole exchange, body included
func WithRequestTimeout(timeout time.Duration) HttpOpts {
	return func(c *clientConfig) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

func WithKeepAlive(keepAlive time.Duration) HttpOpts {
	return func(c *clientConfig) {
		c.keepAlive = keepAlive
	}
}

func WithResponseHeaderTimeout(timeout time.Duration) HttpOpts {
	return func(c *clientConfig) {
		if timeout > 0 {
			c.responseHeaderTimeout = timeout
		}
	}
}

func WithIdleConnTimeout(timeout time.Duration) HttpOpts {
	return func(c *clientConfig) {
		c.idleConnTimeout = timeout
	}
}

// WithTransport adds a RoundTripper wrapper, applied in registration order
func WithTransport(transport TransportFunc) HttpOpts {
	return func(c *clientConfig) {
		c.transports = append(c.transports, transport)
	}
}
