// Package httpserver implements the HTTP CONNECT/forward proxy FSM:
// read the request head, classify it, tunnel or forward, relay, close.
package httpserver

import "time"

// Config mirrors the http-server subcommand's flags.
type Config struct {
	ListenIP   string
	ListenPort int

	MaxHeadSize       int
	ConnectionTimeout time.Duration
	HandshakeTimeout  time.Duration
}

// DefaultConfig matches defaultSections["http-server"] in internal/config.
func DefaultConfig() Config {
	return Config{
		ListenIP:          "127.0.0.1",
		ListenPort:        8118,
		MaxHeadSize:       8 * 1024,
		ConnectionTimeout: 10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}
