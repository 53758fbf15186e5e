// Package transport delivers raw chat protocol lines over TCP (optionally
// TLS) or a WebSocket.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"
)

// ErrConnectionLost is wrapped by every read or write failure on an
// established connection.
var ErrConnectionLost = errors.New("connection lost")

// ErrLineTooLong is wrapped with ErrConnectionLost when the server sends
// more than MaxLineLength bytes without a line terminator.
var ErrLineTooLong = errors.New("line too long")

// MaxLineLength bounds a single received line, tags included. Twitch lines
// stay well below it.
const MaxLineLength = 16 * 1024

// ConnectError reports a failed dial.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Conn is an established line-oriented connection. ReadLine and WriteLine
// may be called from different goroutines; Close unblocks a pending
// ReadLine.
type Conn interface {
	// ReadLine returns the next line without its CRLF terminator.
	ReadLine() (string, error)
	// WriteLine sends line followed by CRLF.
	WriteLine(line string) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

const (
	KindTCP       = "tcp"
	KindWebSocket = "websocket"
)

// Endpoint selects and configures a transport.
type Endpoint struct {
	Kind         string // KindTCP or KindWebSocket
	Address      string // host:port for KindTCP
	TLS          bool
	URL          string // ws:// or wss:// URL for KindWebSocket
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// New returns the dialer for ep.
func New(ep Endpoint) (Dialer, error) {
	switch ep.Kind {
	case KindTCP, "":
		d := &TCPDialer{
			Address:      ep.Address,
			Timeout:      ep.DialTimeout,
			WriteTimeout: ep.WriteTimeout,
		}
		if ep.TLS {
			d.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return d, nil
	case KindWebSocket:
		return &WebSocketDialer{
			URL:          ep.URL,
			Timeout:      ep.DialTimeout,
			WriteTimeout: ep.WriteTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", ep.Kind)
	}
}

func lost(err error) error {
	if errors.Is(err, ErrConnectionLost) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}
