package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

const defaultWriteTimeout = 10 * time.Second

// TCPDialer connects to an IRC endpoint over TCP. TLS is used when
// TLSConfig is set.
type TCPDialer struct {
	Address      string
	TLSConfig    *tls.Config
	Timeout      time.Duration
	WriteTimeout time.Duration
}

func (d *TCPDialer) Dial(ctx context.Context) (Conn, error) {
	nd := &net.Dialer{Timeout: d.Timeout}

	var (
		c   net.Conn
		err error
	)
	if d.TLSConfig != nil {
		td := &tls.Dialer{NetDialer: nd, Config: d.TLSConfig}
		c, err = td.DialContext(ctx, "tcp", d.Address)
	} else {
		c, err = nd.DialContext(ctx, "tcp", d.Address)
	}
	if err != nil {
		return nil, &ConnectError{Addr: d.Address, Err: err}
	}

	return newStreamConn(c, d.WriteTimeout), nil
}

type streamConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newStreamConn(c net.Conn, writeTimeout time.Duration) *streamConn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &streamConn{
		conn:         c,
		reader:       bufio.NewReaderSize(c, MaxLineLength),
		writeTimeout: writeTimeout,
	}
}

func (s *streamConn) ReadLine() (string, error) {
	line, err := s.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", lost(ErrLineTooLong)
	}
	if err != nil {
		return "", lost(err)
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

func (s *streamConn) WriteLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return lost(err)
	}
	if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
		return lost(err)
	}
	return nil
}

func (s *streamConn) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
