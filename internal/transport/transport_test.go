package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsDialer(t *testing.T) {
	d, err := New(Endpoint{Kind: KindTCP, Address: "irc.chat.twitch.tv:6697", TLS: true})
	require.NoError(t, err)
	tcp, ok := d.(*TCPDialer)
	require.True(t, ok)
	assert.NotNil(t, tcp.TLSConfig)

	d, err = New(Endpoint{Kind: KindTCP, Address: "irc.chat.twitch.tv:6667"})
	require.NoError(t, err)
	assert.Nil(t, d.(*TCPDialer).TLSConfig)

	d, err = New(Endpoint{Kind: KindWebSocket, URL: "wss://irc-ws.chat.twitch.tv:443"})
	require.NoError(t, err)
	assert.IsType(t, &WebSocketDialer{}, d)

	_, err = New(Endpoint{Kind: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestTCPReadWriteLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte("PING :tmi.twitch.tv\r\n:tmi.twitch.tv 001 justinfan1 :Welcome\n"))
		line, _ := bufio.NewReader(c).ReadString('\n')
		received <- line
	}()

	conn, err := (&TCPDialer{Address: ln.Addr().String()}).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "PING :tmi.twitch.tv", line)

	line, err = conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, ":tmi.twitch.tv 001 justinfan1 :Welcome", line)

	require.NoError(t, conn.WriteLine("PONG :tmi.twitch.tv"))
	select {
	case got := <-received:
		assert.Equal(t, "PONG :tmi.twitch.tv\r\n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the line")
	}

	// The server hung up.
	_, err = conn.ReadLine()
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestTCPRejectsUnterminatedFlood(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte("PING :ok\r\n"))
		_, _ = c.Write([]byte(strings.Repeat("x", MaxLineLength+1)))
		time.Sleep(time.Second)
	}()

	conn, err := (&TCPDialer{Address: ln.Addr().String()}).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "PING :ok", line)

	_, err = conn.ReadLine()
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestTCPDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = (&TCPDialer{Address: addr, Timeout: time.Second}).Dial(context.Background())
	require.Error(t, err)

	var ce *ConnectError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, addr, ce.Addr)
	assert.Contains(t, err.Error(), addr)
}

func TestTCPCloseUnblocksRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := (&TCPDialer{Address: ln.Addr().String()}).Dial(context.Background())
	require.NoError(t, err)
	server := <-accepted
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		_, err := conn.ReadLine()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "second close is a no-op")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not return after Close")
	}
}

func TestWebSocketSplitsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_ = ws.WriteMessage(websocket.TextMessage, []byte(":tmi.twitch.tv CAP * ACK :twitch.tv/tags\r\n:tmi.twitch.tv 001 justinfan1 :Welcome\r\n"))
		_ = ws.WriteMessage(websocket.TextMessage, []byte("PING :tmi.twitch.tv"))

		_, data, err := ws.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		// Wait for the client to close.
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := (&WebSocketDialer{URL: url}).Dial(context.Background())
	require.NoError(t, err)

	var lines []string
	for i := 0; i < 3; i++ {
		line, err := conn.ReadLine()
		require.NoError(t, err)
		lines = append(lines, line)
	}
	assert.Equal(t, []string{
		":tmi.twitch.tv CAP * ACK :twitch.tv/tags",
		":tmi.twitch.tv 001 justinfan1 :Welcome",
		"PING :tmi.twitch.tv",
	}, lines)

	require.NoError(t, conn.WriteLine("PONG :tmi.twitch.tv"))
	select {
	case got := <-received:
		assert.Equal(t, "PONG :tmi.twitch.tv\r\n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the line")
	}

	require.NoError(t, conn.Close())
	_, err = conn.ReadLine()
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestWebSocketRejectsOversizedLine(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", MaxLineLength+1)))
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := (&WebSocketDialer{URL: url}).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadLine()
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestWebSocketDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := (&WebSocketDialer{URL: url}).Dial(context.Background())

	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, url, ce.Addr)
}
