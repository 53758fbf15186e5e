// Package twitch keeps a single-channel chat session alive: it dials the
// transport, negotiates capabilities, joins the channel, answers
// keepalives and reconnects with backoff until shut down or rejected.
//
// Lifecycle decisions live in the pure Transition function; Session only
// performs the effects it returns.
package twitch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/john/chattui/internal/backoff"
	"github.com/john/chattui/internal/irc"
	"github.com/john/chattui/internal/logger"
	"github.com/john/chattui/internal/metrics"
	"github.com/john/chattui/internal/transport"
)

const capabilities = "twitch.tv/tags twitch.tv/commands twitch.tv/membership"

// NOTICE msg-ids that mean the channel cannot be joined.
var joinRejections = map[string]bool{
	"msg_channel_suspended": true,
	"msg_banned":            true,
	"msg_room_not_found":    true,
	"tos_ban":               true,
}

var authRejections = []string{
	"Login authentication failed",
	"Improperly formatted auth",
}

// Config configures a Session.
type Config struct {
	Channel string
	// Username and OAuth are optional; without a username the session
	// joins anonymously.
	Username string
	OAuth    string

	CapabilityTimeout time.Duration
	JoinTimeout       time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration

	Backoff backoff.Policy
}

// Handler receives every protocol message that arrives while joined,
// except keepalives and session control commands.
type Handler interface {
	HandleMessage(msg irc.Message)
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics sets the instruments to update.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithStateHook registers fn to be called, on the session goroutine, after
// every state change.
func WithStateHook(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

type timerKind int

const (
	timerNone timerKind = iota
	timerCapability
	timerJoin
	timerBackoff
	timerIdle
	timerPong
)

type readResult struct {
	line string
	err  error
}

// Session is a chat session for one channel. Run it once.
type Session struct {
	cfg     Config
	channel string
	nick    string
	pass    string

	dialer  transport.Dialer
	handler Handler
	log     *slog.Logger
	metrics *metrics.Metrics
	onState func(State)

	parseLog   *rate.Limiter
	suppressed int

	state atomic.Pointer[State]

	// owned by the Run goroutine
	cur       State
	conn      transport.Conn
	connLog   *slog.Logger
	lines     <-chan readResult
	stopRead  chan struct{}
	timer     *time.Timer
	timerKind timerKind
}

// New creates a session. The dialer is used for every connection attempt.
func New(cfg Config, dialer transport.Dialer, handler Handler, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		channel:  "#" + strings.ToLower(strings.TrimPrefix(cfg.Channel, "#")),
		dialer:   dialer,
		handler:  handler,
		log:      slog.New(slog.DiscardHandler),
		parseLog: rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Discard()
	}

	if cfg.Username == "" {
		s.nick = fmt.Sprintf("justinfan%d", 10000+rand.IntN(90000))
	} else {
		s.nick = strings.ToLower(cfg.Username)
		s.pass = cfg.OAuth
		if s.pass != "" && !strings.HasPrefix(s.pass, "oauth:") {
			s.pass = "oauth:" + s.pass
		}
	}

	s.connLog = s.log
	s.state.Store(&State{})
	return s
}

// Nick is the login the session authenticates as.
func (s *Session) Nick() string { return s.nick }

// Channel is the joined channel, with its '#'.
func (s *Session) Channel() string { return s.channel }

// State returns the current state. Safe for concurrent use.
func (s *Session) State() State {
	return *s.state.Load()
}

// Run drives the session until ctx is cancelled or the server rejects the
// session. It returns the fatal error, or ctx.Err() after a shutdown.
func (s *Session) Run(ctx context.Context) error {
	s.timer = time.NewTimer(time.Hour)
	s.timer.Stop()
	defer s.timer.Stop()
	defer s.closeTransport()

	s.log.Info("Starting chat session", slog.String("channel", s.channel), slog.String("nick", s.nick))

	s.dispatch(ctx, Input{Kind: InputStart})
	for s.cur.Phase != PhaseTerminated {
		s.dispatch(ctx, s.wait(ctx))
	}

	if s.cur.Err != nil {
		return s.cur.Err
	}
	return ctx.Err()
}

func (s *Session) wait(ctx context.Context) Input {
	for {
		select {
		case <-ctx.Done():
			return Input{Kind: InputShutdown}
		case r := <-s.lines:
			if r.err != nil {
				return Input{Kind: InputConnectionLost, Err: r.err}
			}
			if in, ok := s.handleLine(r.line); ok {
				return in
			}
		case <-s.timer.C:
			if in, ok := s.timerFired(); ok {
				return in
			}
		}
	}
}

func (s *Session) dispatch(ctx context.Context, in Input) {
	queue := []Input{in}
	for len(queue) > 0 {
		in, queue = queue[0], queue[1:]

		next, effects := Transition(s.cur, in)
		if len(effects) > 0 || next.Phase != s.cur.Phase {
			s.setState(next, in)
		}
		for _, e := range effects {
			if follow, ok := s.perform(ctx, e); ok {
				queue = append(queue, follow)
			}
		}
	}
}

func (s *Session) setState(next State, cause Input) {
	prev := s.cur
	s.cur = next
	s.metrics.SessionPhase.Set(float64(next.Phase))
	stored := next
	s.state.Store(&stored)

	s.connLog.Debug("Session state changed",
		slog.String("from", prev.Phase.String()),
		slog.String("to", next.Phase.String()),
		slog.String("input", cause.Kind.String()),
		slog.Int("attempt", next.Attempt))

	if next.Phase == PhaseTerminated && next.Err != nil {
		s.connLog.Error("Chat session terminated", slog.String("error", next.Err.Error()))
	}

	if s.onState != nil {
		s.onState(next)
	}
}

func (s *Session) perform(ctx context.Context, e Effect) (Input, bool) {
	switch e.Kind {
	case EffectDial:
		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Input{Kind: InputShutdown}, true
			}
			return Input{Kind: InputConnectFailed, Err: err}, true
		}
		s.attach(conn)
		return Input{Kind: InputConnected}, true

	case EffectHandshake:
		lines := []string{"CAP REQ :" + capabilities}
		if s.pass != "" {
			lines = append(lines, "PASS "+s.pass)
		}
		lines = append(lines, "NICK "+s.nick)
		for _, line := range lines {
			if err := s.send(line); err != nil {
				return Input{Kind: InputConnectionLost, Err: err}, true
			}
		}
		s.arm(timerCapability, s.cfg.CapabilityTimeout)

	case EffectJoin:
		if err := s.send("JOIN " + s.channel); err != nil {
			return Input{Kind: InputConnectionLost, Err: err}, true
		}
		s.arm(timerJoin, s.cfg.JoinTimeout)

	case EffectStartKeepalive:
		s.connLog.Info("Joined channel", slog.String("channel", s.channel))
		s.arm(timerIdle, s.cfg.PingInterval)

	case EffectCloseTransport:
		s.disarm()
		s.closeTransport()

	case EffectScheduleBackoff:
		delay := s.cfg.Backoff.Delay(s.cur.Attempt, e.Cause)
		s.metrics.Reconnects.Inc()
		attrs := []any{slog.Int("attempt", s.cur.Attempt), slog.Duration("delay", delay)}
		if e.Cause != nil {
			attrs = append(attrs, slog.String("error", e.Cause.Error()))
		}
		s.connLog.Warn("Connection lost, reconnecting", attrs...)
		s.arm(timerBackoff, delay)
	}
	return Input{}, false
}

func (s *Session) handleLine(line string) (Input, bool) {
	s.metrics.LinesReceived.Inc()
	s.connLog.Log(context.Background(), logger.LevelTrace, "recv", slog.String("line", line))

	if s.timerKind == timerIdle || s.timerKind == timerPong {
		s.arm(timerIdle, s.cfg.PingInterval)
	}

	msg, err := irc.Parse(line)
	if err != nil {
		s.parseFailed(line, err)
		return Input{}, false
	}

	switch msg.Command {
	case "PING":
		if err := s.send(pong(msg.Params)); err != nil {
			return Input{Kind: InputConnectionLost, Err: err}, true
		}
		return Input{}, false

	case "PONG":
		return Input{}, false

	case "RECONNECT":
		s.connLog.Info("Server requested reconnect")
		return Input{Kind: InputReconnectRequested, Err: backoff.ErrReconnectRequested}, true

	case "CAP":
		switch strings.ToUpper(msg.Param(1)) {
		case "ACK":
			return Input{Kind: InputCapabilitiesAcknowledged}, true
		case "NAK":
			s.connLog.Warn("Server refused capabilities", slog.String("caps", msg.Trailing()))
			return Input{Kind: InputCapabilitiesAcknowledged}, true
		}

	case "JOIN":
		if s.cur.Phase == PhaseJoining &&
			strings.EqualFold(msg.Nick(), s.nick) &&
			strings.EqualFold(msg.Param(0), s.channel) {
			return Input{Kind: InputJoinConfirmed}, true
		}

	case "NOTICE":
		if in, ok := s.notice(msg); ok {
			return in, true
		}
	}

	if s.cur.Phase == PhaseJoined {
		s.handler.HandleMessage(msg)
	}
	return Input{}, false
}

func (s *Session) notice(msg irc.Message) (Input, bool) {
	text := msg.Trailing()
	for _, marker := range authRejections {
		if strings.Contains(text, marker) {
			return Input{Kind: InputAuthRejected, Err: fmt.Errorf("%w: %s", ErrAuthRejected, text)}, true
		}
	}

	id := msg.Tags["msg-id"]
	if s.cur.Phase == PhaseJoining && joinRejections[id] {
		return Input{Kind: InputJoinRejected, Err: &JoinRejectedError{
			Channel: s.channel,
			Reason:  id,
			Text:    text,
		}}, true
	}

	if s.cur.Phase != PhaseJoined {
		s.connLog.Info("Server notice", slog.String("msg_id", id), slog.String("text", text))
	}
	return Input{}, false
}

func (s *Session) timerFired() (Input, bool) {
	kind := s.timerKind
	s.timerKind = timerNone

	switch kind {
	case timerCapability:
		return Input{Kind: InputTimeout, Err: ErrCapabilityTimeout}, true
	case timerJoin:
		return Input{Kind: InputTimeout, Err: ErrJoinTimeout}, true
	case timerBackoff:
		return Input{Kind: InputBackoffElapsed}, true
	case timerIdle:
		if err := s.send("PING :tmi.twitch.tv"); err != nil {
			return Input{Kind: InputConnectionLost, Err: err}, true
		}
		s.arm(timerPong, s.cfg.PongTimeout)
	case timerPong:
		return Input{Kind: InputConnectionLost, Err: ErrPongTimeout}, true
	}
	return Input{}, false
}

// pong echoes the PING parameters, the last one as a trailing parameter.
func pong(params []string) string {
	if len(params) == 0 {
		return "PONG"
	}
	last := len(params) - 1
	head := strings.Join(params[:last], " ")
	if head != "" {
		head += " "
	}
	return "PONG " + head + ":" + params[last]
}

func (s *Session) parseFailed(line string, err error) {
	s.metrics.ParseErrors.Inc()
	if !s.parseLog.Allow() {
		s.suppressed++
		return
	}
	s.connLog.Warn("Dropping malformed line",
		slog.String("error", err.Error()),
		slog.String("line", line),
		slog.Int("suppressed", s.suppressed))
	s.suppressed = 0
}

func (s *Session) send(line string) error {
	if s.conn == nil {
		return transport.ErrConnectionLost
	}
	logged := line
	if strings.HasPrefix(line, "PASS ") {
		logged = "PASS ***"
	}
	s.connLog.Log(context.Background(), logger.LevelTrace, "send", slog.String("line", logged))
	return s.conn.WriteLine(line)
}

func (s *Session) arm(kind timerKind, d time.Duration) {
	s.timer.Stop()
	s.timerKind = kind
	s.timer.Reset(d)
}

func (s *Session) disarm() {
	s.timer.Stop()
	s.timerKind = timerNone
}

// attach starts the reader goroutine for a fresh connection.
func (s *Session) attach(conn transport.Conn) {
	s.conn = conn
	s.connLog = s.log.With(slog.String("conn_id", uuid.NewString()))
	s.connLog.Info("Connected to chat server")

	out := make(chan readResult, 64)
	stop := make(chan struct{})
	s.lines = out
	s.stopRead = stop

	go func() {
		for {
			line, err := conn.ReadLine()
			select {
			case out <- readResult{line: line, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

func (s *Session) closeTransport() {
	if s.conn == nil {
		return
	}
	close(s.stopRead)
	if err := s.conn.Close(); err != nil {
		s.connLog.Debug("Closing connection", slog.String("error", err.Error()))
	}
	s.conn = nil
	s.lines = nil
	s.stopRead = nil
	s.connLog = s.log
}
