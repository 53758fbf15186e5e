package twitch

import "fmt"

// Phase is the connection lifecycle position of a session.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseNegotiating
	PhaseJoining
	PhaseJoined
	PhaseReconnecting
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the session state. Attempt counts consecutive failed
// connection attempts and is reset on reaching PhaseJoined. Err is the
// cause of the last failure, or the fatal error once terminated.
type State struct {
	Phase   Phase
	Attempt int
	Err     error
}

// InputKind names something that happened to the session.
type InputKind int

const (
	InputStart InputKind = iota
	InputConnected
	InputConnectFailed
	InputCapabilitiesAcknowledged
	InputJoinConfirmed
	InputJoinRejected
	InputAuthRejected
	InputTimeout
	InputConnectionLost
	InputReconnectRequested
	InputBackoffElapsed
	InputShutdown
)

func (k InputKind) String() string {
	switch k {
	case InputStart:
		return "start"
	case InputConnected:
		return "connected"
	case InputConnectFailed:
		return "connect failed"
	case InputCapabilitiesAcknowledged:
		return "capabilities acknowledged"
	case InputJoinConfirmed:
		return "join confirmed"
	case InputJoinRejected:
		return "join rejected"
	case InputAuthRejected:
		return "auth rejected"
	case InputTimeout:
		return "timeout"
	case InputConnectionLost:
		return "connection lost"
	case InputReconnectRequested:
		return "reconnect requested"
	case InputBackoffElapsed:
		return "backoff elapsed"
	case InputShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("input(%d)", int(k))
	}
}

// Input is an event fed to Transition. Err carries the cause for failure
// inputs.
type Input struct {
	Kind InputKind
	Err  error
}

// EffectKind names an action the runner must perform.
type EffectKind int

const (
	// EffectDial opens a new transport connection.
	EffectDial EffectKind = iota
	// EffectHandshake requests capabilities and authenticates.
	EffectHandshake
	// EffectJoin sends JOIN for the configured channel.
	EffectJoin
	// EffectStartKeepalive arms the idle ping timer.
	EffectStartKeepalive
	// EffectCloseTransport releases the current connection.
	EffectCloseTransport
	// EffectScheduleBackoff waits before the next attempt.
	EffectScheduleBackoff
)

// Effect is an action produced by Transition.
type Effect struct {
	Kind EffectKind
	// Cause is set for EffectScheduleBackoff.
	Cause error
}

// connected reports whether a transport is open in phase p.
func connected(p Phase) bool {
	return p == PhaseNegotiating || p == PhaseJoining || p == PhaseJoined
}

// Transition computes the next state for in. It performs no I/O and is
// total: inputs that do not apply to the current phase leave the state
// unchanged and produce no effects. A terminated state never changes.
func Transition(s State, in Input) (State, []Effect) {
	if s.Phase == PhaseTerminated {
		return s, nil
	}

	switch in.Kind {
	case InputShutdown:
		var effects []Effect
		if connected(s.Phase) {
			effects = []Effect{{Kind: EffectCloseTransport}}
		}
		return State{Phase: PhaseTerminated, Attempt: s.Attempt, Err: in.Err}, effects

	case InputStart:
		if s.Phase == PhaseDisconnected {
			return State{Phase: PhaseConnecting, Attempt: s.Attempt}, []Effect{{Kind: EffectDial}}
		}

	case InputConnected:
		if s.Phase == PhaseConnecting {
			return State{Phase: PhaseNegotiating, Attempt: s.Attempt}, []Effect{{Kind: EffectHandshake}}
		}

	case InputConnectFailed:
		if s.Phase == PhaseConnecting {
			return reconnect(s, in.Err, false)
		}

	case InputCapabilitiesAcknowledged:
		if s.Phase == PhaseNegotiating {
			return State{Phase: PhaseJoining, Attempt: s.Attempt}, []Effect{{Kind: EffectJoin}}
		}

	case InputJoinConfirmed:
		if s.Phase == PhaseJoining {
			return State{Phase: PhaseJoined}, []Effect{{Kind: EffectStartKeepalive}}
		}

	case InputJoinRejected, InputAuthRejected:
		if connected(s.Phase) {
			return State{Phase: PhaseTerminated, Attempt: s.Attempt, Err: in.Err},
				[]Effect{{Kind: EffectCloseTransport}}
		}

	case InputTimeout, InputConnectionLost, InputReconnectRequested:
		if connected(s.Phase) {
			return reconnect(s, in.Err, true)
		}
		if s.Phase == PhaseConnecting && in.Kind == InputConnectionLost {
			return reconnect(s, in.Err, false)
		}

	case InputBackoffElapsed:
		if s.Phase == PhaseReconnecting {
			return State{Phase: PhaseConnecting, Attempt: s.Attempt, Err: s.Err}, []Effect{{Kind: EffectDial}}
		}
	}

	return s, nil
}

func reconnect(s State, cause error, open bool) (State, []Effect) {
	next := State{Phase: PhaseReconnecting, Attempt: s.Attempt + 1, Err: cause}
	effects := make([]Effect, 0, 2)
	if open {
		effects = append(effects, Effect{Kind: EffectCloseTransport})
	}
	effects = append(effects, Effect{Kind: EffectScheduleBackoff, Cause: cause})
	return next, effects
}
