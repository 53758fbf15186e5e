package twitch

import (
	"errors"
	"fmt"
)

var (
	// ErrCapabilityTimeout means the server did not answer CAP REQ in time.
	ErrCapabilityTimeout = errors.New("capability negotiation timed out")
	// ErrJoinTimeout means the server neither confirmed nor rejected JOIN.
	ErrJoinTimeout = errors.New("join timed out")
	// ErrPongTimeout means the connection stayed silent after a keepalive
	// PING.
	ErrPongTimeout = errors.New("no reply to keepalive ping")
	// ErrAuthRejected means the server refused the credentials.
	ErrAuthRejected = errors.New("authentication rejected")
)

// JoinRejectedError reports that the server refused to let the client
// join the channel. Retrying cannot succeed.
type JoinRejectedError struct {
	Channel string
	Reason  string // NOTICE msg-id
	Text    string // NOTICE text shown to users
}

func (e *JoinRejectedError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("join %s rejected: %s (%s)", e.Channel, e.Text, e.Reason)
	}
	return fmt.Sprintf("join %s rejected: %s", e.Channel, e.Reason)
}

// IsFatal reports whether err ends the session instead of triggering a
// reconnect.
func IsFatal(err error) bool {
	var jr *JoinRejectedError
	return errors.As(err, &jr) || errors.Is(err, ErrAuthRejected)
}
