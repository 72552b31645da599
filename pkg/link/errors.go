package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates the link is not synchronized.
	ErrNotReady = errors.New("link: not ready")
	// ErrNoReply indicates the peer replied a later command, so earlier
	// commands are considered lost.
	ErrNoReply = errors.New("link: no reply")
	// ErrMalformed indicates a packet doesn't carry the expected data.
	ErrMalformed = errors.New("link: malformed packet")
)

// Reasons carried by error replies.
const (
	ReasonUnknown byte = iota
	ReasonBusy
	ReasonInvalid
	ReasonUnsupported
)

var reasonNames = map[byte]string{
	ReasonUnknown:     "unknown",
	ReasonBusy:        "busy",
	ReasonInvalid:     "invalid",
	ReasonUnsupported: "unsupported",
}

// CommandError is an error reply.
type CommandError struct {
	Code   byte
	Reason byte
}

// Error implements error.
func (e *CommandError) Error() string {
	reason, ok := reasonNames[e.Reason]
	if !ok {
		reason = fmt.Sprintf("reason %d", e.Reason)
	}
	return fmt.Sprintf("link: command 0x%02x failed: %s", e.Code, reason)
}
