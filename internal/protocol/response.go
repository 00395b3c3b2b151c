package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by transports and the handshake.
var (
	// ErrProtocolViolation is returned when a peer sends a message that is
	// not allowed at the current point of the conversation.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrDisconnected is returned once the peer has gone away.
	ErrDisconnected = errors.New("channel disconnected")
	// ErrUnexpectedResponse is returned when an RPC reply has the wrong type.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Response is the closed set of replies a server sends.
type Response interface {
	isResponse()
}

// WindowSizes answers GetWindowSizes. Zero values mean no window exists.
type WindowSizes struct {
	Width, Height uint32
}

// Connect carries the server's inbound address during bootstrap.
type Connect struct {
	Address string
}

// PatternRegistered answers a pattern registration with the new index.
type PatternRegistered struct {
	Index int
}

// Failure answers an RPC that could not be honored.
type Failure struct {
	Message string
}

func (WindowSizes) isResponse()       {}
func (Connect) isResponse()           {}
func (PatternRegistered) isResponse() {}
func (Failure) isResponse()           {}

// RemoteError is the client-side form of a Failure response.
type RemoteError struct {
	Request Kind
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s rejected by server: %s", e.Request, e.Message)
}
