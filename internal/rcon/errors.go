package rcon

import (
	"errors"
	"fmt"
)

// ErrAuthFailed is returned when the server rejects the shared
// password. It is never retried automatically.
var ErrAuthFailed = errors.New("minecraft server authentication failed")

// ConnectError reports a TCP-level failure while establishing the
// connection.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to the minecraft server: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DecodeError reports a malformed frame: bad size prefix, unknown type
// tag, invalid UTF-8, or missing padding.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode the message received from the minecraft server: %s", e.Reason)
}

// PayloadTooBigError reports an outbound payload exceeding
// MaxClientPayloadSize.
type PayloadTooBigError struct {
	Max  int
	Size int
}

func (e *PayloadTooBigError) Error() string {
	return fmt.Sprintf("a message payload must be less than %d bytes, got: %d", e.Max, e.Size)
}

// InvalidIDError reports an outbound packet with a negative id.
type InvalidIDError struct {
	ID int32
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("expected id to be greater than 0, got: %d", e.ID)
}

// WriteError reports an I/O failure while sending a frame on an
// established session. The connection is no longer trustworthy.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to send a message to the minecraft server: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports an I/O failure while reading a frame on an
// established session. The connection is no longer trustworthy.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read a message from the minecraft server: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// IDMismatchError reports a response whose correlation id does not
// match the just-sent request. Either a protocol bug or cross-talk;
// the connection is discarded rather than resynchronized.
type IDMismatchError struct {
	Want int32
	Got  int32
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("expected sequence id %d from the minecraft server, got: %d", e.Want, e.Got)
}

// InvalidPacketTypeError reports an unexpected frame shape during the
// handshake, a command exchange, or the fragmentation probe.
type InvalidPacketTypeError struct {
	Want string
	Got  string
}

func (e *InvalidPacketTypeError) Error() string {
	return fmt.Sprintf("invalid packet type received from the server, expected %s, got: %s", e.Want, e.Got)
}

// BrokenConnectionError is the façade-level classification for
// Read/Write failures: the cached connection has been torn down and
// the caller may re-issue the command to trigger a fresh
// connect+authenticate.
type BrokenConnectionError struct {
	Err error
}

func (e *BrokenConnectionError) Error() string {
	return fmt.Sprintf("lost minecraft server connection: %v", e.Err)
}

func (e *BrokenConnectionError) Unwrap() error { return e.Err }

// classify maps session errors to the surface the façade exposes:
// I/O failures become BrokenConnectionError, everything else
// (Connect, AuthFailed, protocol errors) passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		we *WriteError
		re *ReadError
	)
	if errors.As(err, &we) || errors.As(err, &re) {
		return &BrokenConnectionError{Err: err}
	}
	return err
}
