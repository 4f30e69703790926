package rcon

import (
	"fmt"
	"math"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/craftctl-project/craftctl/internal/util"
)

// endOfFragmentsMarker is the payload the vanilla server returns for
// the intentionally-unrecognized fragmentation probe. The protocol has
// no structural end-of-stream flag, so this exact string is the only
// completion signal; porting against a different server implementation
// would need to revisit it.
const endOfFragmentsMarker = "Unknown request 0"

// Conn is a live TCP connection that has not yet authenticated. Its
// only operation is Authenticate, which consumes it: command execution
// exists only on Session, so a command can never be sent before the
// handshake has succeeded.
type Conn struct {
	sock      net.Conn
	ioTimeout time.Duration
	logger    zerolog.Logger
}

// Dial opens a TCP connection to the server. dialTimeout bounds the
// connect; ioTimeout, if non-zero, bounds every subsequent read and
// write on the session (the protocol itself has no timeouts — a
// stalled server otherwise stalls the caller indefinitely).
func Dial(addr string, dialTimeout, ioTimeout time.Duration) (*Conn, error) {
	sock, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	return newConn(sock, ioTimeout), nil
}

// NewConn wraps an already-established connection. Used by tests and
// callers that manage dialing themselves.
func NewConn(sock net.Conn) *Conn {
	return newConn(sock, 0)
}

func newConn(sock net.Conn, ioTimeout time.Duration) *Conn {
	return &Conn{
		sock:      sock,
		ioTimeout: ioTimeout,
		logger:    util.ComponentLogger("rcon").With().Str("remote", sock.RemoteAddr().String()).Logger(),
	}
}

// Authenticate performs the shared-password handshake and promotes the
// connection to a Session. The acknowledgement is framed as a
// Command-type packet: id -1 means the password was rejected, id 0
// means success. On any failure the socket is closed — the Conn is
// consumed either way.
func (c *Conn) Authenticate(password string) (*Session, error) {
	request, err := authenticationPacket(0, password)
	if err != nil {
		c.sock.Close()
		return nil, err
	}

	if err := c.write(request); err != nil {
		c.sock.Close()
		return nil, err
	}

	ack, _, err := c.read()
	if err != nil {
		c.sock.Close()
		return nil, err
	}

	if ack.Type != TypeCommand {
		c.sock.Close()
		return nil, &InvalidPacketTypeError{Want: TypeCommand.String(), Got: ack.Type.String()}
	}

	switch ack.ID {
	case -1:
		c.sock.Close()
		return nil, ErrAuthFailed
	case 0:
		c.logger.Debug().Msg("authenticated")
		return &Session{
			sock:      c.sock,
			ioTimeout: c.ioTimeout,
			logger:    c.logger,
		}, nil
	default:
		c.sock.Close()
		return nil, &IDMismatchError{Want: 0, Got: ack.ID}
	}
}

func (c *Conn) write(p Packet) error {
	if c.ioTimeout > 0 {
		c.sock.SetWriteDeadline(time.Now().Add(c.ioTimeout))
	}
	return WritePacket(c.sock, p)
}

func (c *Conn) read() (Packet, int32, error) {
	if c.ioTimeout > 0 {
		c.sock.SetReadDeadline(time.Now().Add(c.ioTimeout))
	}
	return ReadPacket(c.sock)
}

// Session is an authenticated connection. It owns the sequence counter
// used to correlate every command with its response. Sessions are not
// safe for concurrent use; the Manager serializes access.
type Session struct {
	sock      net.Conn
	id        int32
	ioTimeout time.Duration
	logger    zerolog.Logger
}

// Command sends one command and returns the full text response,
// transparently reassembling responses the server fragments across
// multiple frames. Any returned error means the session must be
// discarded: a response may still be in flight and the sequence state
// is unknown.
func (s *Session) Command(data string) (string, error) {
	id := s.nextID()

	request, err := commandPacket(id, data)
	if err != nil {
		return "", err
	}
	if err := s.write(request); err != nil {
		return "", err
	}

	response, size, err := s.read()
	if err != nil {
		return "", err
	}

	if response.ID != id {
		return "", &IDMismatchError{Want: id, Got: response.ID}
	}
	if response.Type != TypeResponse {
		return "", &InvalidPacketTypeError{Want: TypeResponse.String(), Got: response.Type.String()}
	}

	// A frame of exactly the maximum size means the payload may have
	// been truncated mid-response; drain the continuation frames.
	if size == MaxPacketSize {
		return s.readFragmented(response.Payload, s.nextID(), id)
	}
	return response.Payload, nil
}

// readFragmented collects continuation frames for the command id until
// the probe's sentinel response arrives. The probe is an empty
// Response-type packet the server does not recognize; its error reply
// (endOfFragmentsMarker) can only be generated after every pending
// continuation frame has been flushed.
func (s *Session) readFragmented(first string, probeID, commandID int32) (string, error) {
	probe, err := checkPacket(probeID)
	if err != nil {
		return "", err
	}
	if err := s.write(probe); err != nil {
		return "", err
	}

	s.logger.Debug().Int32("command_id", commandID).Int32("probe_id", probeID).Msg("reassembling fragmented response")

	result := first
	for {
		frame, _, err := s.read()
		if err != nil {
			return "", err
		}

		switch frame.ID {
		case commandID:
			result += frame.Payload
		case probeID:
			if frame.Payload == endOfFragmentsMarker {
				return result, nil
			}
			return "", &InvalidPacketTypeError{
				Want: fmt.Sprintf("%s %q", TypeResponse, endOfFragmentsMarker),
				Got:  fmt.Sprintf("%s %q", frame.Type, frame.Payload),
			}
		default:
			return "", &IDMismatchError{Want: probeID, Got: frame.ID}
		}
	}
}

// nextID advances the sequence counter. It wraps from i32 max back to
// 1, never reusing 0, which is reserved for the authentication
// exchange.
func (s *Session) nextID() int32 {
	if s.id == math.MaxInt32 {
		s.id = 1
	} else {
		s.id++
	}
	return s.id
}

// Disconnect closes the session intentionally, half-closing the write
// side first so the server observes a clean EOF.
func (s *Session) Disconnect() error {
	if tcp, ok := s.sock.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}
	return s.sock.Close()
}

// Close tears the session down after a failure. Best-effort: a
// secondary error while closing a known-broken connection is not
// actionable and must not mask the primary one.
func (s *Session) Close() {
	_ = s.sock.Close()
}

func (s *Session) write(p Packet) error {
	if s.ioTimeout > 0 {
		s.sock.SetWriteDeadline(time.Now().Add(s.ioTimeout))
	}
	return WritePacket(s.sock, p)
}

func (s *Session) read() (Packet, int32, error) {
	if s.ioTimeout > 0 {
		s.sock.SetReadDeadline(time.Now().Add(s.ioTimeout))
	}
	return ReadPacket(s.sock)
}
