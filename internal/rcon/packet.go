// Package rcon implements the Minecraft remote-console protocol:
// length-prefixed little-endian binary frames over a single TCP
// connection, a shared-password handshake, and reassembly of responses
// the server splits across multiple frames.
package rcon

// PacketType is the 32-bit type tag carried by every frame.
type PacketType int32

// Wire type values. The server overloads two of them: the
// authentication acknowledgement arrives as a Command-type frame, and
// the client's fragmentation probe is sent as an empty Response-type
// frame.
const (
	TypeResponse       PacketType = 0
	TypeCommand        PacketType = 2
	TypeAuthentication PacketType = 3
)

// String returns the lowercase protocol name of the type tag.
func (t PacketType) String() string {
	switch t {
	case TypeResponse:
		return "response"
	case TypeCommand:
		return "command"
	case TypeAuthentication:
		return "authentication"
	default:
		return "unknown"
	}
}

// Frame size limits. The size prefix counts everything after itself:
// id (4) + type (4) + payload + pad (2).
const (
	MinPacketSize = 10
	MaxPacketSize = 4106
	packetPadSize = 2

	// MaxClientPayloadSize bounds outbound payloads, reserving room for
	// framing inside the maximum frame.
	MaxClientPayloadSize = 1446
)

// Packet is the wire unit: a correlation id, a type tag, and a text
// payload.
type Packet struct {
	ID      int32
	Type    PacketType
	Payload string
}

func newPacket(id int32, typ PacketType, payload string) (Packet, error) {
	if id < 0 {
		return Packet{}, &InvalidIDError{ID: id}
	}
	if len(payload) > MaxClientPayloadSize {
		return Packet{}, &PayloadTooBigError{Max: MaxClientPayloadSize, Size: len(payload)}
	}
	return Packet{ID: id, Type: typ, Payload: payload}, nil
}

// authenticationPacket builds the handshake frame. The protocol
// reserves id 0 for this exchange.
func authenticationPacket(id int32, password string) (Packet, error) {
	return newPacket(id, TypeAuthentication, password)
}

func commandPacket(id int32, payload string) (Packet, error) {
	return newPacket(id, TypeCommand, payload)
}

// checkPacket builds the empty Response-type probe used to detect the
// end of a fragmented response.
func checkPacket(id int32) (Packet, error) {
	return newPacket(id, TypeResponse, "")
}
