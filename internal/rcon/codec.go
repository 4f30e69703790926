package rcon

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Encode serializes a packet into a wire frame:
//
//	[ i32 size ][ i32 id ][ i32 type ][ payload bytes ][ 0x00 0x00 ]
//
// All integers are little-endian. size counts everything after the
// size field itself. Outbound validation (id >= 0, payload bounded)
// happens here so no hand-built Packet can bypass it.
func Encode(p Packet) ([]byte, error) {
	if p.ID < 0 {
		return nil, &InvalidIDError{ID: p.ID}
	}
	if len(p.Payload) > MaxClientPayloadSize {
		return nil, &PayloadTooBigError{Max: MaxClientPayloadSize, Size: len(p.Payload)}
	}

	size := 4 + 4 + len(p.Payload) + packetPadSize
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Payload)
	// The two trailing pad bytes are already zero.
	return buf, nil
}

// Decode deserializes a frame body (everything after the size prefix)
// into a packet. Only Response and Command tags are decodable: the
// server never sends an Authentication frame.
func Decode(data []byte) (Packet, error) {
	if len(data) < MinPacketSize {
		return Packet{}, &DecodeError{
			Reason: fmt.Sprintf("expected packet length to be at least %d bytes, got: %d", MinPacketSize, len(data)),
		}
	}

	id := int32(binary.LittleEndian.Uint32(data[0:4]))
	rawType := int32(binary.LittleEndian.Uint32(data[4:8]))

	var typ PacketType
	switch rawType {
	case int32(TypeResponse):
		typ = TypeResponse
	case int32(TypeCommand):
		typ = TypeCommand
	default:
		return Packet{}, &DecodeError{
			Reason: fmt.Sprintf("expected message type to be 0 or 2, got: %d", rawType),
		}
	}

	body := data[8:]
	payload := body[:len(body)-packetPadSize]
	pad := body[len(body)-packetPadSize:]

	if pad[0] != 0 || pad[1] != 0 {
		return Packet{}, &DecodeError{Reason: "missing padding at the end of the message"}
	}
	if !utf8.Valid(payload) {
		return Packet{}, &DecodeError{Reason: "failed to convert message body to a UTF-8 string"}
	}

	return Packet{ID: id, Type: typ, Payload: string(payload)}, nil
}

// ReadPacket reads one frame from r in two steps: the 4-byte size
// prefix, validated against [MinPacketSize, MaxPacketSize] before any
// payload is read, then exactly size more bytes handed to Decode.
// The raw frame size is returned alongside the packet because a frame
// of exactly MaxPacketSize signals a fragmented response.
func ReadPacket(r io.Reader) (Packet, int32, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Packet{}, 0, &ReadError{Err: err}
	}

	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < MinPacketSize || size > MaxPacketSize {
		return Packet{}, 0, &DecodeError{
			Reason: fmt.Sprintf("a packet size must be between %d and %d bytes long, server sent: %d",
				MinPacketSize, MaxPacketSize, size),
		}
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, 0, &ReadError{Err: err}
	}

	pkt, err := Decode(body)
	if err != nil {
		return Packet{}, 0, err
	}
	return pkt, size, nil
}

// WritePacket encodes p and writes the full frame to w.
func WritePacket(w io.Writer, p Packet) error {
	frame, err := Encode(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}
