package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// MessageHeader is the fixed 24-byte envelope that precedes every
// payload: magic | command (12 bytes, NUL-padded) | length | checksum.
// Its size is the fixed HeaderSize constant (24), and EncodeHeader and
// DecodeHeader use fixed byte offsets; the header is not described by a
// field schema, so its size is not derived from codec widths.
type MessageHeader struct {
	Magic    uint32
	Command  [12]byte
	Length   uint32
	Checksum uint32
}

// CommandBytes NUL-pads (or truncates) a command string to exactly 12
// bytes for the wire.
func CommandBytes(command string) [12]byte {
	var out [12]byte
	copy(out[:], command)
	return out
}

// CommandString trims a 12-byte command field at its first NUL.
func CommandString(cmd [12]byte) string {
	n := len(cmd)
	for i, b := range cmd {
		if b == 0x00 {
			n = i
			break
		}
	}
	return string(cmd[:n])
}

// CalcChecksum returns the low 4 bytes of double-SHA-256(payload),
// interpreted as a little-endian u32.
func CalcChecksum(payload []byte) uint32 {
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	return binary.LittleEndian.Uint32(h2[:4])
}

// EncodeHeader serializes a MessageHeader to its 24-byte wire form.
func EncodeHeader(h *MessageHeader) []byte {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Magic)
	copy(out[4:16], h.Command[:])
	binary.LittleEndian.PutUint32(out[16:20], h.Length)
	binary.LittleEndian.PutUint32(out[20:24], h.Checksum)
	return out
}

// DecodeHeader parses exactly HeaderSize bytes into a MessageHeader.
func DecodeHeader(raw []byte) (*MessageHeader, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, HeaderSize, len(raw))
	}
	h := &MessageHeader{
		Magic:    binary.LittleEndian.Uint32(raw[0:4]),
		Length:   binary.LittleEndian.Uint32(raw[16:20]),
		Checksum: binary.LittleEndian.Uint32(raw[20:24]),
	}
	copy(h.Command[:], raw[4:16])
	return h, nil
}

// BuildFrame serializes a full message: header followed by payload, ready
// for one atomic transport write.
func BuildFrame(magic Network, command string, payload []byte) []byte {
	h := &MessageHeader{
		Magic:    uint32(magic),
		Command:  CommandBytes(command),
		Length:   uint32(len(payload)),
		Checksum: CalcChecksum(payload),
	}
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, EncodeHeader(h)...)
	frame = append(frame, payload...)
	return frame
}
