package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// Hash256 is a 256-bit hash field. On the wire it is 32 raw bytes; its
// logical value is a little-endian 256-bit integer (eight u32 LE limbs,
// low to high), which is mathematically equivalent to a byte-for-byte
// copy, so it is represented here as a plain fixed-size array rather than
// reconstructed limb by limb.
type Hash256 [32]byte

// Codec is a pure, stateless field encoder/decoder. A Codec instance holds
// no value of its own — the value being encoded or decoded is always
// passed in as a reflect.Value, eliminating the aliasing hazard of a
// mutable field object shared across messages.
type Codec interface {
	Encode(buf *bytes.Buffer, field reflect.Value) error
	Decode(r *bytes.Reader, field reflect.Value) error
}

// structAwareCodec is implemented by codecs that need more than their own
// field's value — e.g. BlockLocator, whose element count lives in a
// sibling field rather than being self-describing on the wire. The
// serializer engine special-cases these.
type structAwareCodec interface {
	EncodeStruct(buf *bytes.Buffer, v reflect.Value) error
	DecodeStruct(r *bytes.Reader, v reflect.Value) error
}

// --- fixed-width integers ---

type uint16LECodec struct{}
type uint16BECodec struct{}
type uint32LECodec struct{}
type int32LECodec struct{}
type uint64LECodec struct{}
type int64LECodec struct{}

var (
	Uint16LE Codec = uint16LECodec{}
	Uint16BE Codec = uint16BECodec{}
	Uint32LE Codec = uint32LECodec{}
	Int32LE  Codec = int32LECodec{}
	Uint64LE Codec = uint64LECodec{}
	Int64LE  Codec = int64LECodec{}
)

func (uint16LECodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	return binary.Write(buf, binary.LittleEndian, uint16(v.Uint()))
}
func (uint16LECodec) Decode(r *bytes.Reader, v reflect.Value) error {
	var x uint16
	if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.SetUint(uint64(x))
	return nil
}

func (uint16BECodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	return binary.Write(buf, binary.BigEndian, uint16(v.Uint()))
}
func (uint16BECodec) Decode(r *bytes.Reader, v reflect.Value) error {
	var x uint16
	if err := binary.Read(r, binary.BigEndian, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.SetUint(uint64(x))
	return nil
}

func (uint32LECodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	return binary.Write(buf, binary.LittleEndian, uint32(v.Uint()))
}
func (uint32LECodec) Decode(r *bytes.Reader, v reflect.Value) error {
	var x uint32
	if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.SetUint(uint64(x))
	return nil
}

func (int32LECodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	return binary.Write(buf, binary.LittleEndian, int32(v.Int()))
}
func (int32LECodec) Decode(r *bytes.Reader, v reflect.Value) error {
	var x int32
	if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.SetInt(int64(x))
	return nil
}

func (uint64LECodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	return binary.Write(buf, binary.LittleEndian, v.Uint())
}
func (uint64LECodec) Decode(r *bytes.Reader, v reflect.Value) error {
	var x uint64
	if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.SetUint(x)
	return nil
}

func (int64LECodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	return binary.Write(buf, binary.LittleEndian, v.Int())
}
func (int64LECodec) Decode(r *bytes.Reader, v reflect.Value) error {
	var x int64
	if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.SetInt(x)
	return nil
}

// --- FixedString(n) ---

type fixedStringCodec struct{ n int }

// FixedString encodes a string as exactly n bytes: truncated (if needed)
// then zero-padded to n on encode, and trimmed at the first 0x00 on
// decode. The source this is grounded on hard-codes the pad length to 12
// regardless of the field's own configured length; that is treated as a
// bug here, not reproduced — this codec always pads to its own n.
func FixedString(n int) Codec { return fixedStringCodec{n} }

func (c fixedStringCodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	s := v.String()
	raw := make([]byte, c.n)
	copy(raw, s) // copy truncates to len(raw) if s is longer
	buf.Write(raw)
	return nil
}

func (c fixedStringCodec) Decode(r *bytes.Reader, v reflect.Value) error {
	raw := make([]byte, c.n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if i := bytes.IndexByte(raw, 0x00); i >= 0 {
		raw = raw[:i]
	}
	v.SetString(string(raw))
	return nil
}

// --- VarInt (field type uint64) ---

type varIntCodec struct{}

var VarInt Codec = varIntCodec{}

func writeVarInt(buf *bytes.Buffer, value uint64) {
	switch {
	case value < 0xfd:
		buf.WriteByte(byte(value))
	case value <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(value))
	case value <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(value))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, value)
	}
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	switch first {
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return v, nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return uint64(v), nil
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return uint64(v), nil
	default:
		return uint64(first), nil
	}
}

func (varIntCodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	writeVarInt(buf, v.Uint())
	return nil
}
func (varIntCodec) Decode(r *bytes.Reader, v reflect.Value) error {
	n, err := readVarInt(r)
	if err != nil {
		return err
	}
	v.SetUint(n)
	return nil
}

// --- VarStr (field type string) ---

type varStrCodec struct{}

var VarStr Codec = varStrCodec{}

func (varStrCodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	s := v.String()
	writeVarInt(buf, uint64(len(s)))
	buf.WriteString(s)
	return nil
}

func (varStrCodec) Decode(r *bytes.Reader, v reflect.Value) error {
	n, err := readVarInt(r)
	if err != nil {
		return err
	}
	raw := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
	}
	v.SetString(string(raw))
	return nil
}

// --- Hash256 (field type Hash256, 32 raw bytes) ---

type hash256Codec struct{}

var HashCodec Codec = hash256Codec{}

func (hash256Codec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	h := v.Interface().(Hash256)
	buf.Write(h[:])
	return nil
}
func (hash256Codec) Decode(r *bytes.Reader, v reflect.Value) error {
	var h Hash256
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	v.Set(reflect.ValueOf(h))
	return nil
}

// --- raw fixed-length byte array, e.g. the 16-byte IPv4-mapped IPv6 address ---

type rawBytesCodec struct{ n int }

// RawBytes encodes a fixed-size [n]byte array verbatim.
func RawBytes(n int) Codec { return rawBytesCodec{n} }

func (c rawBytesCodec) Encode(buf *bytes.Buffer, v reflect.Value) error {
	if v.Len() != c.n {
		return fmt.Errorf("wire: raw bytes field has length %d, want %d", v.Len(), c.n)
	}
	raw := make([]byte, c.n)
	reflect.Copy(reflect.ValueOf(raw), v)
	buf.Write(raw)
	return nil
}
func (c rawBytesCodec) Decode(r *bytes.Reader, v reflect.Value) error {
	raw := make([]byte, c.n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	reflect.Copy(v, reflect.ValueOf(raw))
	return nil
}

// IPv4MappedBytes builds the 16-byte IPv6-mapped-IPv4 representation: the
// 12-byte prefix 00×10 FF×2 followed by the 4 IPv4 octets.
func IPv4MappedBytes(a, b, c, d byte) [16]byte {
	var out [16]byte
	out[10] = 0xff
	out[11] = 0xff
	out[12] = a
	out[13] = b
	out[14] = c
	out[15] = d
	return out
}
