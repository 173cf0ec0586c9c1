package wire

import (
	"bytes"
	"fmt"
)

// FrameResult is the outcome of one Extract call. Complete is false when
// the buffer does not yet hold a full frame (caller should Ingest more
// and try again); it is true once header and payload have both been
// consumed from the buffer, whether or not the frame was well-formed.
type FrameResult struct {
	Complete bool
	Header   *MessageHeader
	Payload  []byte
	// Message is the decoded payload, or nil if Header.Command is not in
	// the registry (UNKNOWN_COMMAND — not an error, just no message).
	Message interface{}
	// Err is non-nil for BAD_CHECKSUM, or when a payload with a good
	// checksum fails to decode under its command's schema (e.g.
	// ErrTruncated). Either way the frame is still consumed from the
	// buffer and Message is nil.
	Err error
}

// StreamFramer is a buffered byte accumulator that extracts complete
// (header, payload) frames from an arbitrarily chunked stream. It owns a
// single growable buffer with a logical read cursor, compacting after
// each extraction rather than replacing the buffer object outright.
// Not safe for concurrent use, and not meant to be shared across
// connections — one framer per peer task.
type StreamFramer struct {
	buf        []byte
	magics     map[uint32]bool
	maxPayload uint32
}

// NewStreamFramer builds a framer that only recognizes the given
// networks' magics and rejects frames whose declared length exceeds
// maxPayload (0 selects DefaultMaxPayload).
func NewStreamFramer(magics []Network, maxPayload uint32) *StreamFramer {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	m := make(map[uint32]bool, len(magics))
	for _, n := range magics {
		m[uint32(n)] = true
	}
	return &StreamFramer{magics: m, maxPayload: maxPayload}
}

// Ingest appends freshly read bytes to the framer's buffer.
func (f *StreamFramer) Ingest(b []byte) {
	f.buf = append(f.buf, b...)
}

// Extract attempts to pull one complete frame out of the buffer. It never
// blocks on I/O — it only consumes what is already buffered.
//
// The returned error is non-nil only for the two connection-fatal kinds,
// ErrUnknownMagic and ErrOversize; BAD_CHECKSUM is reported via
// FrameResult.Err without a function-level error, since the connection
// continues.
func (f *StreamFramer) Extract() (*FrameResult, error) {
	if len(f.buf) < HeaderSize {
		return &FrameResult{}, nil
	}

	header, err := DecodeHeader(f.buf[:HeaderSize])
	if err != nil {
		// Unreachable in practice: len(f.buf) >= HeaderSize was just
		// checked, and DecodeHeader only fails on short input.
		return nil, err
	}

	if !f.magics[header.Magic] {
		return nil, fmt.Errorf("%w: 0x%08x", ErrUnknownMagic, header.Magic)
	}
	if header.Length > f.maxPayload {
		return nil, fmt.Errorf("%w: %d bytes (cap %d)", ErrOversize, header.Length, f.maxPayload)
	}

	need := HeaderSize + int(header.Length)
	if len(f.buf) < need {
		// Header known, payload still pending; the buffer must still
		// hold the header bytes for the next call, so nothing is
		// consumed here.
		return &FrameResult{Header: header}, nil
	}

	payload := make([]byte, header.Length)
	copy(payload, f.buf[HeaderSize:need])

	// Compact: keep only the bytes after this frame.
	remaining := len(f.buf) - need
	copy(f.buf, f.buf[need:])
	f.buf = f.buf[:remaining]

	result := &FrameResult{Complete: true, Header: header, Payload: payload}

	if CalcChecksum(payload) != header.Checksum {
		result.Err = ErrBadChecksum
		return result, nil
	}

	if schema, ok := SchemaFor(CommandString(header.Command)); ok {
		msg := schema.New()
		if err := schema.Decode(bytes.NewReader(payload), msg); err != nil {
			result.Err = err
			return result, nil
		}
		result.Message = msg
	}

	return result, nil
}
