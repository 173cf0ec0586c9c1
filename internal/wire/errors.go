package wire

import "errors"

// Error kinds raised by the codec, framer and client. Decode-level errors
// are surfaced to callers as values (often wrapped with %w for context),
// never panics.
var (
	// ErrTruncated means a decode ran past the bytes available. Not
	// recoverable for the current frame.
	ErrTruncated = errors.New("wire: truncated")

	// ErrBadChecksum means the header parsed and the payload length was
	// satisfied, but double-SHA-256 of the payload disagrees with the
	// header's checksum. Non-fatal: the frame is discarded, the
	// connection continues.
	ErrBadChecksum = errors.New("wire: checksum mismatch")

	// ErrUnknownMagic means the header's magic does not match any
	// network the framer was configured to recognize. Fatal: the stream
	// is unlikely to resynchronize.
	ErrUnknownMagic = errors.New("wire: unknown magic")

	// ErrOversize means header.Length exceeds the framer's configured
	// cap. Fatal for the connection.
	ErrOversize = errors.New("wire: oversize frame")

	// ErrDisconnected means the transport returned a zero-length read.
	ErrDisconnected = errors.New("wire: disconnected")
)
