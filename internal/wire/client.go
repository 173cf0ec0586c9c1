package wire

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Transport abstracts the byte stream a Client drives. The core never
// opens sockets; callers supply a net.Conn, a TLS conn, or a mock pipe —
// anything satisfying io.Reader/io.Writer. Read must return empty bytes
// (n==0, err==nil or io.EOF) on disconnection, never block forever on a
// live connection with no data queued.
type Transport interface {
	io.Reader
	io.Writer
}

// HandlerFunc processes one decoded message. msg is nil when the command
// was not in the registry (UNKNOWN_COMMAND); header is always present.
type HandlerFunc func(c *Client, header *MessageHeader, msg interface{}) error

// OnHeaderFunc is invoked for every complete frame before dispatch,
// including frames that failed their checksum — useful for tracing and
// checksum diagnostics.
type OnHeaderFunc func(header *MessageHeader, payload []byte, err error)

// Client drives the receive loop for one peer connection: handshake,
// ping/pong keep-alive, and dispatch of decoded messages to
// caller-registered handlers by command name. Not thread-safe and not
// intended to be shared between goroutines — one Client per connection,
// matching the framer it wraps.
type Client struct {
	transport Transport
	framer    *StreamFramer
	network   Network
	handlers  map[string]HandlerFunc
	onHeader  OnHeaderFunc
	log       zerolog.Logger

	userAgent       string
	protocolVersion int32
	startHeight     int32
	readBufSize     int
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger attaches a zerolog.Logger the client may use for diagnostic
// tracing. The core never requires a logger; without one, log calls are
// simply skipped (zerolog's zero value is a no-op logger).
func WithLogger(log zerolog.Logger) Option { return func(c *Client) { c.log = log } }

// WithOnHeader installs the pre-decode hook run for every complete frame.
func WithOnHeader(fn OnHeaderFunc) Option { return func(c *Client) { c.onHeader = fn } }

// WithUserAgent sets the VarStr advertised in the handshake's Version
// message. The core treats it as an opaque string.
func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

// WithMaxPayload overrides the framer's OVERSIZE cap (default
// DefaultMaxPayload).
func WithMaxPayload(n uint32) Option {
	return func(c *Client) { c.framer = NewStreamFramer([]Network{c.network}, n) }
}

// WithReadBufferSize overrides the per-Read chunk size (default 8 KiB,
// matching the convention of reading in modest fixed-size chunks rather
// than however much TCP happens to have buffered).
func WithReadBufferSize(n int) Option { return func(c *Client) { c.readBufSize = n } }

// NewClient builds a Client for one connection already established on
// transport. It registers the built-in handshake-completion and
// keep-alive handlers (version -> verack, ping -> pong); callers add or
// override handlers with Handle.
func NewClient(transport Transport, network Network, opts ...Option) *Client {
	c := &Client{
		transport:       transport,
		network:         network,
		handlers:        make(map[string]HandlerFunc),
		userAgent:       "/btcpeer:0.1.0/",
		protocolVersion: ProtocolVersion,
		readBufSize:     8192,
	}
	c.framer = NewStreamFramer([]Network{network}, DefaultMaxPayload)
	for _, opt := range opts {
		opt(c)
	}

	c.handlers[CmdVersion] = func(c *Client, _ *MessageHeader, _ interface{}) error {
		return c.Send(CmdVerAck, &VerAck{})
	}
	c.handlers[CmdPing] = func(c *Client, _ *MessageHeader, msg interface{}) error {
		ping, ok := msg.(*Ping)
		if !ok {
			return nil
		}
		return c.Send(CmdPong, &Pong{Nonce: ping.Nonce})
	}

	return c
}

// Handle registers (or overrides) the handler invoked when a message of
// the given command is dispatched. Registering over "version" or "ping"
// replaces the built-in auto-reply.
func (c *Client) Handle(command string, fn HandlerFunc) {
	c.handlers[command] = fn
}

// Send encodes obj with the schema registered for command and writes the
// header and payload to the transport as one contiguous write, so no
// other send on this connection can interleave with it.
func (c *Client) Send(command string, obj interface{}) error {
	schema, ok := SchemaFor(command)
	if !ok {
		return fmt.Errorf("wire: no schema registered for command %q", command)
	}
	payload, err := schema.Encode(obj)
	if err != nil {
		return fmt.Errorf("wire: encoding %s: %w", command, err)
	}
	frame := BuildFrame(c.network, command, payload)
	if _, err := c.transport.Write(frame); err != nil {
		return err
	}
	return nil
}

// Handshake sends this client's Version message and returns immediately;
// it does not wait for the peer's reply. The built-in version handler
// replies with VerAck once the peer's own Version arrives through the
// normal receive loop.
func (c *Client) Handshake(addrRecv, addrFrom NetworkAddress) error {
	var nonce uint64
	if err := binary.Read(rand.Reader, binary.LittleEndian, &nonce); err != nil {
		return fmt.Errorf("wire: generating handshake nonce: %w", err)
	}
	v := &Version{
		Version:     c.protocolVersion,
		Services:    ServiceNodeNetwork,
		Timestamp:   time.Now().Unix(),
		AddrRecv:    addrRecv,
		AddrFrom:    addrFrom,
		Nonce:       nonce,
		UserAgent:   c.userAgent,
		StartHeight: c.startHeight,
	}
	return c.Send(CmdVersion, v)
}

// Run alternates bounded reads from the transport with repeated Extract
// calls until ctx is done, the transport disconnects, or a fatal framing
// error occurs (UNKNOWN_MAGIC, OVERSIZE). Frames with an error
// (BAD_CHECKSUM or a payload decode failure) are logged at debug level
// (if a logger is attached) and skipped; UNKNOWN_COMMAND frames are
// dispatched only if a handler is registered for that command, and are
// not logged. None of these terminate the loop.
func (c *Client) Run(ctx context.Context) error {
	buf := make([]byte, c.readBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := c.transport.Read(buf)
		if n == 0 && err == nil {
			return ErrDisconnected
		}
		if n > 0 {
			c.framer.Ingest(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return ErrDisconnected
			}
			return err
		}

		for {
			result, err := c.framer.Extract()
			if err != nil {
				return err
			}
			if !result.Complete {
				break
			}
			if c.onHeader != nil {
				c.onHeader(result.Header, result.Payload, result.Err)
			}
			if result.Err != nil {
				c.log.Debug().Err(result.Err).Str("command", CommandString(result.Header.Command)).Msg("frame error")
				continue
			}
			command := CommandString(result.Header.Command)
			handler, ok := c.handlers[command]
			if !ok {
				continue
			}
			if err := handler(c, result.Header, result.Message); err != nil {
				return err
			}
		}
	}
}
