package wire

import (
	"bytes"
	"context"
	"testing"
)

// pipeTransport is a simple in-memory Transport: reads come from `in`,
// writes accumulate in `out`. Pass the input bytes to newPipeTransport
// before calling Run, and inspect out.Bytes() after.
type pipeTransport struct {
	in  *bytes.Reader
	out *bytes.Buffer
}

func newPipeTransport(in []byte) *pipeTransport {
	return &pipeTransport{in: bytes.NewReader(in), out: new(bytes.Buffer)}
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.out.Write(b) }

// S4: ping/pong property — an incoming ping with a given nonce must
// produce an outgoing pong with the identical nonce.
func TestClientPingPongProperty(t *testing.T) {
	pingFrame := BuildFrame(Mainnet, CmdPing, mustEncode(t, PingSchema, &Ping{Nonce: 0x1122334455667788}))
	transport := newPipeTransport(pingFrame)
	c := NewClient(transport, Mainnet)

	if err := c.Run(context.Background()); err != nil && err != ErrDisconnected {
		t.Fatalf("unexpected error: %v", err)
	}

	want := BuildFrame(Mainnet, CmdPong, mustEncode(t, PongSchema, &Pong{Nonce: 0x1122334455667788}))
	if !bytes.Equal(transport.out.Bytes(), want) {
		t.Errorf("pong frame = % X, want % X", transport.out.Bytes(), want)
	}

	wantPayload := hexBytes(t, "8877665544332211")
	gotPayload := transport.out.Bytes()[HeaderSize:]
	if !bytes.Equal(gotPayload, wantPayload) {
		t.Errorf("pong payload = % X, want % X", gotPayload, wantPayload)
	}
}

// Handshake property: after Handshake sends version, a peer version in
// reply triggers an automatic verack.
func TestClientHandshakeRepliesVerAckOnPeerVersion(t *testing.T) {
	peerVersion := &Version{
		Version: ProtocolVersion, Services: ServiceNodeNetwork, Timestamp: 1,
		AddrRecv: NetworkAddress{IP: IPv4MappedBytes(1, 2, 3, 4), Port: 8333},
		AddrFrom: NetworkAddress{IP: IPv4MappedBytes(5, 6, 7, 8), Port: 8333},
		Nonce:    99, UserAgent: "/peer/", StartHeight: 0,
	}
	versionFrame := BuildFrame(Mainnet, CmdVersion, mustEncode(t, VersionSchema, peerVersion))
	transport := newPipeTransport(versionFrame)
	c := NewClient(transport, Mainnet)

	zero := NetworkAddress{}
	if err := c.Handshake(zero, zero); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	handshakeOut := transport.out.Bytes()
	hdr, err := DecodeHeader(handshakeOut[:HeaderSize])
	if err != nil {
		t.Fatal(err)
	}
	if CommandString(hdr.Command) != CmdVersion {
		t.Fatalf("expected a version message sent first, got %s", CommandString(hdr.Command))
	}

	if err := c.Run(context.Background()); err != nil && err != ErrDisconnected {
		t.Fatalf("unexpected error: %v", err)
	}

	after := transport.out.Bytes()[len(handshakeOut):]
	if len(after) < HeaderSize {
		t.Fatalf("expected a verack reply, got %d bytes", len(after))
	}
	replyHdr, err := DecodeHeader(after[:HeaderSize])
	if err != nil {
		t.Fatal(err)
	}
	if CommandString(replyHdr.Command) != CmdVerAck {
		t.Fatalf("expected verack reply, got %s", CommandString(replyHdr.Command))
	}
	if replyHdr.Length != 0 {
		t.Fatalf("verack payload must be empty, got length %d", replyHdr.Length)
	}
}

// Custom handlers override the built-ins.
func TestClientHandleOverridesBuiltin(t *testing.T) {
	pingFrame := BuildFrame(Mainnet, CmdPing, mustEncode(t, PingSchema, &Ping{Nonce: 1}))
	transport := newPipeTransport(pingFrame)
	c := NewClient(transport, Mainnet)

	var called bool
	c.Handle(CmdPing, func(c *Client, header *MessageHeader, msg interface{}) error {
		called = true
		return nil
	})

	if err := c.Run(context.Background()); err != nil && err != ErrDisconnected {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("overridden handler was not invoked")
	}
	if transport.out.Len() != 0 {
		t.Fatalf("expected no auto-reply once overridden, got %d bytes", transport.out.Len())
	}
}

func TestClientZeroLengthReadIsDisconnected(t *testing.T) {
	transport := newPipeTransport(nil)
	c := NewClient(transport, Mainnet)
	if err := c.Run(context.Background()); err != ErrDisconnected {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
}

func TestClientOnHeaderHookFiresForEveryFrame(t *testing.T) {
	pingFrame := BuildFrame(Mainnet, CmdPing, mustEncode(t, PingSchema, &Ping{Nonce: 5}))
	transport := newPipeTransport(pingFrame)

	var seen []string
	c := NewClient(transport, Mainnet, WithOnHeader(func(header *MessageHeader, payload []byte, err error) {
		seen = append(seen, CommandString(header.Command))
	}))

	if err := c.Run(context.Background()); err != nil && err != ErrDisconnected {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0] != CmdPing {
		t.Fatalf("expected onHeader to fire once for ping, got %v", seen)
	}
}
