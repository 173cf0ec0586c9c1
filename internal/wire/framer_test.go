package wire

import (
	"testing"
)

func mainnetFramer() *StreamFramer {
	return NewStreamFramer([]Network{Mainnet}, DefaultMaxPayload)
}

// S6: chunked delivery — split a version message into 1-byte chunks.
func TestFramingChunkedDelivery(t *testing.T) {
	v := &Version{
		Version: ProtocolVersion, Services: ServiceNodeNetwork, Timestamp: 1,
		AddrRecv:  NetworkAddress{IP: IPv4MappedBytes(1, 2, 3, 4), Port: 8333},
		AddrFrom:  NetworkAddress{IP: IPv4MappedBytes(5, 6, 7, 8), Port: 8333},
		Nonce:     42, UserAgent: "/test/", StartHeight: 0,
	}
	payload, err := VersionSchema.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	frame := BuildFrame(Mainnet, CmdVersion, payload)

	f := mainnetFramer()
	var seen int
	for i := 0; i < len(frame); i++ {
		f.Ingest(frame[i : i+1])
		result, err := f.Extract()
		if err != nil {
			t.Fatalf("unexpected fatal error at byte %d: %v", i, err)
		}
		if result.Complete {
			seen++
			if i != len(frame)-1 {
				t.Fatalf("frame completed early, at byte %d of %d", i, len(frame))
			}
			vv, ok := result.Message.(*Version)
			if !ok {
				t.Fatalf("expected *Version, got %T", result.Message)
			}
			if vv.Nonce != 42 || vv.UserAgent != "/test/" {
				t.Fatalf("decoded version mismatch: %+v", vv)
			}
		}
	}
	if seen != 1 {
		t.Fatalf("expected exactly 1 completed frame, got %d", seen)
	}
}

// Framing idempotence: any partition of the stream yields the same frames
// as feeding it all at once.
func TestFramingIdempotentUnderPartition(t *testing.T) {
	frame1 := BuildFrame(Mainnet, CmdVerAck, nil)
	frame2 := BuildFrame(Mainnet, CmdPing, mustEncode(t, PingSchema, &Ping{Nonce: 7}))
	stream := append(append([]byte{}, frame1...), frame2...)

	whole := extractAll(t, stream)

	partitions := [][]int{
		{1, len(stream) - 1},
		{len(frame1), len(stream) - len(frame1)},
		{len(frame1) - 1, 1, len(stream) - len(frame1)},
	}
	for _, sizes := range partitions {
		f := mainnetFramer()
		var commands []string
		pos := 0
		for _, size := range sizes {
			f.Ingest(stream[pos : pos+size])
			pos += size
			for {
				r, err := f.Extract()
				if err != nil {
					t.Fatal(err)
				}
				if !r.Complete {
					break
				}
				commands = append(commands, CommandString(r.Header.Command))
			}
		}
		if len(commands) != len(whole) {
			t.Fatalf("partition %v: got %v, want %v", sizes, commands, whole)
		}
		for i := range commands {
			if commands[i] != whole[i] {
				t.Fatalf("partition %v: got %v, want %v", sizes, commands, whole)
			}
		}
	}
}

func extractAll(t *testing.T, stream []byte) []string {
	t.Helper()
	f := mainnetFramer()
	f.Ingest(stream)
	var commands []string
	for {
		r, err := f.Extract()
		if err != nil {
			t.Fatal(err)
		}
		if !r.Complete {
			break
		}
		commands = append(commands, CommandString(r.Header.Command))
	}
	return commands
}

func mustEncode(t *testing.T, schema *Schema, v interface{}) []byte {
	t.Helper()
	b, err := schema.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// S5: framer resync after a bad checksum — one BAD_CHECKSUM event, then
// the next frame decodes cleanly.
func TestFramingResyncAfterBadChecksum(t *testing.T) {
	good := BuildFrame(Mainnet, CmdVerAck, nil)
	bad := BuildFrame(Mainnet, CmdPing, mustEncode(t, PingSchema, &Ping{Nonce: 1}))
	bad[HeaderSize-1] ^= 0xFF // corrupt the checksum's last byte

	f := mainnetFramer()
	f.Ingest(append(append([]byte{}, bad...), good...))

	r1, err := f.Extract()
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if !r1.Complete || r1.Err != ErrBadChecksum {
		t.Fatalf("expected a completed frame with ErrBadChecksum, got complete=%v err=%v", r1.Complete, r1.Err)
	}

	r2, err := f.Extract()
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if !r2.Complete || r2.Err != nil {
		t.Fatalf("expected a clean completed frame, got complete=%v err=%v", r2.Complete, r2.Err)
	}
	if CommandString(r2.Header.Command) != CmdVerAck {
		t.Fatalf("expected verack, got %s", CommandString(r2.Header.Command))
	}
}

func TestFramingUnknownMagicFatal(t *testing.T) {
	f := mainnetFramer()
	frame := BuildFrame(Testnet, CmdVerAck, nil)
	f.Ingest(frame)
	if _, err := f.Extract(); err == nil {
		t.Fatal("expected ErrUnknownMagic")
	}
}

func TestFramingOversizeFatal(t *testing.T) {
	f := NewStreamFramer([]Network{Mainnet}, 10)
	frame := BuildFrame(Mainnet, CmdTx, make([]byte, 100))
	f.Ingest(frame)
	if _, err := f.Extract(); err == nil {
		t.Fatal("expected ErrOversize")
	}
}

func TestFramingUnknownCommandIsNotAnError(t *testing.T) {
	frame := BuildFrame(Mainnet, "bogus", []byte("hello"))
	f := mainnetFramer()
	f.Ingest(frame)
	r, err := f.Extract()
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if !r.Complete || r.Err != nil {
		t.Fatalf("expected a clean completed frame with no message, got complete=%v err=%v", r.Complete, r.Err)
	}
	if r.Message != nil {
		t.Fatalf("expected nil message for unknown command, got %v", r.Message)
	}
}

func TestFramingZeroLengthPayloadsLegal(t *testing.T) {
	for _, cmd := range []string{CmdVerAck, CmdGetAddr, CmdMemPool} {
		f := mainnetFramer()
		f.Ingest(BuildFrame(Mainnet, cmd, nil))
		r, err := f.Extract()
		if err != nil || !r.Complete || r.Err != nil {
			t.Fatalf("%s: expected clean zero-length frame, got complete=%v err=%v extractErr=%v", cmd, r.Complete, r.Err, err)
		}
	}
}
