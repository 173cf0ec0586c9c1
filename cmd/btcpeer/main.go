package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/keato/btcpeer/internal/config"
	"github.com/keato/btcpeer/internal/logger"
	"github.com/keato/btcpeer/internal/metrics"
	"github.com/keato/btcpeer/internal/wire"
)

// keepAliveInterval is how often runKeepAlive sends an unsolicited ping to
// measure round-trip latency. A ping that never gets a pong is not acted
// on.
const keepAliveInterval = 30 * time.Second

func main() {
	Execute()
}

// pingTracker remembers the send time of every outstanding keep-alive
// ping, keyed by nonce, so the matching pong's round-trip time can be
// measured.
type pingTracker struct {
	mu   sync.Mutex
	sent map[uint64]time.Time
}

func newPingTracker() *pingTracker {
	return &pingTracker{sent: make(map[uint64]time.Time)}
}

func (p *pingTracker) record(nonce uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[nonce] = time.Now()
}

// observe reports the round-trip time for a pong's nonce, if a matching
// ping was sent and is still outstanding.
func (p *pingTracker) observe(nonce uint64) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sentAt, ok := p.sent[nonce]
	if !ok {
		return 0, false
	}
	delete(p.sent, nonce)
	return time.Since(sentAt), true
}

// runKeepAlive sends a ping with a fresh nonce every keepAliveInterval
// until ctx is done.
func runKeepAlive(ctx context.Context, client *wire.Client, pinger *pingTracker) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var nonce uint64
			if err := binary.Read(rand.Reader, binary.LittleEndian, &nonce); err != nil {
				continue
			}
			pinger.record(nonce)
			if err := client.Send(wire.CmdPing, &wire.Ping{Nonce: nonce}); err != nil {
				continue
			}
			metrics.PingsSent.Inc()
		}
	}
}

func run(opts config.Options) error {
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		logger.SetJSONOutput()
		logger.Log = logger.Log.Output(f)
	}
	logger.SetLevel(opts.LogLevel)

	logger.Log.Info().
		Str("network", opts.Network.String()).
		Str("connect_addr", opts.ConnectAddr).
		Msg("starting btcpeer")

	metrics.StartMetricsServer(opts.MetricsAddr)

	if opts.ConnectAddr == "" {
		logger.Log.Fatal().Msg("connect-addr is required")
	}

	metrics.ConnectionAttempts.Inc()
	conn, err := net.Dial("tcp", opts.ConnectAddr)
	if err != nil {
		metrics.HandshakeFailures.Inc()
		return err
	}
	metrics.ConnectionsActive.Inc()
	defer conn.Close()
	defer metrics.ConnectionsActive.Dec()

	peerLog := logger.PeerLogger(opts.ConnectAddr)

	client := wire.NewClient(conn, opts.Network,
		wire.WithLogger(peerLog),
		wire.WithUserAgent(opts.UserAgent),
		wire.WithMaxPayload(opts.MaxPayloadSize),
		wire.WithOnHeader(func(header *wire.MessageHeader, payload []byte, err error) {
			command := wire.CommandString(header.Command)
			if err != nil {
				if errors.Is(err, wire.ErrBadChecksum) {
					metrics.ChecksumFailures.Inc()
				}
				peerLog.Warn().Err(err).Str("command", command).Msg("frame error")
				return
			}
			if _, ok := wire.SchemaFor(command); !ok {
				metrics.FramesUnknownCommand.WithLabelValues(command).Inc()
				return
			}
			metrics.FramesDecoded.WithLabelValues(command).Inc()
		}),
	)

	client.Handle(wire.CmdVerAck, func(c *wire.Client, _ *wire.MessageHeader, _ interface{}) error {
		metrics.HandshakesCompleted.Inc()
		peerLog.Info().Msg("handshake complete")
		return nil
	})
	client.Handle(wire.CmdInv, func(c *wire.Client, _ *wire.MessageHeader, msg interface{}) error {
		inv, ok := msg.(*wire.InventoryVector)
		if !ok {
			return nil
		}
		for _, item := range inv.Inventory {
			switch item.Type {
			case wire.InvTypeTx:
				metrics.InvTxAnnouncements.Inc()
			case wire.InvTypeBlock:
				metrics.InvBlockAnnouncements.Inc()
			}
		}
		return nil
	})

	pinger := newPingTracker()
	client.Handle(wire.CmdPong, func(c *wire.Client, _ *wire.MessageHeader, msg interface{}) error {
		pong, ok := msg.(*wire.Pong)
		if !ok {
			return nil
		}
		if rtt, ok := pinger.observe(pong.Nonce); ok {
			metrics.PongLatency.Observe(rtt.Seconds())
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	local := wire.NetworkAddress{Services: wire.ServiceNodeNetwork}
	remote := wire.NetworkAddress{Services: wire.ServiceNodeNetwork}
	if err := client.Handshake(remote, local); err != nil {
		metrics.HandshakeFailures.Inc()
		cancel()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil {
			if errors.Is(err, wire.ErrOversize) {
				metrics.OversizeDrops.Inc()
			}
			peerLog.Info().Err(err).Msg("connection closed")
		}
		metrics.Disconnections.WithLabelValues("run-exit").Inc()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runKeepAlive(ctx, client, pinger)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Log.Info().Msg("shutting down")
	cancel()
	conn.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Log.Warn().Msg("timed out waiting for connection to close")
	}

	return nil
}
