package report

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"emberlink/internal/core/domain"

	"go.uber.org/zap"
)

// Publisher pushes the relay's link estimates to the console over UDP on a
// fixed cadence. A failed push is dropped; the next tick carries fresher
// data anyway.
type Publisher struct {
	sender   domain.EndpointID
	target   string
	interval time.Duration
	source   func() []domain.QualitySample

	seq    atomic.Uint64
	logger *zap.SugaredLogger
}

func NewPublisher(sender domain.EndpointID, target string, interval time.Duration, source func() []domain.QualitySample, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{
		sender:   sender,
		target:   target,
		interval: interval,
		source:   source,
		logger:   logger,
	}
}

// Run publishes until ctx is cancelled. The socket is dialed once; UDP has
// no connection state to lose, so a send error never forces a redial.
func (p *Publisher) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", p.target)
	if err != nil {
		return fmt.Errorf("resolve report target %q: %w", p.target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial report target %q: %w", p.target, err)
	}
	defer conn.Close()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publish(conn)
		}
	}
}

func (p *Publisher) publish(conn *net.UDPConn) {
	samples := p.source()
	if len(samples) == 0 {
		return
	}

	payload, err := Encode(FromSamples(p.sender, p.seq.Add(1), samples))
	if err != nil {
		p.logger.Warnw("encode link report failed", "error", err)
		return
	}
	if _, err := conn.Write(payload); err != nil {
		p.logger.Debugw("link report dropped", "target", p.target, "error", err)
	}
}
