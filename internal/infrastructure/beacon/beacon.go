package beacon

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"
	"emberlink/internal/core/services"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sender emits one beat per interval on the heartbeat channel. The limiter
// paces sends even when the loop is woken late and ticks bunch up, so the
// receiver's missed-beat accounting sees a steady cadence.
type Sender struct {
	id      domain.EndpointID
	channel ports.Channel
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	seq uint64
}

func NewSender(id domain.EndpointID, channel ports.Channel, interval time.Duration, logger *zap.SugaredLogger) *Sender {
	return &Sender{
		id:      id,
		channel: channel,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Run sends beats until ctx is cancelled. A failed send is dropped like any
// other payload on a lossy link; the sequence number still advances so the
// receiver sees the gap.
func (s *Sender) Run(ctx context.Context) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		s.seq++
		payload, err := json.Marshal(domain.Beat{
			Sender: s.id,
			Seq:    s.seq,
			SentAt: time.Now(),
		})
		if err != nil {
			return err
		}

		if err := s.channel.Send(payload); err != nil {
			if errors.Is(err, domain.ErrChannelClosed) {
				return nil
			}
			s.logger.Debugw("beat dropped", "seq", s.seq, "error", err)
		}
	}
}

// Listener decodes beats off the heartbeat channel and feeds the liveness
// state machine. Undecodable payloads are skipped; a corrupted beat is
// indistinguishable from a lost one and is treated the same way.
type Listener struct {
	channel ports.Channel
	monitor *services.HeartbeatMonitor
	onBeat  func(domain.Beat)
	logger  *zap.SugaredLogger
}

func NewListener(channel ports.Channel, monitor *services.HeartbeatMonitor, onBeat func(domain.Beat), logger *zap.SugaredLogger) *Listener {
	return &Listener{
		channel: channel,
		monitor: monitor,
		onBeat:  onBeat,
		logger:  logger,
	}
}

func (l *Listener) Run(ctx context.Context) error {
	for {
		payload, err := l.channel.Receive(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrChannelClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var b domain.Beat
		if err := json.Unmarshal(payload, &b); err != nil || b.Sender == "" {
			l.logger.Debugw("skipping undecodable beat", "error", err)
			continue
		}

		l.monitor.ObserveBeat(b)
		if l.onBeat != nil {
			l.onBeat(b)
		}
	}
}

// DecodeBeat parses a heartbeat payload. Exposed for relay taps that snoop
// beats in transit to feed loss accounting.
func DecodeBeat(payload []byte) (domain.Beat, bool) {
	var b domain.Beat
	if err := json.Unmarshal(payload, &b); err != nil || b.Sender == "" {
		return domain.Beat{}, false
	}
	return b, true
}
