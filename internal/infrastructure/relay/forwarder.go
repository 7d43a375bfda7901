package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"
	"emberlink/internal/infrastructure/monitoring"
	"emberlink/pkg/backoff"

	"go.uber.org/zap"
)

// Tap observes a payload as it is forwarded, without being able to delay
// or reject it. Used to feed sequence tracking off the hot path decision.
type Tap func(spec domain.ChannelSpec, direction string, payload []byte)

// Forwarder runs one identity-preserving pump per direction per channel
// between the two radio sides of a relay. Channels never share a pump, so
// a stalled or failing channel cannot delay the others.
type Forwarder struct {
	sideA ports.Transport
	sideB ports.Transport
	specs []domain.ChannelSpec

	taps    []Tap
	metrics *monitoring.MetricsCollector
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	channels []ports.Channel
}

func NewForwarder(sideA, sideB ports.Transport, specs []domain.ChannelSpec, metrics *monitoring.MetricsCollector, logger *zap.SugaredLogger) *Forwarder {
	return &Forwarder{
		sideA:   sideA,
		sideB:   sideB,
		specs:   specs,
		metrics: metrics,
		logger:  logger,
	}
}

// AddTap registers an observer for forwarded payloads. Must be called
// before Run.
func (f *Forwarder) AddTap(t Tap) {
	f.taps = append(f.taps, t)
}

// Run opens every configured channel on both sides and pumps payloads
// until ctx is cancelled. Any open failure is a configuration error and
// aborts startup with everything already opened released again.
func (f *Forwarder) Run(ctx context.Context) error {
	type pair struct {
		spec domain.ChannelSpec
		a, b ports.Channel
	}

	pairs := make([]pair, 0, len(f.specs))
	for _, spec := range f.specs {
		chA, err := f.sideA.Open(spec)
		if err != nil {
			f.closeAll()
			return fmt.Errorf("open channel %d on side A: %w", spec.ID, err)
		}
		f.track(chA)

		chB, err := f.sideB.Open(spec)
		if err != nil {
			f.closeAll()
			return fmt.Errorf("open channel %d on side B: %w", spec.ID, err)
		}
		f.track(chB)

		pairs = append(pairs, pair{spec: spec, a: chA, b: chB})
	}

	var wg sync.WaitGroup
	for _, p := range pairs {
		p := p
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.supervise(ctx, p.spec, "a_to_b", p.a, p.b)
		}()
		go func() {
			defer wg.Done()
			f.supervise(ctx, p.spec, "b_to_a", p.b, p.a)
		}()
	}

	<-ctx.Done()
	f.closeAll()
	wg.Wait()
	return nil
}

func (f *Forwarder) track(ch ports.Channel) {
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()
}

func (f *Forwarder) closeAll() {
	f.mu.Lock()
	channels := f.channels
	f.channels = nil
	f.mu.Unlock()
	for _, ch := range channels {
		ch.Close()
	}
}

// supervise restarts a pump after transient receive failures. The backoff
// resets once a pump run survives long enough to be considered healthy.
func (f *Forwarder) supervise(ctx context.Context, spec domain.ChannelSpec, direction string, src, dst ports.Channel) {
	bo := backoff.New(100*time.Millisecond, 5*time.Second)
	for {
		started := time.Now()
		err := f.pump(ctx, spec, direction, src, dst)
		if err == nil || ctx.Err() != nil {
			return
		}

		f.metrics.RecordPumpRestart(spec.ID, direction)
		f.logger.Warnw("pump failed, restarting",
			"channel", spec.ID, "direction", direction, "error", err)

		if time.Since(started) > 30*time.Second {
			bo.Reset()
		}
		if bo.Sleep(ctx) != nil {
			return
		}
	}
}

// pump copies payloads from src to dst byte for byte. A failed send means
// the outbound side is momentarily unavailable; the payload is dropped and
// the pump keeps going. Returns nil on clean shutdown, an error when the
// receive side broke and the pump should be restarted.
func (f *Forwarder) pump(ctx context.Context, spec domain.ChannelSpec, direction string, src, dst ports.Channel) error {
	for {
		payload, err := src.Receive(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrChannelClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		for _, tap := range f.taps {
			tap(spec, direction, payload)
		}

		if err := dst.Send(payload); err != nil {
			if errors.Is(err, domain.ErrChannelClosed) {
				return nil
			}
			f.metrics.RecordDropped(spec.ID, direction)
			f.logger.Debugw("payload dropped",
				"channel", spec.ID, "direction", direction, "error", err)
			continue
		}
		f.metrics.RecordForwarded(spec.ID, direction)
	}
}
