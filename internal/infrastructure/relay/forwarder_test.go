package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"
	"emberlink/internal/infrastructure/monitoring"

	"go.uber.org/zap/zaptest"
)

// promauto registers into the default registry, so one collector serves
// every test in the package.
var testMetrics = monitoring.NewMetricsCollector()

type memChannel struct {
	spec domain.ChannelSpec
	in   chan []byte
	out  chan []byte

	mu      sync.Mutex
	sendErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newMemChannel(spec domain.ChannelSpec) *memChannel {
	return &memChannel{
		spec:   spec,
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *memChannel) Spec() domain.ChannelSpec { return c.spec }

func (c *memChannel) Send(payload []byte) error {
	select {
	case <-c.closed:
		return domain.ErrChannelClosed
	default:
	}
	c.mu.Lock()
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.out <- payload
	return nil
}

func (c *memChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-c.in:
		return payload, nil
	case <-c.closed:
		return nil, domain.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *memChannel) failSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

type memTransport struct {
	mu       sync.Mutex
	channels map[domain.ChannelID]*memChannel
}

func newMemTransport() *memTransport {
	return &memTransport{channels: make(map[domain.ChannelID]*memChannel)}
}

func (t *memTransport) Open(spec domain.ChannelSpec) (ports.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[spec.ID]; ok {
		return nil, domain.ErrDuplicateChannelID
	}
	ch := newMemChannel(spec)
	t.channels[spec.ID] = ch
	return ch, nil
}

func (t *memTransport) Close() error { return nil }

func (t *memTransport) channel(id domain.ChannelID) *memChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[id]
}

func startForwarder(t *testing.T, specs []domain.ChannelSpec) (*memTransport, *memTransport, context.CancelFunc) {
	t.Helper()
	sideA := newMemTransport()
	sideB := newMemTransport()
	f := NewForwarder(sideA, sideB, specs, testMetrics, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("forwarder did not stop")
		}
	})

	// Wait until both sides have their channels open.
	deadline := time.Now().Add(time.Second)
	for _, spec := range specs {
		for sideA.channel(spec.ID) == nil || sideB.channel(spec.ID) == nil {
			if time.Now().After(deadline) {
				t.Fatal("channels never opened")
			}
			time.Sleep(time.Millisecond)
		}
	}
	return sideA, sideB, cancel
}

func expectPayload(t *testing.T, out chan []byte, want string) {
	t.Helper()
	select {
	case got := <-out:
		if string(got) != want {
			t.Fatalf("want %q, got %q", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestForwarder_CopiesBothDirectionsInOrder(t *testing.T) {
	specs := []domain.ChannelSpec{{ID: 10, Kind: domain.MediaHeartbeat}}
	sideA, sideB, _ := startForwarder(t, specs)

	a := sideA.channel(10)
	b := sideB.channel(10)

	for i := 0; i < 5; i++ {
		a.in <- []byte(fmt.Sprintf("a%d", i))
	}
	for i := 0; i < 5; i++ {
		expectPayload(t, b.out, fmt.Sprintf("a%d", i))
	}

	b.in <- []byte("reply")
	expectPayload(t, a.out, "reply")
}

func TestForwarder_ChannelsAreIsolated(t *testing.T) {
	specs := []domain.ChannelSpec{
		{ID: 0, Kind: domain.MediaVideo},
		{ID: 10, Kind: domain.MediaHeartbeat},
	}
	sideA, sideB, _ := startForwarder(t, specs)

	// The video channel's outbound side is broken; heartbeat keeps flowing.
	sideB.channel(0).failSends(errors.New("radio busy"))

	sideA.channel(0).in <- []byte("frame")
	sideA.channel(10).in <- []byte("beat")

	expectPayload(t, sideB.channel(10).out, "beat")

	select {
	case got := <-sideB.channel(0).out:
		t.Fatalf("broken channel delivered %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwarder_DropsWhenOutboundUnavailableThenRecovers(t *testing.T) {
	specs := []domain.ChannelSpec{{ID: 49, Kind: domain.MediaAudio}}
	sideA, sideB, _ := startForwarder(t, specs)

	a := sideA.channel(49)
	b := sideB.channel(49)

	b.failSends(errors.New("tx unavailable"))
	a.in <- []byte("dropped")

	// Give the pump time to process and drop.
	time.Sleep(20 * time.Millisecond)
	b.failSends(nil)

	a.in <- []byte("after-recovery")
	expectPayload(t, b.out, "after-recovery")

	select {
	case got := <-b.out:
		t.Fatalf("dropped payload resurfaced: %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwarder_OpenFailureAborts(t *testing.T) {
	sideA := newMemTransport()
	sideB := newMemTransport()
	// Pre-claim the id on side B so the forwarder's open fails.
	if _, err := sideB.Open(domain.ChannelSpec{ID: 10, Kind: domain.MediaHeartbeat}); err != nil {
		t.Fatal(err)
	}

	f := NewForwarder(sideA, sideB, []domain.ChannelSpec{{ID: 10, Kind: domain.MediaHeartbeat}}, testMetrics, zaptest.NewLogger(t).Sugar())
	err := f.Run(context.Background())
	if !errors.Is(err, domain.ErrDuplicateChannelID) {
		t.Fatalf("want duplicate channel error, got %v", err)
	}
}

func TestForwarder_TapObservesForwardedPayloads(t *testing.T) {
	specs := []domain.ChannelSpec{{ID: 10, Kind: domain.MediaHeartbeat}}
	sideA := newMemTransport()
	sideB := newMemTransport()
	f := NewForwarder(sideA, sideB, specs, testMetrics, zaptest.NewLogger(t).Sugar())

	tapped := make(chan string, 1)
	f.AddTap(func(spec domain.ChannelSpec, direction string, payload []byte) {
		tapped <- fmt.Sprintf("%d/%s/%s", spec.ID, direction, payload)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for sideA.channel(10) == nil || sideB.channel(10) == nil {
		if time.Now().After(deadline) {
			t.Fatal("channels never opened")
		}
		time.Sleep(time.Millisecond)
	}

	sideA.channel(10).in <- []byte("beat")

	select {
	case got := <-tapped:
		if got != "10/a_to_b/beat" {
			t.Fatalf("unexpected tap observation %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("tap never fired")
	}
}
