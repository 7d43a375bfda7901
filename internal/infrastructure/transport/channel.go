package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"

	"go.uber.org/zap"
)

// Ports is the localhost UDP pair one wfb process set exposes for a
// channel: payloads written to Tx enter the radio, payloads leaving the
// radio arrive on Rx.
type Ports struct {
	Tx int
	Rx int
}

// UDPTransport binds stream channels onto one radio interface's wfb
// processes. It tracks open channels so a duplicate id is rejected before
// it can cross-talk at the radio demultiplexer.
type UDPTransport struct {
	name  string
	ports map[domain.ChannelID]Ports

	mu   sync.Mutex
	open map[domain.ChannelID]*udpChannel

	logger *zap.SugaredLogger
}

func NewUDPTransport(name string, ports map[domain.ChannelID]Ports, logger *zap.SugaredLogger) *UDPTransport {
	return &UDPTransport{
		name:   name,
		ports:  ports,
		open:   make(map[domain.ChannelID]*udpChannel),
		logger: logger,
	}
}

func (t *UDPTransport) Open(spec domain.ChannelSpec) (ports.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.open[spec.ID]; ok {
		if existing.spec.Kind != spec.Kind {
			return nil, fmt.Errorf("channel %d on %s: %w", spec.ID, t.name, domain.ErrKindMismatch)
		}
		return nil, fmt.Errorf("channel %d on %s: %w", spec.ID, t.name, domain.ErrDuplicateChannelID)
	}

	pp, ok := t.ports[spec.ID]
	if !ok {
		return nil, fmt.Errorf("channel %d has no port assignment on %s", spec.ID, t.name)
	}

	rx, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: pp.Rx})
	if err != nil {
		return nil, fmt.Errorf("bind rx port %d for channel %d: %w", pp.Rx, spec.ID, err)
	}

	tx, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: pp.Tx})
	if err != nil {
		rx.Close()
		return nil, fmt.Errorf("dial tx port %d for channel %d: %w", pp.Tx, spec.ID, err)
	}

	ch := &udpChannel{
		spec:    spec,
		rx:      rx,
		tx:      tx,
		closed:  make(chan struct{}),
		release: func() { t.forget(spec.ID) },
	}
	t.open[spec.ID] = ch

	t.logger.Infow("channel opened",
		"radio", t.name, "channel", spec.ID, "kind", spec.Kind,
		"tx_port", pp.Tx, "rx_port", pp.Rx)
	return ch, nil
}

func (t *UDPTransport) forget(id domain.ChannelID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, id)
}

// Close releases every channel still open on this radio.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	channels := make([]*udpChannel, 0, len(t.open))
	for _, ch := range t.open {
		channels = append(channels, ch)
	}
	t.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
	return nil
}

const maxPayload = 64 * 1024

type udpChannel struct {
	spec domain.ChannelSpec
	rx   *net.UDPConn
	tx   *net.UDPConn

	closeOnce sync.Once
	closed    chan struct{}
	release   func()
}

func (c *udpChannel) Spec() domain.ChannelSpec {
	return c.spec
}

// Send writes one payload toward the radio. A failed write is a transient
// transport error; the caller drops the payload.
func (c *udpChannel) Send(payload []byte) error {
	select {
	case <-c.closed:
		return domain.ErrChannelClosed
	default:
	}
	if _, err := c.tx.Write(payload); err != nil {
		return fmt.Errorf("send on channel %d: %w", c.spec.ID, err)
	}
	return nil
}

// Receive blocks until a payload arrives. Short read deadlines let the
// loop notice close and cancellation without leaking a goroutine.
func (c *udpChannel) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, maxPayload)
	for {
		select {
		case <-c.closed:
			return nil, domain.ErrChannelClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := c.rx.SetReadDeadline(time.Now().Add(250 * time.Millisecond)); err != nil {
			return nil, domain.ErrChannelClosed
		}
		n, _, err := c.rx.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-c.closed:
				return nil, domain.ErrChannelClosed
			default:
				return nil, fmt.Errorf("receive on channel %d: %w", c.spec.ID, err)
			}
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		return payload, nil
	}
}

// Close releases both sockets and unblocks pending Receives. Safe to call
// more than once.
func (c *udpChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.rx.Close()
		c.tx.Close()
		if c.release != nil {
			c.release()
		}
	})
	return nil
}
