package report

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"
	"emberlink/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// seqResetGap is how far below a sender's high-water mark a sequence
// must fall before it is read as a publisher restart instead of a
// reordered datagram.
const seqResetGap = 8

// Receiver is the console's intake for relay link reports. Malformed
// datagrams are counted and skipped; one bad relay build cannot take the
// console down.
type Receiver struct {
	address  string
	topology ports.TopologyService
	metrics  *monitoring.MetricsCollector
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	lastSeen time.Time
	lastSeq  map[string]uint64
}

func NewReceiver(address string, topology ports.TopologyService, metrics *monitoring.MetricsCollector, logger *zap.SugaredLogger) *Receiver {
	return &Receiver{
		address:  address,
		topology: topology,
		metrics:  metrics,
		logger:   logger,
		lastSeq:  make(map[string]uint64),
	}
}

// Run listens until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", r.address)
	if err != nil {
		return fmt.Errorf("resolve report listen address %q: %w", r.address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind report listen address %q: %w", r.address, err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	r.logger.Infow("link report receiver listening", "address", r.address)

	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read link report: %w", err)
		}
		r.handle(buf[:n])
	}
}

func (r *Receiver) handle(data []byte) {
	rep, err := Decode(data)
	if err != nil {
		r.metrics.RecordInvalidReport()
		r.logger.Warnw("discarding malformed link report", "error", err)
		return
	}

	r.mu.Lock()
	if last, ok := r.lastSeq[rep.Sender]; ok && rep.Seq != 0 && rep.Seq <= last {
		// Reports are seconds apart, so a genuine reorder or duplicate
		// sits within a few sequence numbers of the high-water mark. A
		// sequence far below it means the relay restarted and its
		// counter began again; resync rather than mute the sender.
		if last-rep.Seq < seqResetGap {
			r.mu.Unlock()
			return
		}
	}
	if rep.Seq != 0 {
		r.lastSeq[rep.Sender] = rep.Seq
	}
	r.lastSeen = time.Now()
	r.mu.Unlock()

	r.metrics.RecordReport()

	r.topology.ObserveEndpoint(domain.Endpoint{
		ID:   domain.EndpointID(rep.Sender),
		Role: domain.RoleRelayNode,
	})
	for _, sample := range rep.ToSamples() {
		r.topology.ApplySample(sample)
		r.metrics.UpdateLink(domain.Link{
			Key:         sample.Link,
			RSSI:        sample.RSSI,
			Loss:        sample.Loss,
			Unconfirmed: sample.Unconfirmed,
			UpdatedAt:   sample.Timestamp,
		})
	}
}

// LastReportAge reports how long ago any relay was last heard from. Used
// by the readiness probe.
func (r *Receiver) LastReportAge() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSeen.IsZero() {
		return 0, false
	}
	return time.Since(r.lastSeen), true
}
