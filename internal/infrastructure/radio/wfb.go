package radio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"emberlink/internal/core/domain"

	"go.uber.org/zap"
)

// Params mirrors the wfb process flags for one radio interface.
type Params struct {
	Interface string
	LinkID    int
	KeyPath   string
	FEC       domain.FECParams
}

// RxCommand builds the receiver process for one channel. Stderr carries
// the periodic stats lines StatsReader consumes.
func RxCommand(ctx context.Context, p Params, spec domain.ChannelSpec, udpPort int) *exec.Cmd {
	return exec.CommandContext(ctx, "wfb_rx",
		"-p", strconv.Itoa(int(spec.ID)),
		"-u", strconv.Itoa(udpPort),
		"-K", p.KeyPath,
		"-i", strconv.Itoa(p.LinkID),
		p.Interface,
	)
}

// TxCommand builds the transmitter process for one channel.
func TxCommand(ctx context.Context, p Params, spec domain.ChannelSpec, udpPort int) *exec.Cmd {
	return exec.CommandContext(ctx, "wfb_tx",
		"-p", strconv.Itoa(int(spec.ID)),
		"-u", strconv.Itoa(udpPort),
		"-K", p.KeyPath,
		"-k", strconv.Itoa(spec.FEC.K),
		"-n", strconv.Itoa(spec.FEC.N),
		"-i", strconv.Itoa(p.LinkID),
		p.Interface,
	)
}

// ParseRXAnt extracts the strongest antenna RSSI from one wfb_rx stats
// line. Lines look like
//
//	1632470402 RX_ANT 5:3:20 0:120:-52:-48:-44
//
// where the last colon-separated field of each antenna chunk is an RSSI
// in dBm. Only negative values are plausible readings.
func ParseRXAnt(line string) (float64, bool) {
	if !strings.Contains(line, "RX_ANT") {
		return 0, false
	}

	best := 0.0
	found := false
	for _, chunk := range strings.Fields(line) {
		if !strings.Contains(chunk, ":") {
			continue
		}
		fields := strings.Split(chunk, ":")
		v, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || v >= 0 {
			continue
		}
		if !found || float64(v) > best {
			best = float64(v)
			found = true
		}
	}
	return best, found
}

// StatsReader consumes a wfb_rx stats stream and holds the most recent
// RSSI reading. It implements ports.SignalSource: a Sample with no fresh
// reading fails, which the quality monitor records as unconfirmed.
type StatsReader struct {
	maxAge time.Duration
	logger *zap.SugaredLogger

	mu       sync.Mutex
	rssi     float64
	sampled  bool
	lastSeen time.Time
}

func NewStatsReader(maxAge time.Duration, logger *zap.SugaredLogger) *StatsReader {
	if maxAge <= 0 {
		maxAge = 3 * time.Second
	}
	return &StatsReader{maxAge: maxAge, logger: logger}
}

// Run scans the stats stream until EOF or cancellation. wfb_rx emits one
// stats block per second; anything that is not an RX_ANT line is ignored.
func (s *StatsReader) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rssi, ok := ParseRXAnt(scanner.Text())
		if !ok {
			continue
		}
		s.mu.Lock()
		s.rssi = rssi
		s.sampled = true
		s.lastSeen = time.Now()
		s.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read wfb stats: %w", err)
	}
	return nil
}

// Sample returns the latest RSSI if one arrived recently.
func (s *StatsReader) Sample() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sampled {
		return 0, fmt.Errorf("no rssi reading yet")
	}
	if age := time.Since(s.lastSeen); age > s.maxAge {
		return 0, fmt.Errorf("rssi reading stale by %s", age-s.maxAge)
	}
	return s.rssi, nil
}
