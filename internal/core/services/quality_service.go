package services

import (
	"context"
	"sync"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"

	"go.uber.org/zap"
)

// QualityMonitor keeps a rolling RSSI estimate and loss ratio per
// directional link. RSSI samples arrive from the radio driver's stats on a
// fixed cadence; loss observations arrive from sequence gaps on heartbeat
// and video streams. Sampling never waits on the data plane.
type QualityMonitor struct {
	alpha  float64
	window int

	mu    sync.Mutex
	links map[domain.LinkKey]*linkQuality

	logger *zap.SugaredLogger
}

type linkQuality struct {
	ewma        float64
	primed      bool
	unconfirmed bool

	lastSeq    uint64
	seqPrimed  bool
	lossRing   []bool // true = received
	lossPos    int
	lossFilled int

	updatedAt time.Time
}

func NewQualityMonitor(alpha float64, window int, logger *zap.SugaredLogger) *QualityMonitor {
	return &QualityMonitor{
		alpha:  alpha,
		window: window,
		links:  make(map[domain.LinkKey]*linkQuality),
		logger: logger,
	}
}

func (m *QualityMonitor) state(key domain.LinkKey) *linkQuality {
	lq, ok := m.links[key]
	if !ok {
		lq = &linkQuality{lossRing: make([]bool, m.window)}
		m.links[key] = lq
	}
	return lq
}

// RecordRSSI folds one confirmed signal reading into the EWMA.
func (m *QualityMonitor) RecordRSSI(key domain.LinkKey, rssi float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lq := m.state(key)
	if !lq.primed {
		lq.ewma = rssi
		lq.primed = true
	} else {
		lq.ewma = m.alpha*rssi + (1-m.alpha)*lq.ewma
	}
	lq.unconfirmed = false
	lq.updatedAt = time.Now()
}

// RecordFailure marks the link's current estimate unconfirmed. The previous
// value keeps being reported; a single failed sample never tears down a link.
func (m *QualityMonitor) RecordFailure(key domain.LinkKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lq := m.state(key)
	lq.unconfirmed = true
	lq.updatedAt = time.Now()
}

// ObserveSeq feeds one received sequence number into the loss window,
// counting any gap since the previous observation as missed packets.
func (m *QualityMonitor) ObserveSeq(key domain.LinkKey, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lq := m.state(key)
	lq.updatedAt = time.Now()
	if lq.seqPrimed && seq > lq.lastSeq+1 {
		gap := seq - lq.lastSeq - 1
		if gap > uint64(m.window) {
			gap = uint64(m.window)
		}
		for i := uint64(0); i < gap; i++ {
			lq.push(false)
		}
	}
	if !lq.seqPrimed || seq > lq.lastSeq {
		lq.lastSeq = seq
	}
	lq.seqPrimed = true
	lq.push(true)
}

func (lq *linkQuality) push(received bool) {
	lq.lossRing[lq.lossPos] = received
	lq.lossPos = (lq.lossPos + 1) % len(lq.lossRing)
	if lq.lossFilled < len(lq.lossRing) {
		lq.lossFilled++
	}
}

func (lq *linkQuality) lossRatio() float64 {
	if lq.lossFilled == 0 {
		return 0
	}
	missed := 0
	for i := 0; i < lq.lossFilled; i++ {
		if !lq.lossRing[i] {
			missed++
		}
	}
	return float64(missed) / float64(lq.lossFilled)
}

// noSignalFloor is the RSSI reported for a link that has only ever been
// observed through sequence gaps, where no radio stats stream exists.
const noSignalFloor = -90.0

// sampleOf builds the published estimate for one link. A link without a
// signal reading still carries its loss ratio; its RSSI is the floor,
// flagged unconfirmed, never an invented strength.
func sampleOf(key domain.LinkKey, lq *linkQuality) domain.QualitySample {
	s := domain.QualitySample{
		Link:        key,
		RSSI:        lq.ewma,
		Loss:        lq.lossRatio(),
		Unconfirmed: lq.unconfirmed,
		Timestamp:   lq.updatedAt,
	}
	if !lq.primed {
		s.RSSI = noSignalFloor
		s.Unconfirmed = true
	}
	return s
}

// Current returns the latest estimate for one link.
func (m *QualityMonitor) Current(key domain.LinkKey) (domain.QualitySample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lq, ok := m.links[key]
	if !ok || (!lq.primed && !lq.seqPrimed) {
		return domain.QualitySample{}, false
	}
	return sampleOf(key, lq), true
}

// Samples returns the latest estimate for every observed link, whether
// the observations came from radio stats, sequence tracking, or both.
func (m *QualityMonitor) Samples() []domain.QualitySample {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.QualitySample, 0, len(m.links))
	for key, lq := range m.links {
		if !lq.primed && !lq.seqPrimed {
			continue
		}
		out = append(out, sampleOf(key, lq))
	}
	return out
}

// RunSampler polls src on a fixed cadence and folds readings into the
// estimate for key until ctx is cancelled.
func (m *QualityMonitor) RunSampler(ctx context.Context, key domain.LinkKey, src ports.SignalSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rssi, err := src.Sample()
			if err != nil {
				m.logger.Debugw("signal sample failed, keeping previous estimate",
					"from", key.From, "to", key.To, "error", err)
				m.RecordFailure(key)
				continue
			}
			m.RecordRSSI(key, rssi)
		}
	}
}
