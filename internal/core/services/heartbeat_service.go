package services

import (
	"context"
	"sync"
	"time"

	"emberlink/internal/core/domain"

	"go.uber.org/zap"
)

// HeartbeatConfig controls missed-beat accounting. With the defaults
// (1s beats, 3 missed to stale, 7 further to lost) an endpoint goes stale
// after 3s of silence and lost after 10s.
type HeartbeatConfig struct {
	BeatInterval    time.Duration
	MissedThreshold int
	LostThreshold   int
}

func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		BeatInterval:    time.Second,
		MissedThreshold: 3,
		LostThreshold:   7,
	}
}

// HeartbeatMonitor runs the alive/stale/lost state machine per endpoint.
// Transitions go to the sink exactly once each; beats never emit events on
// their own unless they recover a stale or lost endpoint.
type HeartbeatMonitor struct {
	cfg  HeartbeatConfig
	sink func(domain.LivenessTransition)

	mu        sync.Mutex
	endpoints map[domain.EndpointID]*beatState

	now    func() time.Time
	logger *zap.SugaredLogger
}

type beatState struct {
	state    domain.Liveness
	lastBeat time.Time
	lastSeq  uint64
}

func NewHeartbeatMonitor(cfg HeartbeatConfig, sink func(domain.LivenessTransition), logger *zap.SugaredLogger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		cfg:       cfg,
		sink:      sink,
		endpoints: make(map[domain.EndpointID]*beatState),
		now:       time.Now,
		logger:    logger,
	}
}

// ObserveBeat records a beat. The first beat from an endpoint creates it in
// state alive; a beat in state stale or lost is proof of connectivity and
// resets directly to alive.
func (m *HeartbeatMonitor) ObserveBeat(b domain.Beat) {
	now := m.now()

	m.mu.Lock()
	st, ok := m.endpoints[b.Sender]
	if !ok {
		st = &beatState{state: domain.LivenessAlive}
		m.endpoints[b.Sender] = st
	}
	prev := st.state
	st.state = domain.LivenessAlive
	st.lastBeat = now
	if b.Seq > st.lastSeq {
		st.lastSeq = b.Seq
	}
	m.mu.Unlock()

	if ok && prev != domain.LivenessAlive {
		m.emit(domain.LivenessTransition{
			Endpoint:  b.Sender,
			From:      prev,
			To:        domain.LivenessAlive,
			Timestamp: now,
		})
	}
}

// State reports the current liveness of an endpoint.
func (m *HeartbeatMonitor) State(id domain.EndpointID) (domain.Liveness, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.endpoints[id]
	if !ok {
		return "", false
	}
	return st.state, true
}

// Sweep advances the state machine against the given time. Exposed so the
// accounting is testable without a running clock.
func (m *HeartbeatMonitor) Sweep(now time.Time) {
	staleAfter := time.Duration(m.cfg.MissedThreshold) * m.cfg.BeatInterval
	lostAfter := staleAfter + time.Duration(m.cfg.LostThreshold)*m.cfg.BeatInterval

	var fired []domain.LivenessTransition

	m.mu.Lock()
	for id, st := range m.endpoints {
		silent := now.Sub(st.lastBeat)
		missed := int(silent / m.cfg.BeatInterval)

		// A sweep may cover both thresholds at once; transitions still
		// fire in order, one event each.
		if st.state == domain.LivenessAlive && silent >= staleAfter {
			st.state = domain.LivenessStale
			fired = append(fired, domain.LivenessTransition{
				Endpoint: id, From: domain.LivenessAlive, To: domain.LivenessStale,
				Missed: missed, Timestamp: now,
			})
		}
		if st.state == domain.LivenessStale && silent >= lostAfter {
			st.state = domain.LivenessLost
			fired = append(fired, domain.LivenessTransition{
				Endpoint: id, From: domain.LivenessStale, To: domain.LivenessLost,
				Missed: missed, Timestamp: now,
			})
		}
	}
	m.mu.Unlock()

	for _, tr := range fired {
		m.emit(tr)
	}
}

func (m *HeartbeatMonitor) emit(tr domain.LivenessTransition) {
	m.logger.Infow("liveness transition",
		"endpoint", tr.Endpoint, "from", tr.From, "to", tr.To, "missed", tr.Missed)
	if m.sink != nil {
		m.sink(tr)
	}
}

// Run sweeps on the beat interval until ctx is cancelled.
func (m *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.BeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}
