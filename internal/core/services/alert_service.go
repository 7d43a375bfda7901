package services

import (
	"sync"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AlertService deduplicates liveness transitions and fans them out to the
// registered sinks (websocket server, event bus, metrics). A repeated
// report of the same state for an endpoint raises no second alert.
type AlertService struct {
	mu       sync.Mutex
	lastSeen map[domain.EndpointID]domain.Liveness
	sinks    []ports.AlertSink

	logLimiter *rate.Limiter
	logger     *zap.SugaredLogger
}

func NewAlertService(logger *zap.SugaredLogger, sinks ...ports.AlertSink) *AlertService {
	return &AlertService{
		lastSeen: make(map[domain.EndpointID]domain.Liveness),
		sinks:    sinks,
		// A flapping link can transition every sweep; cap the log noise
		// without dropping the alerts themselves.
		logLimiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
	}
}

func (a *AlertService) AddSink(sink ports.AlertSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, sink)
}

// Notify forwards the transition to every sink unless the endpoint is
// already known to be in the target state.
func (a *AlertService) Notify(tr domain.LivenessTransition) {
	a.mu.Lock()
	if a.lastSeen[tr.Endpoint] == tr.To {
		a.mu.Unlock()
		return
	}
	a.lastSeen[tr.Endpoint] = tr.To
	sinks := append([]ports.AlertSink(nil), a.sinks...)
	a.mu.Unlock()

	if a.logLimiter.Allow() {
		a.logger.Infow("operator alert",
			"endpoint", tr.Endpoint, "from", tr.From, "to", tr.To)
	}
	for _, sink := range sinks {
		sink.Notify(tr)
	}
}
