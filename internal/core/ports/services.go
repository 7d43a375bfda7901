package ports

import (
	"emberlink/internal/core/domain"
)

// TopologyService aggregates quality samples and liveness transitions into
// the live topology graph. It is the sole writer of liveness state.
type TopologyService interface {
	ObserveEndpoint(ep domain.Endpoint)
	ApplySample(sample domain.QualitySample)
	ApplyTransition(tr domain.LivenessTransition)

	// Snapshot returns a consistent deep copy for read-only consumers.
	Snapshot() *domain.TopologyGraph

	ShortestPath(from, to domain.EndpointID) ([]domain.EndpointID, float64, error)
	Reachable(from domain.EndpointID) ([]domain.EndpointID, error)

	// Teardown marks every link touching the endpoint as lost. Records are
	// never deleted so the operator retains last-known state.
	Teardown(ep domain.EndpointID)
}

// AlertSink receives deduplicated liveness transitions for operator display.
type AlertSink interface {
	Notify(tr domain.LivenessTransition)
}

// SignalSource yields one RSSI reading per call, typically parsed from the
// radio driver's receive statistics. An error marks the sample unconfirmed.
type SignalSource interface {
	Sample() (rssi float64, err error)
}
