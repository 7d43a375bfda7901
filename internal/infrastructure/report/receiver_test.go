package report

import (
	"testing"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/infrastructure/monitoring"

	"go.uber.org/zap/zaptest"
)

var testMetrics = monitoring.NewMetricsCollector()

type captureTopology struct {
	endpoints []domain.Endpoint
	samples   []domain.QualitySample
}

func (c *captureTopology) ObserveEndpoint(ep domain.Endpoint)          { c.endpoints = append(c.endpoints, ep) }
func (c *captureTopology) ApplySample(s domain.QualitySample)          { c.samples = append(c.samples, s) }
func (c *captureTopology) ApplyTransition(domain.LivenessTransition)   {}
func (c *captureTopology) Snapshot() *domain.TopologyGraph             { return domain.NewTopologyGraph() }
func (c *captureTopology) Teardown(domain.EndpointID)                  {}
func (c *captureTopology) Reachable(domain.EndpointID) ([]domain.EndpointID, error) {
	return nil, nil
}
func (c *captureTopology) ShortestPath(_, _ domain.EndpointID) ([]domain.EndpointID, float64, error) {
	return nil, 0, nil
}

func newTestReceiver(t *testing.T) (*Receiver, *captureTopology) {
	t.Helper()
	topo := &captureTopology{}
	r := NewReceiver("127.0.0.1:0", topo, testMetrics, zaptest.NewLogger(t).Sugar())
	return r, topo
}

func validReport(t *testing.T, seq uint64) []byte {
	t.Helper()
	payload, err := Encode(FromSamples("relay-1", seq, []domain.QualitySample{
		{
			Link:      domain.LinkKey{From: "drone", To: "relay-1", Iface: "wlan0"},
			RSSI:      -60,
			Timestamp: time.Now(),
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestReceiver_AppliesSamplesAndRegistersSender(t *testing.T) {
	r, topo := newTestReceiver(t)

	r.handle(validReport(t, 1))

	if len(topo.samples) != 1 {
		t.Fatalf("want 1 sample, got %d", len(topo.samples))
	}
	if len(topo.endpoints) != 1 || topo.endpoints[0].ID != "relay-1" {
		t.Fatalf("sender must be registered as an endpoint, got %v", topo.endpoints)
	}
	if topo.endpoints[0].Role != domain.RoleRelayNode {
		t.Fatalf("sender role: want relay-node, got %s", topo.endpoints[0].Role)
	}

	if _, seen := r.LastReportAge(); !seen {
		t.Fatal("receiver must track report freshness")
	}
}

func TestReceiver_SkipsMalformedDatagrams(t *testing.T) {
	r, topo := newTestReceiver(t)

	r.handle([]byte("garbage"))
	r.handle([]byte(`{"seq":1,"links":[]}`))

	if len(topo.samples) != 0 || len(topo.endpoints) != 0 {
		t.Fatalf("malformed reports must be dropped, got %v %v", topo.samples, topo.endpoints)
	}
}

func TestReceiver_DropsStaleSequences(t *testing.T) {
	r, topo := newTestReceiver(t)

	r.handle(validReport(t, 5))
	r.handle(validReport(t, 4)) // reordered
	r.handle(validReport(t, 5)) // duplicate
	r.handle(validReport(t, 6))

	if len(topo.samples) != 2 {
		t.Fatalf("only seq 5 and 6 should apply, got %d samples", len(topo.samples))
	}
}

func TestReceiver_ResyncsAfterSenderRestart(t *testing.T) {
	r, topo := newTestReceiver(t)

	r.handle(validReport(t, 1000))
	// The relay restarted and its publisher counter began again.
	r.handle(validReport(t, 1))
	r.handle(validReport(t, 2))

	if len(topo.samples) != 3 {
		t.Fatalf("restarted sender must not be muted, got %d samples", len(topo.samples))
	}
}
