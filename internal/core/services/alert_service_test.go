package services

import (
	"testing"
	"time"

	"emberlink/internal/core/domain"

	"go.uber.org/zap/zaptest"
)

type captureSink struct {
	got []domain.LivenessTransition
}

func (c *captureSink) Notify(tr domain.LivenessTransition) {
	c.got = append(c.got, tr)
}

func staleTransition(ep domain.EndpointID) domain.LivenessTransition {
	return domain.LivenessTransition{
		Endpoint:  ep,
		From:      domain.LivenessAlive,
		To:        domain.LivenessStale,
		Timestamp: time.Now(),
	}
}

func TestAlertService_ForwardsToAllSinks(t *testing.T) {
	s1 := &captureSink{}
	s2 := &captureSink{}
	svc := NewAlertService(zaptest.NewLogger(t).Sugar(), s1)
	svc.AddSink(s2)

	svc.Notify(staleTransition("unit-1"))

	if len(s1.got) != 1 || len(s2.got) != 1 {
		t.Fatalf("both sinks should see the alert, got %d and %d", len(s1.got), len(s2.got))
	}
}

func TestAlertService_DeduplicatesRepeatedState(t *testing.T) {
	sink := &captureSink{}
	svc := NewAlertService(zaptest.NewLogger(t).Sugar(), sink)

	svc.Notify(staleTransition("unit-1"))
	svc.Notify(staleTransition("unit-1"))
	svc.Notify(staleTransition("unit-1"))

	if len(sink.got) != 1 {
		t.Fatalf("repeated state must alert once, got %d", len(sink.got))
	}
}

func TestAlertService_StateChangeAlertsAgain(t *testing.T) {
	sink := &captureSink{}
	svc := NewAlertService(zaptest.NewLogger(t).Sugar(), sink)

	svc.Notify(staleTransition("unit-1"))
	svc.Notify(domain.LivenessTransition{
		Endpoint: "unit-1", From: domain.LivenessStale, To: domain.LivenessLost, Timestamp: time.Now(),
	})
	svc.Notify(domain.LivenessTransition{
		Endpoint: "unit-1", From: domain.LivenessLost, To: domain.LivenessAlive, Timestamp: time.Now(),
	})

	if len(sink.got) != 3 {
		t.Fatalf("each distinct state should alert, got %d", len(sink.got))
	}
}

func TestAlertService_EndpointsAreIndependent(t *testing.T) {
	sink := &captureSink{}
	svc := NewAlertService(zaptest.NewLogger(t).Sugar(), sink)

	svc.Notify(staleTransition("unit-1"))
	svc.Notify(staleTransition("unit-2"))

	if len(sink.got) != 2 {
		t.Fatalf("dedup is per endpoint, got %d alerts", len(sink.got))
	}
}
