package domain

import "testing"

func TestQualityScore(t *testing.T) {
	tests := []struct {
		rssi float64
		want float64
	}{
		{-100, 0},
		{-90, 0},
		{-70, 50},
		{-50, 100},
		{-30, 100},
	}
	for _, tt := range tests {
		l := Link{RSSI: tt.rssi}
		if got := l.QualityScore(); got != tt.want {
			t.Errorf("rssi %f: want score %f, got %f", tt.rssi, tt.want, got)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := &Link{Key: LinkKey{From: "a", To: "b", Iface: "wlan0"}, RSSI: -60}
	c := l.Clone()
	c.RSSI = -10
	if l.RSSI != -60 {
		t.Fatal("clone must not share state with the original")
	}
}

func TestNeighborsDeduplicates(t *testing.T) {
	g := NewTopologyGraph()
	// Two directional records for the same pair plus one further hop.
	g.Adjacency["b"] = []LinkKey{
		{From: "a", To: "b", Iface: "wlan0"},
		{From: "b", To: "a", Iface: "wlan0"},
		{From: "b", To: "c", Iface: "wlan1"},
	}

	got := g.Neighbors("b")
	if len(got) != 2 {
		t.Fatalf("want 2 neighbors, got %v", got)
	}
	seen := map[EndpointID]bool{}
	for _, n := range got {
		seen[n] = true
	}
	if !seen["a"] || !seen["c"] {
		t.Fatalf("want a and c, got %v", got)
	}
}
