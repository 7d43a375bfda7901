package radio

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestParseRXAnt(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{
			name: "single antenna",
			line: "1632470402 RX_ANT 0:120:-52",
			want: -52,
			ok:   true,
		},
		{
			name: "picks strongest antenna",
			line: "1632470402 RX_ANT 5:3:20 0:120:-52:-48:-61",
			want: -48,
			ok:   true,
		},
		{
			name: "not a stats line",
			line: "1632470402 PKT 12:0:0:0",
			ok:   false,
		},
		{
			name: "no rssi fields",
			line: "RX_ANT 5:3:20",
			ok:   false,
		},
		{
			name: "ignores non numeric chunks",
			line: "RX_ANT junk:data 1:2:-70",
			want: -70,
			ok:   true,
		},
		{
			name: "empty line",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRXAnt(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok: want %v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Fatalf("rssi: want %f, got %f", tt.want, got)
			}
		})
	}
}

func TestStatsReader_SampleTracksLatestReading(t *testing.T) {
	s := NewStatsReader(time.Minute, zaptest.NewLogger(t).Sugar())

	stream := strings.Join([]string{
		"1632470402 RX_ANT 0:120:-60",
		"1632470403 PKT 12:0:0:0",
		"1632470403 RX_ANT 0:118:-55",
	}, "\n")

	if err := s.Run(context.Background(), strings.NewReader(stream)); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := s.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if got != -55 {
		t.Fatalf("want latest reading -55, got %f", got)
	}
}

func TestStatsReader_SampleFailsWithoutReading(t *testing.T) {
	s := NewStatsReader(time.Minute, zaptest.NewLogger(t).Sugar())
	if _, err := s.Sample(); err == nil {
		t.Fatal("expected error before any reading")
	}
}

func TestStatsReader_RunEndsWhenStreamCloses(t *testing.T) {
	s := NewStatsReader(time.Minute, zaptest.NewLogger(t).Sugar())

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), pr) }()
	pw.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run must return when the stats stream closes")
	}
}

func TestStatsReader_SampleFailsWhenStale(t *testing.T) {
	s := NewStatsReader(10*time.Millisecond, zaptest.NewLogger(t).Sugar())
	if err := s.Run(context.Background(), strings.NewReader("RX_ANT 0:1:-60")); err != nil {
		t.Fatalf("run: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := s.Sample(); err == nil {
		t.Fatal("expected staleness error")
	}
}
