package report

import (
	"testing"
	"time"

	"emberlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	samples := []domain.QualitySample{
		{
			Link:      domain.LinkKey{From: "drone", To: "relay-1", Iface: "wlan0"},
			RSSI:      -58.5,
			Loss:      0.04,
			Timestamp: now,
		},
		{
			Link:        domain.LinkKey{From: "ground", To: "relay-1", Iface: "wlan1"},
			RSSI:        -71,
			Unconfirmed: true,
			Timestamp:   now,
		},
	}

	payload, err := Encode(FromSamples("relay-1", 7, samples))
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "relay-1", decoded.Sender)
	assert.Equal(t, uint64(7), decoded.Seq)
	assert.Equal(t, samples, decoded.ToSamples())
}

func TestDecode_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"missing sender", `{"seq":1,"links":[]}`},
		{"link without endpoints", `{"sender":"r1","links":[{"rssi":-60}]}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecode_AcceptsEmptyLinkList(t *testing.T) {
	rep, err := Decode([]byte(`{"sender":"relay-1","seq":1,"links":[]}`))
	require.NoError(t, err)
	assert.Empty(t, rep.ToSamples())
}
