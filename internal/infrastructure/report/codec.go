package report

import (
	"encoding/json"
	"fmt"
	"time"

	"emberlink/internal/core/domain"
)

// LinkRecord is one directional link observation on the wire.
type LinkRecord struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Iface       string    `json:"iface"`
	RSSI        float64   `json:"rssi"`
	Loss        float64   `json:"loss"`
	Unconfirmed bool      `json:"unconfirmed,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LinkReport is the UDP datagram a relay pushes to the console on every
// report tick. Seq lets the console spot reordered datagrams.
type LinkReport struct {
	Sender string       `json:"sender"`
	Seq    uint64       `json:"seq"`
	Links  []LinkRecord `json:"links"`
}

func Encode(r LinkReport) ([]byte, error) {
	return json.Marshal(r)
}

func Decode(data []byte) (LinkReport, error) {
	var r LinkReport
	if err := json.Unmarshal(data, &r); err != nil {
		return LinkReport{}, fmt.Errorf("decode link report: %w", err)
	}
	if r.Sender == "" {
		return LinkReport{}, fmt.Errorf("decode link report: missing sender")
	}
	for i, l := range r.Links {
		if l.From == "" || l.To == "" {
			return LinkReport{}, fmt.Errorf("decode link report: link %d missing endpoints", i)
		}
	}
	return r, nil
}

// FromSamples converts the relay's current estimates into wire records.
func FromSamples(sender domain.EndpointID, seq uint64, samples []domain.QualitySample) LinkReport {
	records := make([]LinkRecord, 0, len(samples))
	for _, s := range samples {
		records = append(records, LinkRecord{
			From:        string(s.Link.From),
			To:          string(s.Link.To),
			Iface:       string(s.Link.Iface),
			RSSI:        s.RSSI,
			Loss:        s.Loss,
			Unconfirmed: s.Unconfirmed,
			Timestamp:   s.Timestamp,
		})
	}
	return LinkReport{Sender: string(sender), Seq: seq, Links: records}
}

// ToSamples converts wire records back into samples for the topology graph.
func (r LinkReport) ToSamples() []domain.QualitySample {
	samples := make([]domain.QualitySample, 0, len(r.Links))
	for _, l := range r.Links {
		samples = append(samples, domain.QualitySample{
			Link: domain.LinkKey{
				From:  domain.EndpointID(l.From),
				To:    domain.EndpointID(l.To),
				Iface: domain.InterfaceName(l.Iface),
			},
			RSSI:        l.RSSI,
			Loss:        l.Loss,
			Unconfirmed: l.Unconfirmed,
			Timestamp:   l.Timestamp,
		})
	}
	return samples
}
