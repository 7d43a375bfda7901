package domain

import "time"

type Liveness string

const (
	LivenessAlive Liveness = "alive"
	LivenessStale Liveness = "stale"
	LivenessLost  Liveness = "lost"
)

// LinkKey identifies one directional link record. Two relays observing the
// same physical pair through asymmetric antennas produce two records with
// swapped From/To; the graph keeps both and never averages them.
type LinkKey struct {
	From  EndpointID
	To    EndpointID
	Iface InterfaceName
}

// Link is a directional quality record for one hop. RSSI is an
// exponentially weighted average in dBm; Loss is a sliding-window ratio.
type Link struct {
	Key           LinkKey
	RSSI          float64
	Loss          float64
	Unconfirmed   bool
	Liveness      Liveness
	LastHeartbeat time.Time
	UpdatedAt     time.Time
}

// QualityScore maps RSSI to a 0..100 operator-facing score.
// -90 dBm and below is unusable, -50 dBm and above is full quality.
func (l *Link) QualityScore() float64 {
	switch {
	case l.RSSI <= -90:
		return 0
	case l.RSSI >= -50:
		return 100
	default:
		return 100 * (l.RSSI + 90) / 40
	}
}

func (l *Link) Clone() *Link {
	c := *l
	return &c
}
