package domain

import "time"

// QualitySample is one RSSI/loss observation for a directional link,
// produced by a relay's link quality monitor.
type QualitySample struct {
	Link        LinkKey
	RSSI        float64
	Loss        float64
	Unconfirmed bool
	Timestamp   time.Time
}

// LivenessTransition is emitted by the heartbeat monitor on state change
// only, never on every beat.
type LivenessTransition struct {
	Endpoint  EndpointID
	From      Liveness
	To        Liveness
	Missed    int
	Timestamp time.Time
}

// Beat is the heartbeat wire payload. Seq increases monotonically per
// sender so gaps double as a loss signal.
type Beat struct {
	Sender EndpointID `json:"sender"`
	Seq    uint64     `json:"seq"`
	SentAt time.Time  `json:"sent_at"`
}
