package domain

// ChannelID is the wfb stream number shared by both ends of a hop.
// The demultiplexer on the radio side keys purely on this value, so ids
// must be unique per link across all media kinds.
type ChannelID int

// Fixed channel plan. Every endpoint of a deployment is statically
// configured with the same assignment; there is no negotiation.
const (
	ChannelVideo     ChannelID = 0
	ChannelHeartbeat ChannelID = 10
	ChannelTelemetry ChannelID = 20
	ChannelAudioUp   ChannelID = 49
	ChannelAudioDown ChannelID = 177
)

type MediaKind string

const (
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaHeartbeat MediaKind = "heartbeat"
	MediaTelemetry MediaKind = "telemetry"
)

type ChannelDirection string

const (
	DirectionUplink        ChannelDirection = "uplink"
	DirectionDownlink      ChannelDirection = "downlink"
	DirectionBidirectional ChannelDirection = "bidirectional"
)

// FECParams are passed opaquely to the wfb transport (-k/-n).
type FECParams struct {
	K int
	N int
}

// ChannelSpec describes one logical stream over a physical radio link.
// Immutable once a channel is opened from it.
type ChannelSpec struct {
	ID        ChannelID
	Kind      MediaKind
	Direction ChannelDirection
	FEC       FECParams
	KeyPath   string
	LinkID    int
}
