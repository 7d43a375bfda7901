package transport

import (
	"fmt"

	"emberlink/internal/core/domain"
	"emberlink/pkg/config"

	"go.uber.org/zap"
)

// Side selects which radio of a node a channel binds to. A relay bridges
// side A and side B; every other role only has side A.
type Side int

const (
	SideA Side = iota
	SideB
)

// BuildSpecs converts the configured channel plan into domain specs for
// one radio side.
func BuildSpecs(cfg *config.Config, side Side) ([]domain.ChannelSpec, error) {
	radio := cfg.RadioA
	if side == SideB {
		radio = cfg.RadioB
	}

	specs := make([]domain.ChannelSpec, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		kind, err := parseKind(ch.Kind)
		if err != nil {
			return nil, err
		}
		dir, err := parseDirection(ch.Direction)
		if err != nil {
			return nil, err
		}
		specs = append(specs, domain.ChannelSpec{
			ID:        domain.ChannelID(ch.ID),
			Kind:      kind,
			Direction: dir,
			FEC:       domain.FECParams{K: radio.FECK, N: radio.FECN},
			KeyPath:   radio.KeyPath,
			LinkID:    radio.LinkID,
		})
	}
	return specs, nil
}

// BuildTransport constructs the UDP transport for one radio side with its
// configured port assignments.
func BuildTransport(cfg *config.Config, side Side, logger *zap.SugaredLogger) *UDPTransport {
	radio := cfg.RadioA
	if side == SideB {
		radio = cfg.RadioB
	}

	ports := make(map[domain.ChannelID]Ports, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		pp := ch.A
		if side == SideB {
			pp = ch.B
		}
		ports[domain.ChannelID(ch.ID)] = Ports{Tx: pp.TxPort, Rx: pp.RxPort}
	}
	return NewUDPTransport(radio.Interface, ports, logger)
}

func parseKind(kind string) (domain.MediaKind, error) {
	switch kind {
	case "video":
		return domain.MediaVideo, nil
	case "audio":
		return domain.MediaAudio, nil
	case "heartbeat":
		return domain.MediaHeartbeat, nil
	case "telemetry":
		return domain.MediaTelemetry, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", kind)
	}
}

func parseDirection(dir string) (domain.ChannelDirection, error) {
	switch dir {
	case "uplink":
		return domain.DirectionUplink, nil
	case "downlink":
		return domain.DirectionDownlink, nil
	case "bidirectional":
		return domain.DirectionBidirectional, nil
	default:
		return "", fmt.Errorf("unknown direction %q", dir)
	}
}
