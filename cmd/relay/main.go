package main

import (
	"context"
	"os/signal"
	"syscall"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/services"
	"emberlink/internal/infrastructure/beacon"
	"emberlink/internal/infrastructure/monitoring"
	"emberlink/internal/infrastructure/radio"
	"emberlink/internal/infrastructure/relay"
	"emberlink/internal/infrastructure/report"
	"emberlink/internal/infrastructure/rtpseq"
	"emberlink/internal/infrastructure/transport"
	"emberlink/pkg/config"
	"emberlink/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPaths := []string{
		"configs/relay.yaml",
		"./configs/relay.yaml",
		"/etc/emberlink/relay.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}
	cfg.Node.Role = "relay-node"

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	nodeID := domain.EndpointID(cfg.Node.ID)
	metrics := monitoring.NewMetricsCollector()
	quality := services.NewQualityMonitor(cfg.Quality.RSSIAlpha, cfg.Quality.LossWindow, log)

	// One directional link per incoming radio: whatever arrives on a side
	// was sent by that side's configured neighbor.
	linkA := domain.LinkKey{
		From:  domain.EndpointID(cfg.Relay.PeerA),
		To:    nodeID,
		Iface: domain.InterfaceName(cfg.RadioA.Interface),
	}
	linkB := domain.LinkKey{
		From:  domain.EndpointID(cfg.Relay.PeerB),
		To:    nodeID,
		Iface: domain.InterfaceName(cfg.RadioB.Interface),
	}

	specs, err := transport.BuildSpecs(cfg, transport.SideA)
	if err != nil {
		log.Fatalw("invalid channel plan", "error", err)
	}

	sideA := transport.BuildTransport(cfg, transport.SideA, log)
	sideB := transport.BuildTransport(cfg, transport.SideB, log)
	defer sideA.Close()
	defer sideB.Close()

	if cfg.Relay.LaunchWFB {
		launchWFB(ctx, cfg, quality, linkA, linkB, log)
	}

	forwarder := relay.NewForwarder(sideA, sideB, specs, metrics, log)

	// Beats carry a per-sender sequence; gaps seen in transit feed loss
	// accounting for the link the beat arrived on.
	forwarder.AddTap(func(spec domain.ChannelSpec, direction string, payload []byte) {
		if spec.Kind != domain.MediaHeartbeat {
			return
		}
		b, ok := beacon.DecodeBeat(payload)
		if !ok {
			return
		}
		quality.ObserveSeq(inboundLink(direction, linkA, linkB), b.Seq)
	})

	// Video is RTP; the 16-bit sequence extends across wrap-around.
	videoTrackers := map[string]*rtpseq.Tracker{
		"a_to_b": {},
		"b_to_a": {},
	}
	forwarder.AddTap(func(spec domain.ChannelSpec, direction string, payload []byte) {
		if spec.Kind != domain.MediaVideo {
			return
		}
		seq, ok := videoTrackers[direction].Observe(payload)
		if !ok {
			return
		}
		quality.ObserveSeq(inboundLink(direction, linkA, linkB), seq)
	})

	publisher := report.NewPublisher(nodeID, cfg.Relay.ReportTarget, cfg.Relay.ReportInterval, quality.Samples, log)
	go func() {
		if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalw("link report publisher failed", "error", err)
		}
	}()

	log.Infow("starting relay",
		"node", cfg.Node.ID,
		"radio_a", cfg.RadioA.Interface, "radio_b", cfg.RadioB.Interface,
		"channels", len(specs))

	if err := forwarder.Run(ctx); err != nil {
		log.Fatalw("forwarder failed", "error", err)
	}

	log.Info("relay stopped")
}

// inboundLink maps a pump direction to the link its payloads arrived on.
func inboundLink(direction string, linkA, linkB domain.LinkKey) domain.LinkKey {
	if direction == "a_to_b" {
		return linkA
	}
	return linkB
}

// launchWFB starts the wfb process pairs and wires their stats into the
// quality monitor. Deployments that manage wfb externally leave this off
// and only the loss accounting from sequence gaps remains.
func launchWFB(ctx context.Context, cfg *config.Config, quality *services.QualityMonitor, linkA, linkB domain.LinkKey, log *zap.SugaredLogger) {
	sides := []struct {
		radio config.RadioConfig
		side  transport.Side
		link  domain.LinkKey
	}{
		{cfg.RadioA, transport.SideA, linkA},
		{cfg.RadioB, transport.SideB, linkB},
	}

	for _, s := range sides {
		params := radio.Params{
			Interface: s.radio.Interface,
			LinkID:    s.radio.LinkID,
			KeyPath:   s.radio.KeyPath,
			FEC:       domain.FECParams{K: s.radio.FECK, N: s.radio.FECN},
		}

		stats := radio.NewStatsReader(3*cfg.Quality.SampleInterval, log)

		specs, err := transport.BuildSpecs(cfg, s.side)
		if err != nil {
			log.Fatalw("invalid channel plan", "error", err)
		}
		for i, spec := range specs {
			pp := portsFor(cfg, s.side, i)

			rxCmd := radio.RxCommand(ctx, params, spec, pp.RxPort)
			stderr, pipeErr := rxCmd.StderrPipe()
			if err := rxCmd.Start(); err != nil {
				log.Warnw("wfb_rx not started", "interface", s.radio.Interface, "channel", spec.ID, "error", err)
				continue
			}
			// The stats scanner only gets a goroutine once the pipe has a
			// writer; it exits when the process does and the pipe closes.
			if pipeErr == nil {
				go stats.Run(ctx, stderr)
			}

			txCmd := radio.TxCommand(ctx, params, spec, pp.TxPort)
			if err := txCmd.Start(); err != nil {
				log.Warnw("wfb_tx not started", "interface", s.radio.Interface, "channel", spec.ID, "error", err)
			}
		}

		go quality.RunSampler(ctx, s.link, stats, cfg.Quality.SampleInterval)
	}
}

func portsFor(cfg *config.Config, side transport.Side, idx int) config.PortPair {
	if side == transport.SideB {
		return cfg.Channels[idx].B
	}
	return cfg.Channels[idx].A
}
