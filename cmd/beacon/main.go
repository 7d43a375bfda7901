package main

import (
	"context"
	"os/signal"
	"syscall"

	"emberlink/internal/core/domain"
	"emberlink/internal/infrastructure/beacon"
	"emberlink/internal/infrastructure/transport"
	"emberlink/pkg/config"
	"emberlink/pkg/logger"
)

// The beacon runs on body-worn units. It does one thing: emit a beat on
// the heartbeat channel every interval so the console can tell presence
// from absence.
func main() {
	configPaths := []string{
		"configs/beacon.yaml",
		"./configs/beacon.yaml",
		"/etc/emberlink/beacon.yaml",
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
	cfg.Node.Role = "user-unit"

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	radioSide := transport.BuildTransport(cfg, transport.SideA, log)
	defer radioSide.Close()

	specs, err := transport.BuildSpecs(cfg, transport.SideA)
	if err != nil {
		log.Fatalw("invalid channel plan", "error", err)
	}

	var heartbeatSpec *domain.ChannelSpec
	for i := range specs {
		if specs[i].Kind == domain.MediaHeartbeat {
			heartbeatSpec = &specs[i]
			break
		}
	}
	if heartbeatSpec == nil {
		log.Fatalw("no heartbeat channel in the channel plan")
	}

	ch, err := radioSide.Open(*heartbeatSpec)
	if err != nil {
		log.Fatalw("failed to open heartbeat channel", "error", err)
	}
	defer ch.Close()

	sender := beacon.NewSender(domain.EndpointID(cfg.Node.ID), ch, cfg.Heartbeat.BeatInterval, log)

	log.Infow("starting beacon", "node", cfg.Node.ID, "interval", cfg.Heartbeat.BeatInterval)
	if err := sender.Run(ctx); err != nil {
		log.Fatalw("beacon failed", "error", err)
	}
	log.Info("beacon stopped")
}
