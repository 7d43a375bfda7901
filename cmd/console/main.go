package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/services"
	httphandlers "emberlink/internal/handlers/http"
	"emberlink/internal/infrastructure/alerts"
	"emberlink/internal/infrastructure/beacon"
	"emberlink/internal/infrastructure/distributed"
	"emberlink/internal/infrastructure/middleware"
	"emberlink/internal/infrastructure/monitoring"
	"emberlink/internal/infrastructure/report"
	"emberlink/internal/infrastructure/transport"
	"emberlink/pkg/config"
	"emberlink/pkg/logger"
	"emberlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPaths := []string{
		"configs/console.yaml",
		"./configs/console.yaml",
		"/etc/emberlink/console.yaml",
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
	cfg.Node.Role = "server"

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "emberlink-console",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitoring.NewMetricsCollector()
	topology := services.NewTopologyService(log)
	topology.ObserveEndpoint(domain.Endpoint{
		ID:   domain.EndpointID(cfg.Node.ID),
		Role: domain.RoleServer,
	})

	alertServer := alerts.NewAlertServer(metrics, log)
	alertService := services.NewAlertService(log, alertServer)

	// Optional redis bus so standby consoles see the same alerts.
	var eventBus *distributed.EventBus
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unreachable, running standalone", "error", err)
		} else {
			eventBus = distributed.NewEventBus(client, uuid.New().String(), log)
			defer eventBus.Close()

			go func() {
				err := eventBus.Subscribe(ctx, func(event *distributed.Event) error {
					if event.Type != distributed.EventLivenessChanged {
						return nil
					}
					tr, err := distributed.DecodeTransition(event)
					if err != nil {
						return err
					}
					topology.ApplyTransition(tr)
					alertService.Notify(tr)
					metrics.UpdateLiveness(tr.Endpoint, tr.To)
					return nil
				})
				if err != nil && ctx.Err() == nil {
					log.Errorw("event bus subscription ended", "error", err)
				}
			}()
		}
	}

	heartbeatMonitor := services.NewHeartbeatMonitor(
		services.HeartbeatConfig{
			BeatInterval:    cfg.Heartbeat.BeatInterval,
			MissedThreshold: cfg.Heartbeat.MissedThreshold,
			LostThreshold:   cfg.Heartbeat.LostThreshold,
		},
		func(tr domain.LivenessTransition) {
			topology.ApplyTransition(tr)
			alertService.Notify(tr)
			metrics.UpdateLiveness(tr.Endpoint, tr.To)
			if eventBus != nil {
				if err := eventBus.PublishLivenessChanged(ctx, tr); err != nil {
					log.Warnw("failed to share transition", "error", err)
				}
			}
		},
		log,
	)
	go heartbeatMonitor.Run(ctx)

	receiver := report.NewReceiver(cfg.Console.ReportAddress, topology, metrics, log)
	go func() {
		if err := receiver.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalw("link report receiver failed", "error", err)
		}
	}()

	// The console listens for beats on its own radio side. Startup without
	// a radio attached is allowed for bench use; liveness then comes only
	// from relay reports.
	radioSide := transport.BuildTransport(cfg, transport.SideA, log)
	defer radioSide.Close()

	specs, err := transport.BuildSpecs(cfg, transport.SideA)
	if err != nil {
		log.Fatalw("invalid channel plan", "error", err)
	}
	for _, spec := range specs {
		if spec.Kind != domain.MediaHeartbeat {
			continue
		}
		ch, err := radioSide.Open(spec)
		if err != nil {
			log.Warnw("heartbeat channel unavailable", "error", err)
			break
		}
		listener := beacon.NewListener(ch, heartbeatMonitor, func(b domain.Beat) {
			metrics.RecordBeat()
			topology.ObserveEndpoint(domain.Endpoint{
				ID:       b.Sender,
				Role:     domain.RoleUserUnit,
				Liveness: domain.LivenessAlive,
				LastSeen: time.Now(),
			})
		}, log)
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorw("beat listener failed", "error", err)
			}
		}()
		break
	}

	health := monitoring.NewHealthChecker()
	health.AddCheck("link_reports", func(ctx context.Context) (bool, error) {
		age, seen := receiver.LastReportAge()
		if !seen {
			return true, nil
		}
		return age < 60*time.Second, nil
	}, 2*time.Second)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.OperatorSecret, cfg.Auth.TokenTTL)
	authHandler.SetupRoutes(router)

	topologyHandler := httphandlers.NewTopologyHandler(topology, heartbeatMonitor, alertServer, health)
	topologyHandler.SetupRoutes(router, authService)

	srv := &http.Server{
		Addr:         cfg.Console.Address,
		Handler:      router,
		ReadTimeout:  cfg.Console.ReadTimeout,
		WriteTimeout: cfg.Console.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting console", "address", cfg.Console.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("console server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Console.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracing", "error", err)
	}

	log.Info("console stopped")
}
