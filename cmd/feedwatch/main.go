package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/archive"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/config"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/metrics"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/paginator"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/rest"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/socket"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedwatch.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"operator_id", cfg.Operator.ID,
		"rest_url", cfg.API.RestURL,
		"socket_url", cfg.API.SocketURL,
		"sport_id", cfg.Feed.SportID,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New("")

	// Session coordinator, fed by the anonymous login endpoint. The login
	// client carries no coordinator so refresh cannot recurse.
	authClient := rest.NewClient(cfg.API.RestURL, nil,
		rest.WithLogger(logger),
		rest.WithTimeout(cfg.API.Timeout),
	)
	refresher := rest.NewSessionRefresher(authClient, "")
	coordinator := session.NewCoordinator(refresher, logger,
		session.WithTTLSlack(cfg.Session.TTLSlack),
		session.WithMetrics(m),
	)
	coordinator.UpdateCredentials(session.Credentials{
		Username: cfg.Session.Username,
		Secret:   cfg.Session.Secret,
	})

	// Optional delta archive
	var recorder *archive.Recorder
	if cfg.ArchiveEnabled() {
		logger.Info("connecting to archive database",
			"host", cfg.Archive.Postgres.Host,
			"port", cfg.Archive.Postgres.Port,
			"database", cfg.Archive.Postgres.Name,
		)
		pool, err := archive.Connect(ctx, cfg.Archive.Postgres)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		recorder = archive.NewRecorder(cfg.Archive, pool, logger, m)
		if err := recorder.Start(ctx); err != nil {
			logger.Error("failed to start archive recorder", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			recorder.Stop(stopCtx)
		}()
	}

	// Socket connector
	socketCfg := socket.DefaultConfig()
	socketCfg.URL = cfg.API.SocketURL
	socketCfg.RequiresAuth = true
	socketCfg.SessionHeader = cfg.Session.SessionHeader
	socketCfg.CommandTimeout = cfg.Socket.CommandTimeout
	socketCfg.SubscriptionBuffer = cfg.Socket.SubscriptionBuffer
	socketCfg.Client.PingTimeout = cfg.Socket.PingTimeout
	socketCfg.Client.WriteTimeout = cfg.Socket.WriteTimeout
	socketCfg.Client.BufferSize = cfg.Socket.BufferSize
	connector := socket.NewConnector(socketCfg, coordinator, logger)

	// Paginator for the configured sport
	pagCfg := paginator.Config{
		Topic: transport.Topic{
			OperatorID:      cfg.Operator.ID,
			Language:        cfg.Operator.Language,
			SportID:         cfg.Feed.SportID,
			NumberOfEvents:  cfg.Feed.NumberOfEvents,
			MarketsPerEvent: cfg.Feed.MarketsPerEvent,
		},
		PageStep: cfg.Feed.PageStep,
	}
	if recorder != nil {
		pagCfg.Tap = recorder.Record
	}

	var pag *paginator.Paginator
	if cfg.Feed.InPlayOnly {
		pag = paginator.NewLive(pagCfg, connector, logger, m)
	} else {
		pag = paginator.NewPreLive(pagCfg, connector, logger, m)
	}

	// Metrics and health server
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(connector, pag))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Open the feed
	events, err := pag.Subscribe(ctx)
	if err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	defer pag.Unsubscribe()

	logger.Info("feedwatch running",
		"operator_id", cfg.Operator.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	consume(ctx, logger, events)

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("feedwatch stopped")
}

// consume logs a summary of every feed emission until ctx ends or the feed
// closes for good.
func consume(ctx context.Context, logger *slog.Logger, events <-chan transport.SubscribableContent[[]model.EventsGroup]) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case transport.EventConnect:
				logger.Info("feed connected", "handle", ev.Handle)
			case transport.EventInitialContent, transport.EventUpdatedContent:
				matches := 0
				for _, g := range ev.Content {
					matches += len(g.Matches)
				}
				logger.Info("feed content",
					"type", ev.Type,
					"groups", len(ev.Content),
					"matches", matches,
				)
			case transport.EventDisconnect:
				logger.Warn("feed disconnected")
			}
		}
	}
}

// healthHandler reports connector and paginator state.
func healthHandler(connector *socket.Connector, pag *paginator.Paginator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if connector.IsConnected() {
			health.Components["socket"] = "connected"
		} else {
			health.Status = "degraded"
			health.Components["socket"] = "disconnected"
		}
		health.Components["paginator"] = string(pag.State())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
