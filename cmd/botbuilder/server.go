package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rasad8686/BotBuilder-Platform-sub005/agent"
	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/engine"
	"github.com/rasad8686/BotBuilder-Platform-sub005/events"
	"github.com/rasad8686/BotBuilder-Platform-sub005/internal/database"
	"github.com/rasad8686/BotBuilder-Platform-sub005/internal/metrics"
	"github.com/rasad8686/BotBuilder-Platform-sub005/internal/telemetry"
	"github.com/rasad8686/BotBuilder-Platform-sub005/llm"
	"github.com/rasad8686/BotBuilder-Platform-sub005/store"
)

// Server wires the engine, the store, and the event channel behind two HTTP
// listeners: the API/WebSocket port and the Prometheus metrics port.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	pool      *database.Pool
	engine    *engine.Engine
	channel   *events.Channel
	gateway   *events.Gateway
	bridge    *events.Bridge
	providers *telemetry.Providers

	httpServer    *http.Server
	metricsServer *http.Server
}

// NewServer builds the full service from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without it", zap.Error(err))
	}

	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool, err := database.NewPool(db, database.DefaultPoolConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("configure pool: %w", err)
	}
	stores := store.NewStores(pool.DB(), logger)

	collector := metrics.NewCollector("botbuilder", logger)
	channel := events.NewChannel(logger, collector)

	var bridge *events.Bridge
	if cfg.Redis.Enabled {
		client, err := events.NewBridgeClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis bridge: %w", err)
		}
		bridge = events.NewBridge(client, channel, cfg.Redis.KeyPrefix, logger)
	}

	provider := llm.NewRateLimitedClient(llm.NewHTTPClient(cfg.LLM, logger), cfg.LLM, logger)
	resolver := agent.NewResolver(provider, logger)

	eng := engine.New(engine.Options{
		Workflows:  stores.Workflows,
		Agents:     stores.Agents,
		Executions: stores.Executions,
		Steps:      stores.Steps,
		Channel:    channel,
		Resolver:   resolver,
		Metrics:    collector,
		Logger:     logger,
		Engine:     cfg.Engine,
	})

	s := &Server{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "server")),
		pool:      pool,
		engine:    eng,
		channel:   channel,
		gateway:   events.NewGateway(channel, logger),
		bridge:    bridge,
		providers: providers,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /ws", s.gateway)
	mux.HandleFunc("POST /api/v1/workflows/{id}/execute", s.handleExecute)
	return mux
}

// Run serves until SIGINT/SIGTERM, then shuts both listeners down
// gracefully.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.bridge != nil {
		if err := s.bridge.Start(ctx); err != nil {
			return fmt.Errorf("start redis bridge: %w", err)
		}
		defer s.bridge.Stop()
	}

	go s.engine.ObserveSignals(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("metrics server listening", zap.String("addr", s.metricsServer.Addr))
		if err := s.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("shutting down")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics shutdown", zap.Error(err))
		}
		if err := s.providers.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("telemetry shutdown", zap.Error(err))
		}
		if err := s.pool.Close(); err != nil {
			s.logger.Warn("pool close", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	stats := s.pool.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"db_open_conns": stats.OpenConnections,
		"db_in_use":     stats.InUse,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

type executeRequest struct {
	Input       any   `json:"input"`
	RequesterID int64 `json:"requesterId"`
}

// handleExecute runs a workflow synchronously. The response is always a
// structured result; failed runs come back with status "failed", not an
// HTTP error.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	workflowID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result := s.engine.Execute(r.Context(), workflowID, req.Input, req.RequesterID)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
