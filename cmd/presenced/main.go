package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atria-live/presence/internal/api"
	"github.com/atria-live/presence/internal/cache"
	"github.com/atria-live/presence/internal/config"
	"github.com/atria-live/presence/internal/connection"
	"github.com/atria-live/presence/internal/database"
	"github.com/atria-live/presence/internal/dispatch"
	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/poller"
	"github.com/atria-live/presence/internal/router"
	"github.com/atria-live/presence/internal/session"
	"github.com/atria-live/presence/internal/version"
	"github.com/atria-live/presence/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/presenced.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting presenced",
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
		"instance_id", cfg.Instance.ID,
		"room_id", cfg.Platform.RoomID,
		"cache_backend", cfg.Cache.Backend,
		"journal_enabled", cfg.Database.Enabled,
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

	// Session state carries the credentials and the server-assigned identity.
	sess := session.NewState(cfg.Platform.APIToken, cfg.Platform.RoomID)

	// REST client for room metadata and roster loads
	apiClient := api.NewClient(
		cfg.Platform.RestURL,
		cfg.Platform.APIToken,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Platform.Timeout),
		api.WithRetries(cfg.Platform.MaxRetries, time.Second),
	)

	// Resolve the room up front so a bad token or room id fails fast.
	room, err := apiClient.GetRoom(ctx, cfg.Platform.RoomID)
	if err != nil {
		logger.Error("failed to resolve room", "error", err)
		os.Exit(1)
	}
	logger.Info("room resolved",
		"room_name", room.Name,
		"owner_id", room.OwnerID,
		"user_count", room.UserCount,
	)

	// Occupancy cache
	users, redisClient, err := buildCache(ctx, cfg, apiClient, logger)
	if err != nil {
		logger.Error("failed to build cache", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Event dispatch registry
	reg := dispatch.NewRegistry(logger)

	// Optional presence journal
	var pool *pgxpool.Pool
	var journal *writer.PresenceWriter
	if cfg.Database.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		journal = writer.NewPresenceWriter(writer.WriterConfig{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
		}, pool, logger)
		journal.Subscribe(reg)

		if err := journal.Start(ctx); err != nil {
			logger.Error("failed to start journal writer", "error", err)
			os.Exit(1)
		}
	}

	// Frame router feeding the registry and the cache
	rtr := router.NewRouter(router.DefaultRouterConfig(), reg, users, sess, logger)

	// Gateway connection supervisor
	sup := connection.NewSupervisor(connection.SupervisorConfig{
		GatewayURL:        cfg.Platform.GatewayURL,
		Events:            cfg.Platform.Events,
		HeartbeatInterval: cfg.Connection.HeartbeatInterval,
		ReconnectDelay:    cfg.Connection.ReconnectDelay,
		HandshakeTimeout:  cfg.Connection.HandshakeTimeout,
		WriteTimeout:      cfg.Connection.WriteTimeout,
		BufferSize:        cfg.Connection.BufferSize,
	}, sess, rtr, logger)

	if err := sup.Connect(ctx); err != nil {
		logger.Error("failed to connect to gateway", "error", err)
		os.Exit(1)
	}

	// Roster reconciliation poller
	var rec *poller.Poller
	if cfg.Poller.Enabled && users != nil {
		pollCfg := poller.DefaultConfig()
		pollCfg.Interval = cfg.Poller.Interval
		rec = poller.New(pollCfg, users, sup.IsOpen, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start roster poller", "error", err)
			os.Exit(1)
		}
	}

	// Health endpoint plus shutdown coordination
	g, gctx := errgroup.WithContext(ctx)

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(sup, sess, users, rtr, journal, rec, pool),
	}

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	logger.Info("presenced running",
		"instance_id", cfg.Instance.ID,
		"room_id", cfg.Platform.RoomID,
		"health_url", fmt.Sprintf("http://localhost:%d/healthz", cfg.Health.Port),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("component failed", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop in reverse dependency order: poller first, then the gateway
	// session, then the journal so its final flush sees every queued row.
	if rec != nil {
		rec.Stop(shutdownCtx)
	}
	if err := sup.Shutdown(); err != nil {
		logger.Warn("gateway shutdown", "error", err)
	}
	if journal != nil {
		journal.Stop(shutdownCtx)
	}

	logger.Info("presenced stopped")
}

// buildCache constructs the configured occupancy cache backend. The redis
// client is returned for lifecycle cleanup; it is nil for other backends.
func buildCache(ctx context.Context, cfg *config.Config, apiClient *api.Client, logger *slog.Logger) (cache.UserCache, *redis.Client, error) {
	loader := apiClient.RoomUsersLoader(cfg.Platform.RoomID)

	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory(loader, logger), nil, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		rc := cache.NewRedis(rdb, cfg.Platform.RoomID, cfg.Cache.Redis.KeyPrefix,
			cfg.Cache.Redis.OpTimeout, loader, logger)
		return rc, rdb, nil

	case "none":
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// occupancyCounter is satisfied by cache backends that can report room size.
type occupancyCounter interface {
	Count(ctx context.Context) (int, error)
}

// rosterLister is satisfied by the memory backend for the debug endpoint.
type rosterLister interface {
	Users() []model.User
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	sup *connection.Supervisor,
	sess *session.State,
	users cache.UserCache,
	rtr router.Router,
	journal *writer.PresenceWriter,
	rec *poller.Poller,
	pool *pgxpool.Pool,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		snap := sess.Snapshot()
		state := sup.State()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			State      string         `json:"state"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			State:      state.String(),
			Components: make(map[string]any),
		}

		if state != connection.StateConnected {
			health.Status = "degraded"
		}

		health.Components["session"] = map[string]any{
			"room_id":       snap.Auth.RoomID,
			"room_name":     snap.Auth.RoomName,
			"connection_id": snap.Info.ConnectionID,
			"established":   snap.Info.Populated(),
		}

		supStats := sup.Stats()
		health.Components["gateway"] = map[string]any{
			"connect_attempts": supStats.ConnectAttempts,
			"reconnects":       supStats.ReconnectsScheduled,
			"frames_delivered": supStats.FramesDelivered,
			"heartbeats_sent":  supStats.HeartbeatsSent,
			"heartbeat_errors": supStats.HeartbeatErrors,
		}

		rtrStats := rtr.Stats()
		health.Components["router"] = map[string]any{
			"received":     rtrStats.FramesReceived,
			"dispatched":   rtrStats.FramesDispatched,
			"dropped":      rtrStats.FramesDropped,
			"parse_errors": rtrStats.ParseErrors,
			"cache_errors": rtrStats.CacheErrors,
		}

		if counter, ok := users.(occupancyCounter); ok {
			if n, err := counter.Count(ctx); err == nil {
				health.Components["occupancy"] = n
			}
		}

		if journal != nil {
			jstats := journal.Stats()
			health.Components["journal"] = map[string]any{
				"inserts":   jstats.Inserts,
				"conflicts": jstats.Conflicts,
				"errors":    jstats.Errors,
				"flushes":   jstats.Flushes,
			}
		}

		if rec != nil {
			pstats := rec.Stats()
			health.Components["poller"] = map[string]any{
				"cycles":  pstats.Cycles,
				"skipped": pstats.Skipped,
				"errors":  pstats.Errors,
			}
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/roster", func(w http.ResponseWriter, r *http.Request) {
		lister, ok := users.(rosterLister)
		if !ok {
			http.Error(w, "roster listing requires the memory cache backend", http.StatusNotImplemented)
			return
		}

		roster := lister.Users()

		// Limit to first 100 for debugging
		limit := 100
		shown := roster
		if len(shown) > limit {
			shown = shown[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(roster),
			"showing": len(shown),
			"users":   shown,
		})
	})

	return mux
}
