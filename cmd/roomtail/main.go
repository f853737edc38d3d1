// roomtail connects to an Atria room and tails gateway events to the console.
// Usage: go run ./cmd/roomtail -config configs/presenced.local.yaml
//
// Event one-liners go to stdout; logs go to stderr so the tail stays
// pipeable. -verbose switches to full indented frame JSON.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atria-live/presence/internal/api"
	"github.com/atria-live/presence/internal/cache"
	"github.com/atria-live/presence/internal/config"
	"github.com/atria-live/presence/internal/connection"
	"github.com/atria-live/presence/internal/dispatch"
	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/router"
	"github.com/atria-live/presence/internal/session"
)

func main() {
	configPath := flag.String("config", "configs/presenced.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	sess := session.NewState(cfg.Platform.APIToken, cfg.Platform.RoomID)

	apiClient := api.NewClient(
		cfg.Platform.RestURL,
		cfg.Platform.APIToken,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Platform.Timeout),
	)

	// Memory cache so the stats line can report live occupancy.
	users := cache.NewMemory(apiClient.RoomUsersLoader(cfg.Platform.RoomID), logger)

	reg := dispatch.NewRegistry(logger)
	registerPrinters(reg, *verbose)

	rtr := router.NewRouter(router.DefaultRouterConfig(), reg, users, sess, logger)

	sup := connection.NewSupervisor(connection.SupervisorConfig{
		GatewayURL:        cfg.Platform.GatewayURL,
		Events:            cfg.Platform.Events,
		HeartbeatInterval: cfg.Connection.HeartbeatInterval,
		ReconnectDelay:    cfg.Connection.ReconnectDelay,
		HandshakeTimeout:  cfg.Connection.HandshakeTimeout,
		WriteTimeout:      cfg.Connection.WriteTimeout,
		BufferSize:        cfg.Connection.BufferSize,
	}, sess, rtr, logger)

	logger.Info("connecting to gateway", "room_id", cfg.Platform.RoomID)
	if err := sup.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				supStats := sup.Stats()
				rtrStats := rtr.Stats()
				occupancy, _ := users.Count(ctx)
				logger.Info("stats",
					"state", sup.State().String(),
					"frames", supStats.FramesDelivered,
					"dispatched", rtrStats.FramesDispatched,
					"dropped", rtrStats.FramesDropped,
					"parse_errors", rtrStats.ParseErrors,
					"heartbeats", supStats.HeartbeatsSent,
					"occupancy", occupancy,
				)
			}
		}
	}()

	logger.Info("tailing started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	if err := sup.Shutdown(); err != nil {
		logger.Warn("gateway shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}

// membershipFrame is the printable slice of join/leave/move payloads.
type membershipFrame struct {
	User     model.User     `json:"user"`
	Position model.Position `json:"position"`
}

// chatFrame is the printable slice of chat payloads.
type chatFrame struct {
	User model.User `json:"user"`
	Body string     `json:"body"`
}

// registerPrinters wires console output for every event type. Handlers run
// on the frame delivery goroutine, so they only format and print.
func registerPrinters(reg *dispatch.Registry, verbose bool) {
	if verbose {
		reg.OnAny(func(evt model.EventType, payload json.RawMessage, _ session.Snapshot) {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, payload, "", "  "); err != nil {
				fmt.Printf("[%s] %s\n", evt, payload)
				return
			}
			fmt.Printf("[%s] %s\n", evt, pretty.String())
		})
		return
	}

	reg.On(model.EventSessionMetadata, func(_ model.EventType, _ json.RawMessage, sess session.Snapshot) {
		fmt.Printf("[SESSION] room=%q owner=%s connection=%s\n",
			sess.Auth.RoomName, sess.Info.OwnerID, sess.Info.ConnectionID)
	})

	reg.On(model.EventUserJoined, func(_ model.EventType, payload json.RawMessage, _ session.Snapshot) {
		var f membershipFrame
		if json.Unmarshal(payload, &f) != nil {
			return
		}
		fmt.Printf("[JOIN]  %s (%s) at (%.1f, %.1f, %.1f)\n",
			f.User.Username, f.User.ID, f.Position.X, f.Position.Y, f.Position.Z)
	})

	reg.On(model.EventUserLeft, func(_ model.EventType, payload json.RawMessage, _ session.Snapshot) {
		var f membershipFrame
		if json.Unmarshal(payload, &f) != nil {
			return
		}
		fmt.Printf("[LEAVE] %s (%s)\n", f.User.Username, f.User.ID)
	})

	reg.On(model.EventUserMoved, func(_ model.EventType, payload json.RawMessage, _ session.Snapshot) {
		var f membershipFrame
		if json.Unmarshal(payload, &f) != nil {
			return
		}
		fmt.Printf("[MOVE]  %s -> (%.1f, %.1f, %.1f) facing %.2f\n",
			f.User.Username, f.Position.X, f.Position.Y, f.Position.Z, f.Position.Facing)
	})

	reg.On(model.EventChatMessage, func(_ model.EventType, payload json.RawMessage, _ session.Snapshot) {
		var f chatFrame
		if json.Unmarshal(payload, &f) != nil || f.Body == "" {
			fmt.Printf("[CHAT]  %s\n", payload)
			return
		}
		fmt.Printf("[CHAT]  %s: %s\n", f.User.Username, f.Body)
	})

	reg.On(model.EventRoomUpdated, func(_ model.EventType, payload json.RawMessage, _ session.Snapshot) {
		fmt.Printf("[ROOM]  %s\n", payload)
	})
}
