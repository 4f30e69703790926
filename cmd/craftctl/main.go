// Craftctl - Minecraft server console manager.
//
// Craftctl speaks the Minecraft remote console protocol over TCP,
// multiplexes every local surface (interactive CLI, REST API, and
// background status sampling) onto a single managed connection, keeps
// a SQLite audit log of issued commands, and publishes periodic status
// telemetry via MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/craftctl-project/craftctl/internal/api"
	"github.com/craftctl-project/craftctl/internal/cli"
	"github.com/craftctl-project/craftctl/internal/config"
	"github.com/craftctl-project/craftctl/internal/db"
	"github.com/craftctl-project/craftctl/internal/rcon"
	"github.com/craftctl-project/craftctl/internal/scheduler"
	"github.com/craftctl-project/craftctl/internal/telemetry"
	"github.com/craftctl-project/craftctl/internal/util"
)

const (
	AppName    = "Craftctl"
	AppVersion = "1.0.0"
	Banner     = `
   _____            __ _       _   _
  / ____|          / _| |     | | | |
 | |     _ __ __ _| |_| |_ ___| |_| |
 | |    | '__/ _' |  _| __/ __| __| |
 | |____| | | (_| | | | || (__| |_| |
  \_____|_|  \__,_|_|  \__\___|\__|_|  v%s
 Minecraft Server Console Manager
`
)

func main() {
	// Print banner
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting Craftctl")

	// Load configuration
	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	logCfg := util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	// Validate configuration
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	// Overlay the console endpoint from server.properties when pointed
	// at one; the server's own file is the source of truth.
	if path := cfg.GetServer().PropertiesPath; path != "" {
		props, err := config.LoadProperties(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to parse server.properties")
		}
		if err := cfg.ApplyProperties(props); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("server.properties has no usable console settings")
		}
	}

	// Log system info
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Console client. No connection is made until the first command.
	server := cfg.GetServer()
	client := rcon.NewClient(cfg.RconAddress(), server.RconPassword, rcon.Options{
		DialTimeout: time.Duration(server.DialTimeoutSec) * time.Second,
		IOTimeout:   time.Duration(server.IOTimeoutSec) * time.Second,
	})
	defer client.Close()

	log.Info().Str("addr", cfg.RconAddress()).Str("level", server.LevelName).Msg("console client ready")

	// Command audit log
	var history *db.HistoryDatabase
	if cfg.History.Enabled {
		history, err = db.NewHistoryDatabase(cfg.History.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open history database")
		}
		defer history.Close()
	}

	// MQTT telemetry
	var mqttHandler *telemetry.MQTTHandler
	if cfg.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(cfg, client, mqttHandler, history)
	cliHandler := cli.NewCLI(cfg, client, history, cancel)

	// ---------------------------------------------------------------
	// Launch the long-running services
	// ---------------------------------------------------------------
	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.API.Enabled {
		if !config.IsPortAvailable(cfg.API.Port) {
			log.Warn().Int("port", cfg.API.Port).Msg("API port is already in use, the server will likely fail to bind")
		}
		apiServer := api.NewServer(cfg, client, history)
		group.Go(func() error {
			log.Info().Int("port", cfg.API.Port).Msg("starting REST API server")
			return apiServer.Start(groupCtx)
		})
	}

	if mqttHandler != nil {
		group.Go(func() error {
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(groupCtx); err != nil {
				// Telemetry is best-effort; losing it should not take
				// the whole tool down.
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
			return nil
		})
	}

	group.Go(func() error {
		log.Info().Msg("starting task scheduler")
		sched.Start(groupCtx)
		return nil
	})

	// The CLI runs outside the errgroup: it ends by cancelling the root
	// context rather than by reporting an error, and a blocked stdin
	// read must not hold up shutdown.
	go cliHandler.Start(groupCtx)

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
		// CLI quit
	case <-groupCtx.Done():
		// A service failed
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		if err := group.Wait(); err != nil {
			log.Error().Err(err).Msg("service exited with error")
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	log.Info().Msg("Craftctl stopped")
}
