// Package scheduler implements background tasks for Craftctl: periodic
// status sampling of the managed server and audit log pruning.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craftctl-project/craftctl/internal/config"
	"github.com/craftctl-project/craftctl/internal/db"
	"github.com/craftctl-project/craftctl/internal/rcon"
	"github.com/craftctl-project/craftctl/internal/telemetry"
	"github.com/craftctl-project/craftctl/internal/util"
)

// Scheduler manages periodic background tasks. Both the MQTT handler
// and the history database are optional.
type Scheduler struct {
	cfg     *config.Config
	client  *rcon.Client
	mqtt    *telemetry.MQTTHandler
	history *db.HistoryDatabase
}

// NewScheduler creates a new task scheduler.
func NewScheduler(cfg *config.Config, client *rcon.Client, mqtt *telemetry.MQTTHandler, history *db.HistoryDatabase) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		client:  client,
		mqtt:    mqtt,
		history: history,
	}
}

// Start begins running all scheduled tasks and blocks until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	if interval := s.cfg.Timers.StatusInterval; interval > 0 {
		go s.runStatusLoop(ctx, time.Duration(interval)*time.Second)
	}

	if s.history != nil && s.cfg.History.Enabled {
		if interval := s.cfg.Timers.HistoryPruneInterval; interval > 0 {
			go s.runPruneLoop(ctx, time.Duration(interval)*time.Second)
		}
	}

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runStatusLoop samples the server on a fixed interval.
func (s *Scheduler) runStatusLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleStatus(ctx)
		}
	}
}

// sampleStatus asks the server for its player list and tick timings
// and forwards the snapshot to telemetry.
func (s *Scheduler) sampleStatus(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sample := telemetry.StatusSample{Players: []string{}}

	players, err := s.client.ListPlayers(sampleCtx)
	if err != nil {
		sample.Error = err.Error()
		log.Warn().Err(err).Msg("status sample: player list failed")
	} else {
		sample.Online = true
		sample.Players = players
		sample.PlayerCount = len(players)
	}

	if sample.Online {
		stats, err := s.client.QueryTickStats(sampleCtx)
		if err != nil {
			// A server without the tick command still counts as online.
			var tickErr *rcon.TickStatsError
			if !errors.As(err, &tickErr) {
				log.Warn().Err(err).Msg("status sample: tick query failed")
			}
		} else {
			sample.Tick = &stats
		}
	}

	if cpu, err := util.GetCPUUsage(); err == nil {
		sample.HostCPUPercent = cpu
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		sample.HostMemoryPercent = mem.UsedPercent
	}

	log.Debug().
		Bool("online", sample.Online).
		Int("players", sample.PlayerCount).
		Msg("status sampled")

	if s.mqtt != nil {
		s.mqtt.PublishStatus(sample)
	}
}

// runPruneLoop enforces the audit log retention policy.
func (s *Scheduler) runPruneLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.history.PruneOlderThan(s.cfg.History.RetentionDays)
			if err != nil {
				log.Warn().Err(err).Msg("history prune failed")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("history pruned")
			}
		}
	}
}
