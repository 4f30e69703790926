package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/craftctl-project/craftctl/internal/db"
	"github.com/craftctl-project/craftctl/internal/rcon"
	"github.com/craftctl-project/craftctl/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "craftctl",
		"version": "1.0.0",
	})
}

// handleInfo returns basic information about the managed server and host.
func (s *Server) handleInfo(c *gin.Context) {
	server := s.cfg.GetServer()
	sysInfo := util.GetSystemInfo()

	info := gin.H{
		"level_name":      server.LevelName,
		"server_host":     server.Host,
		"rcon_port":       server.RconPort,
		"platform":        sysInfo.Platform,
		"cpu_model":       sysInfo.CPUModel,
		"cpu_cores":       sysInfo.CPUCores,
		"total_memory_mb": sysInfo.TotalMemory,
	}
	if ip, err := util.GetLocalIP(); err == nil {
		info["local_ip"] = ip
	}

	c.JSON(http.StatusOK, info)
}

// handlePlayers returns the list of players currently online.
func (s *Server) handlePlayers(c *gin.Context) {
	players, err := s.client.ListPlayers(c.Request.Context())
	if err != nil {
		s.respondConsoleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(players),
		"players": players,
	})
}

// handleTick returns the server's tick timing statistics.
func (s *Server) handleTick(c *gin.Context) {
	stats, err := s.client.QueryTickStats(c.Request.Context())
	if err != nil {
		var tickErr *rcon.TickStatsError
		if errors.As(err, &tickErr) {
			// The server answered but in a shape we don't recognize;
			// hand the raw text to the caller instead of losing it.
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "unparseable tick response",
				"raw":   tickErr.Raw,
			})
			return
		}
		s.respondConsoleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// handleSave triggers a full world save.
func (s *Server) handleSave(c *gin.Context) {
	err := s.client.SaveAll(c.Request.Context())
	s.record("save-all", "", err)
	if err != nil {
		s.respondConsoleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// handleStop asks the server to shut down.
func (s *Server) handleStop(c *gin.Context) {
	err := s.client.Stop(c.Request.Context())
	s.record("stop", "", err)
	if err != nil {
		s.respondConsoleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// handleCommand runs an arbitrary console command.
func (s *Server) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	response, err := s.client.Command(c.Request.Context(), req.Command)
	s.record(req.Command, response, err)
	if err != nil {
		s.respondConsoleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": response})
}

// handleHistory returns the most recent audit log entries.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command history is disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-1000"})
			return
		}
		limit = parsed
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// respondConsoleError maps console failures onto HTTP statuses. The
// upstream server is a gateway from the API caller's point of view.
func (s *Server) respondConsoleError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, rcon.ErrAuthFailed) {
		// Our credentials, not the caller's, are wrong.
		status = http.StatusInternalServerError
	}
	if errors.Is(err, rcon.ErrManagerClosed) {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// record stores a command exchange in the audit log, if enabled.
func (s *Server) record(command, response string, err error) {
	if s.history == nil {
		return
	}
	if err != nil {
		response = err.Error()
	}
	if recErr := s.history.Record(command, response, db.SourceAPI, err == nil); recErr != nil {
		log.Warn().Err(recErr).Msg("failed to record command history")
	}
}
