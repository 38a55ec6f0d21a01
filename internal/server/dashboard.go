package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultLogLimit caps the dashboard log listings when the client does not
// ask for a specific count.
const defaultLogLimit = 50

func (s *Server) registerDashboardRoutes(api *gin.RouterGroup) {
	api.GET("/config", s.handleConfig)
	api.GET("/status", s.handleStatus)
	api.GET("/logs", s.handleLogs)
	api.GET("/logs/api-calls", s.handleAPICallLogs)
	api.DELETE("/logs", s.handleClearLogs)
	api.GET("/usage", s.handleUsage)
	api.POST("/usage/reset", s.handleResetUsage)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"mode":    s.mode(),
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// mode names the effective operating mode for health and status reporting.
func (s *Server) mode() string {
	switch {
	case s.config.UsePlaceholderMode:
		return "placeholder"
	case s.config.DevMode:
		return "dev"
	default:
		return "proxy"
	}
}

// handleConfig exposes the sanitized configuration. Secrets never leave the
// process.
func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.config.View())
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":        true,
		"mode":           s.mode(),
		"port":           s.config.Port,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"request_count":  s.logger.RequestCount(),
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := queryLimit(c)
	c.JSON(http.StatusOK, gin.H{
		"api_calls":     s.logger.APICalls(limit),
		"server_events": s.logger.ServerEvents(limit),
	})
}

func (s *Server) handleAPICallLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_calls": s.logger.APICalls(queryLimit(c)),
	})
}

func (s *Server) handleClearLogs(c *gin.Context) {
	s.logger.ClearLogs()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) handleUsage(c *gin.Context) {
	c.JSON(http.StatusOK, s.logger.UsageSnapshot())
}

func (s *Server) handleResetUsage(c *gin.Context) {
	s.logger.ResetUsage()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func queryLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLogLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLogLimit
	}
	return limit
}
