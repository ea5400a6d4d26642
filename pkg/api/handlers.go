package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SecureView-Labs/netsentry/pkg/models"
	"github.com/SecureView-Labs/netsentry/pkg/registry"
	"github.com/SecureView-Labs/netsentry/pkg/scan"
)

func (s *Server) handleHealth(c *gin.Context) {
	state, _ := s.orch.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"scanState": state,
		"wsClients": s.hub.ClientCount(),
	})
}

// handleNetworkScan runs a scan synchronously. A scan already in flight is
// rejected with 409 and the cached device list.
func (s *Server) handleNetworkScan(c *gin.Context) {
	rangeExpr := c.Query("range")
	if rangeExpr == "" {
		rangeExpr = s.cfg.Scan.Range
	}

	opts := models.ScanOptions{
		Timeout:  parseTimeout(c.Query("timeout")),
		DeepScan: s.cfg.Scan.DeepScan,
	}

	devices, err := s.orch.Start(c.Request.Context(), rangeExpr, opts)
	if errors.Is(err, scan.ErrScanInFlight) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "scan already in progress",
			"devices": devices,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	_, stats := s.orch.Status()
	c.JSON(http.StatusOK, gin.H{
		"range":   rangeExpr,
		"devices": devices,
		"stats":   stats,
	})
}

// handleListDevices lists the managed inventory with optional filters.
func (s *Server) handleListDevices(c *gin.Context) {
	typeFilter := c.Query("type")
	riskFilter := c.Query("risk")
	statusFilter := c.Query("status")

	var out []*models.ManagedDevice
	for _, d := range s.registry.List() {
		if typeFilter != "" && d.Device.DeviceType != typeFilter {
			continue
		}
		if riskFilter != "" && d.Device.RiskLevel != riskFilter {
			continue
		}
		if statusFilter != "" && d.Device.Status != statusFilter {
			continue
		}
		out = append(out, d)
	}
	if out == nil {
		out = []*models.ManagedDevice{}
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": out,
		"total":   len(out),
		"stats":   s.registry.Stats(),
	})
}

// handleDiscoverCameras scans a range with deep fingerprinting forced on and
// returns only the cameras found.
func (s *Server) handleDiscoverCameras(c *gin.Context) {
	rangeExpr := c.Query("range")
	if rangeExpr == "" {
		rangeExpr = s.cfg.Scan.Range
	}

	devices, err := s.orch.Start(c.Request.Context(), rangeExpr, models.ScanOptions{DeepScan: true})
	if errors.Is(err, scan.ErrScanInFlight) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "scan already in progress",
			"cameras": filterCameras(devices),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cameras := filterCameras(devices)
	if cameras == nil {
		cameras = []*models.Device{}
	}
	c.JSON(http.StatusOK, gin.H{
		"range":   rangeExpr,
		"cameras": cameras,
		"total":   len(cameras),
	})
}

func (s *Server) handleSecurityStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"posture":   s.monitor.Posture(),
		"inventory": s.registry.Stats(),
	})
}

func (s *Server) handleSecurityEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events := s.monitor.Events(limit)
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
	})
}

// handleAuthorizeDevice flips a device's authorization and notifies both
// monitor rooms.
func (s *Server) handleAuthorizeDevice(c *gin.Context) {
	var body struct {
		Authorized *bool `json:"authorized"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Authorized == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"authorized\": true|false}"})
		return
	}

	device, err := s.registry.Authorize(c.Param("id"), *body.Authorized)
	if errors.Is(err, registry.ErrDeviceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.monitor.Evaluate(s.registry.List())
	s.hub.BroadcastAll(eventDeviceAuthorized, gin.H{
		"id":         device.ID,
		"ip":         device.Device.IP,
		"authorized": device.Authorized,
	})

	c.JSON(http.StatusOK, gin.H{"device": device})
}
