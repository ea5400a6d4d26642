// Package api exposes the scanning pipeline over HTTP and WebSocket for the
// dashboard: scan triggers, device inventory, camera discovery and the
// security posture feed.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/config"
	"github.com/SecureView-Labs/netsentry/pkg/models"
	"github.com/SecureView-Labs/netsentry/pkg/registry"
	"github.com/SecureView-Labs/netsentry/pkg/scan"
	"github.com/SecureView-Labs/netsentry/pkg/security"
)

// Server wires the orchestrator, registry and monitor behind the HTTP and
// WebSocket surfaces.
type Server struct {
	engine   *gin.Engine
	orch     *scan.Orchestrator
	registry *registry.Registry
	monitor  *security.Monitor
	hub      *Hub
	cfg      config.Config
	logger   *logrus.Logger

	http *http.Server
}

// NewServer builds the server and installs scan lifecycle hooks: progress
// and completion fan out to WebSocket rooms, completed scans land in the
// registry and re-evaluate the security monitor.
func NewServer(orch *scan.Orchestrator, reg *registry.Registry, monitor *security.Monitor, cfg config.Config, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		engine:   gin.New(),
		orch:     orch,
		registry: reg,
		monitor:  monitor,
		hub:      NewHub(logger),
		cfg:      cfg,
		logger:   logger,
	}

	s.orch.OnProgress = func(stats scan.Stats) {
		s.hub.Broadcast(RoomNetworkMonitor, eventScanProgress, stats)
	}
	s.orch.OnComplete = s.onScanComplete
	s.hub.OnScanRequest = s.onScanRequest

	s.engine.Use(gin.Recovery(), s.requestLogger())
	if cfg.Server.EnableCORS {
		s.engine.Use(corsMiddleware())
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ws", func(c *gin.Context) {
		s.hub.Handle(c.Writer, c.Request)
	})

	apiGroup := s.engine.Group("/api")
	{
		apiGroup.GET("/network/scan", s.handleNetworkScan)
		apiGroup.GET("/devices", s.handleListDevices)
		apiGroup.GET("/cameras/discover", s.handleDiscoverCameras)
		apiGroup.GET("/security/status", s.handleSecurityStatus)
		apiGroup.GET("/security/events", s.handleSecurityEvents)
		apiGroup.POST("/devices/:id/authorize", s.handleAuthorizeDevice)
	}
}

// Handler exposes the router for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.logger.WithField("port", s.cfg.Server.Port).Info("api server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// onScanComplete persists results, marks scanned-but-silent devices offline,
// refreshes the monitor and notifies rooms.
func (s *Server) onScanComplete(devices []*models.Device, stats scan.Stats) {
	s.registry.ReconcileScan(devices, s.orch.LastAddresses())
	s.monitor.Evaluate(s.registry.List())

	s.hub.Broadcast(RoomNetworkMonitor, eventScanComplete, gin.H{
		"devices": devices,
		"stats":   stats,
	})
	s.hub.Broadcast(RoomNetworkMonitor, eventNetworkStatus, s.registry.Stats())
	if cameras := filterCameras(devices); len(cameras) > 0 {
		s.hub.Broadcast(RoomNetworkMonitor, eventCamerasDiscovered, gin.H{"cameras": cameras})
	}
	s.hub.Broadcast(RoomSecurityMonitor, eventSecurityStatus, s.monitor.Posture())
}

// onScanRequest serves the WebSocket scan trigger. The single-flight guard
// decides whether a scan actually starts; a rejection only replays cached
// results to the requesting room.
func (s *Server) onScanRequest(rangeExpr string) {
	if rangeExpr == "" {
		rangeExpr = s.cfg.Scan.Range
	}
	go func() {
		devices, err := s.orch.Start(context.Background(), rangeExpr, models.ScanOptions{
			DeepScan: s.cfg.Scan.DeepScan,
		})
		if errors.Is(err, scan.ErrScanInFlight) {
			s.hub.Broadcast(RoomNetworkMonitor, eventScanResult, gin.H{
				"inFlight": true,
				"devices":  devices,
			})
			return
		}
		s.hub.Broadcast(RoomNetworkMonitor, eventScanResult, gin.H{
			"inFlight": false,
			"devices":  devices,
		})
	}()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func filterCameras(devices []*models.Device) []*models.Device {
	var cameras []*models.Device
	for _, d := range devices {
		if d.IsCamera() {
			cameras = append(cameras, d)
		}
	}
	return cameras
}

func parseTimeout(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return 0
}
