// Package scan drives full network scans: range expansion, batched host
// probing, camera fingerprinting and running statistics, under a single-flight
// guard shared by every entry point (HTTP, WebSocket, scheduler).
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/classify"
	"github.com/SecureView-Labs/netsentry/pkg/config"
	"github.com/SecureView-Labs/netsentry/pkg/iprange"
	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// ErrScanInFlight is returned when a scan is requested while one is running.
// Callers receive the cached result set alongside it.
var ErrScanInFlight = errors.New("a network scan is already in progress")

// Orchestrator states.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateAborted   = "aborted"
)

// Stats is the running scan statistics snapshot.
type Stats struct {
	Scanned       int           `json:"scanned"`    // Addresses probed so far
	Reachable     int           `json:"reachable"`  // Hosts that answered
	Identified    int           `json:"identified"` // Hosts classified as a known type
	Cameras       int           `json:"cameras"`
	AvgResponseMs int64         `json:"avgResponseMs"`
	Elapsed       time.Duration `json:"elapsed"`
	Progress      int           `json:"progress"` // 0-100, whole batches
}

// HostProber probes a single address for a live device.
type HostProber interface {
	ProbeHost(ctx context.Context, ip string, opts models.ScanOptions) (*models.Device, error)
}

// CameraIdentifier fingerprints a discovered device for a camera interface.
type CameraIdentifier interface {
	Fingerprint(ctx context.Context, device *models.Device) *models.CameraInfo
}

// Orchestrator runs at most one scan at a time. The single-flight guard is
// the only cross-goroutine entry state; everything else is guarded by mu.
type Orchestrator struct {
	prober HostProber
	camera CameraIdentifier
	cfg    config.ScanConfig
	logger *logrus.Logger

	running atomic.Bool
	abort   atomic.Bool

	mu      sync.Mutex
	state   string
	stats   Stats
	devices []*models.Device
	addrs   []string

	// OnProgress fires after every batch, OnComplete once per finished scan.
	// Both are invoked from the scanning goroutine.
	OnProgress func(Stats)
	OnComplete func([]*models.Device, Stats)
}

// NewOrchestrator builds an Orchestrator around a prober and an optional
// camera identifier (nil disables fingerprinting).
func NewOrchestrator(prober HostProber, camera CameraIdentifier, cfg config.ScanConfig, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxHosts <= 0 {
		cfg.MaxHosts = 1024
	}
	return &Orchestrator{
		prober: prober,
		camera: camera,
		cfg:    cfg,
		logger: logger,
		state:  StateIdle,
	}
}

// Start runs a scan synchronously and returns the discovered devices. If a
// scan is already running it returns the last cached results with
// ErrScanInFlight; nothing is queued.
func (o *Orchestrator) Start(ctx context.Context, rangeExpr string, opts models.ScanOptions) ([]*models.Device, error) {
	if !o.running.CompareAndSwap(false, true) {
		return o.LastResults(), ErrScanInFlight
	}
	defer o.running.Store(false)
	o.abort.Store(false)

	if opts.Timeout <= 0 {
		opts.Timeout = o.cfg.Timeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = o.cfg.Concurrency
	}
	if len(opts.Ports) == 0 {
		opts.Ports = o.cfg.Ports
	}

	addrs := iprange.ExpandLimit(rangeExpr, o.cfg.MaxHosts)
	start := time.Now()

	o.mu.Lock()
	o.state = StateRunning
	o.stats = Stats{}
	o.devices = nil
	o.addrs = addrs
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"range": rangeExpr,
		"hosts": len(addrs),
	}).Info("starting network scan")

	batches := splitBatches(addrs, o.cfg.BatchSize)
	aborted := false

	for i, batch := range batches {
		// Cancellation is coarse: checked only between batches, so every
		// in-flight probe runs to its own timeout.
		if o.abort.Load() || ctx.Err() != nil {
			aborted = true
			break
		}

		found := o.scanBatch(ctx, batch, opts)

		o.mu.Lock()
		o.devices = append(o.devices, found...)
		o.stats.Scanned += len(batch)
		o.stats.Reachable = len(o.devices)
		o.stats.Identified = countIdentified(o.devices)
		o.stats.Cameras = countCameras(o.devices)
		o.stats.AvgResponseMs = avgResponse(o.devices)
		o.stats.Elapsed = time.Since(start)
		o.stats.Progress = (i + 1) * 100 / len(batches)
		snapshot := o.stats
		o.mu.Unlock()

		if o.OnProgress != nil {
			o.OnProgress(snapshot)
		}

		if i < len(batches)-1 && o.cfg.BatchPause > 0 {
			time.Sleep(o.cfg.BatchPause)
		}
	}

	o.mu.Lock()
	if aborted {
		o.state = StateAborted
	} else {
		o.state = StateCompleted
		o.stats.Progress = 100
	}
	o.stats.Elapsed = time.Since(start)
	devices := append([]*models.Device(nil), o.devices...)
	stats := o.stats
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"reachable": stats.Reachable,
		"cameras":   stats.Cameras,
		"elapsed":   stats.Elapsed.Round(time.Millisecond),
		"aborted":   aborted,
	}).Info("network scan finished")

	if o.OnComplete != nil {
		o.OnComplete(devices, stats)
	}
	return devices, nil
}

// scanBatch fans out one batch of addresses and joins before returning.
// A host's failure never fails the batch.
func (o *Orchestrator) scanBatch(ctx context.Context, batch []string, opts models.ScanOptions) []*models.Device {
	var (
		mu    sync.Mutex
		found []*models.Device
		wg    sync.WaitGroup
	)

	for _, ip := range batch {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()

			device, err := o.prober.ProbeHost(ctx, ip, opts)
			if err != nil {
				o.logger.WithField("ip", ip).Debugf("probe failed: %v", err)
				return
			}
			if device == nil {
				return
			}

			classify.Classify(device)
			o.identifyCamera(ctx, device, opts)

			mu.Lock()
			found = append(found, device)
			mu.Unlock()
		}(ip)
	}
	wg.Wait()

	return found
}

// identifyCamera runs fingerprinting on hosts with a web or RTSP port when
// deep scanning is on. Cameras are re-scored with the camera weight table.
func (o *Orchestrator) identifyCamera(ctx context.Context, device *models.Device, opts models.ScanOptions) {
	if o.camera == nil || !opts.DeepScan {
		return
	}
	if !hasCameraCandidatePort(device) {
		return
	}

	info := o.camera.Fingerprint(ctx, device)
	if info == nil {
		return
	}
	device.Camera = info
	device.DeviceType = classify.TypeCamera
	device.RiskScore, device.RiskLevel = classify.ScoreCameraRisk(device)
}

var cameraCandidatePorts = []int{80, 443, 554, 8000, 8080, 8443, 37777}

func hasCameraCandidatePort(device *models.Device) bool {
	for _, p := range cameraCandidatePorts {
		if device.HasPort(p) {
			return true
		}
	}
	return false
}

// Abort requests a stop at the next batch boundary. No-op when idle.
func (o *Orchestrator) Abort() {
	if o.running.Load() {
		o.abort.Store(true)
	}
}

// Running reports whether a scan is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Status returns the current state and a statistics snapshot.
func (o *Orchestrator) Status() (string, Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.stats
}

// LastResults returns a copy of the most recent scan's device list.
func (o *Orchestrator) LastResults() []*models.Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*models.Device(nil), o.devices...)
}

// LastAddresses returns the address set covered by the most recent scan.
// Registry reconciliation uses it to tell "probed and silent" apart from
// "outside the scanned range".
func (o *Orchestrator) LastAddresses() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.addrs...)
}

func splitBatches(addrs []string, size int) [][]string {
	if len(addrs) == 0 {
		return nil
	}
	var batches [][]string
	for start := 0; start < len(addrs); start += size {
		end := start + size
		if end > len(addrs) {
			end = len(addrs)
		}
		batches = append(batches, addrs[start:end])
	}
	return batches
}

func countIdentified(devices []*models.Device) int {
	n := 0
	for _, d := range devices {
		if d.DeviceType != classify.TypeUnknown {
			n++
		}
	}
	return n
}

func countCameras(devices []*models.Device) int {
	n := 0
	for _, d := range devices {
		if d.IsCamera() {
			n++
		}
	}
	return n
}

func avgResponse(devices []*models.Device) int64 {
	if len(devices) == 0 {
		return 0
	}
	var sum int64
	for _, d := range devices {
		sum += d.ResponseMs
	}
	return sum / int64(len(devices))
}
