// Package security watches the managed inventory and maintains the security
// event stream, the aggregate 0-100 score and the threat level consumed by
// the dashboard.
package security

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

var (
	ErrEventNotFound = errors.New("security event not found")
	ErrEventResolved = errors.New("security event already resolved")
)

// Event types raised by Evaluate.
const (
	EventUnauthorizedDevice = "unauthorized-device-online"
	EventHighRiskDevice     = "high-risk-device"
	EventSuspiciousPorts    = "suspicious-ports"
	EventDeviceOffline      = "device-offline"
)

// Ports whose presence alone raises a suspicious-ports event.
var suspiciousPorts = []int{23, 21, 135, 139}

// offlineThreshold is how long a device may be unseen before an offline
// event fires.
const offlineThreshold = time.Hour

// recentWindow and recentEventLimit drive the event-volume score penalty.
const (
	recentWindow     = 24 * time.Hour
	recentEventLimit = 10
)

// Monitor ingests device lists and maintains the event stream.
type Monitor struct {
	mu     sync.Mutex
	events map[string]*models.SecurityEvent
	active map[string]string // type|source → event ID, unresolved only

	logger *logrus.Logger
	now    func() time.Time
}

// NewMonitor creates an empty monitor.
func NewMonitor(logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		events: make(map[string]*models.SecurityEvent),
		active: make(map[string]string),
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate inspects the inventory and raises events for unauthorized online
// devices, high-risk devices, suspicious ports and long-offline devices.
// Events are deduplicated per (type, source) while unresolved. Returns the
// newly raised events.
func (m *Monitor) Evaluate(devices []*models.ManagedDevice) []*models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var raised []*models.SecurityEvent
	now := m.now()

	for _, d := range devices {
		ip := d.Device.IP

		if !d.Authorized && d.Device.Status == models.StatusOnline {
			if e := m.raiseLocked(EventUnauthorizedDevice, models.SeverityMedium, ip,
				fmt.Sprintf("Unauthorized device online at %s (%s)", ip, d.Device.DeviceType)); e != nil {
				raised = append(raised, e)
			}
		}

		if d.Device.RiskLevel == models.RiskHigh || d.Device.RiskLevel == models.RiskCritical {
			if e := m.raiseLocked(EventHighRiskDevice, models.SeverityHigh, ip,
				fmt.Sprintf("High-risk device at %s: %s", ip, d.Device.DeviceType)); e != nil {
				raised = append(raised, e)
			}
		}

		if ports := exposedSuspiciousPorts(&d.Device); len(ports) > 0 {
			if e := m.raiseLocked(EventSuspiciousPorts, models.SeverityMedium, ip,
				fmt.Sprintf("Suspicious ports open at %s: %v", ip, ports)); e != nil {
				raised = append(raised, e)
			}
		}

		if d.Device.Status == models.StatusOffline && now.Sub(d.LastSeen) > offlineThreshold {
			if e := m.raiseLocked(EventDeviceOffline, models.SeverityLow,
				ip, fmt.Sprintf("Device at %s offline for over %s", ip, offlineThreshold)); e != nil {
				raised = append(raised, e)
			}
		}
	}

	return raised
}

// raiseLocked creates an event unless an unresolved one with the same type
// and source already exists.
func (m *Monitor) raiseLocked(eventType, severity, source, description string) *models.SecurityEvent {
	key := eventType + "|" + source
	if _, exists := m.active[key]; exists {
		return nil
	}

	event := &models.SecurityEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Severity:    severity,
		Source:      source,
		Description: description,
		Timestamp:   m.now(),
	}
	m.events[event.ID] = event
	m.active[key] = event.ID

	m.logger.WithFields(logrus.Fields{
		"type":     eventType,
		"severity": severity,
		"source":   source,
	}).Warn(description)
	return event
}

// Resolve marks an event resolved exactly once; resolution fields are set
// together and the (type, source) slot opens for future events.
func (m *Monitor) Resolve(id, resolvedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if event.Resolved {
		return ErrEventResolved
	}

	now := m.now()
	event.Resolved = true
	event.ResolvedBy = resolvedBy
	event.ResolvedAt = &now
	delete(m.active, event.Type+"|"+event.Source)
	return nil
}

// Events returns events newest first, capped at limit (0 = all).
func (m *Monitor) Events(limit int) []*models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.SecurityEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Score computes the aggregate security score: 100 minus 20/10/5/2 per
// active critical/high/medium/low event, minus 10 when event volume in the
// last 24h exceeds the limit. Floor is 0.
func (m *Monitor) Score() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreLocked()
}

func (m *Monitor) scoreLocked() int {
	score := 100
	for _, id := range m.active {
		switch m.events[id].Severity {
		case models.SeverityCritical:
			score -= 20
		case models.SeverityHigh:
			score -= 10
		case models.SeverityMedium:
			score -= 5
		case models.SeverityLow:
			score -= 2
		}
	}
	if m.recentEventCountLocked() > recentEventLimit {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (m *Monitor) recentEventCountLocked() int {
	cutoff := m.now().Add(-recentWindow)
	n := 0
	for _, e := range m.events {
		if e.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

// ThreatLevel classifies the current posture.
func (m *Monitor) ThreatLevel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threatLevelLocked()
}

func (m *Monitor) threatLevelLocked() string {
	score := m.scoreLocked()

	criticals, highs := 0, 0
	for _, id := range m.active {
		switch m.events[id].Severity {
		case models.SeverityCritical:
			criticals++
		case models.SeverityHigh:
			highs++
		}
	}

	switch {
	case criticals > 0 || score < 30:
		return models.RiskCritical
	case highs > 2 || score < 50:
		return models.RiskHigh
	case score < 70:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Recommendations derives remediation guidance from the active event mix.
func (m *Monitor) Recommendations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recommendationsLocked()
}

func (m *Monitor) recommendationsLocked() []string {
	byType := map[string]int{}
	for _, id := range m.active {
		byType[m.events[id].Type]++
	}

	var recs []string
	if n := byType[EventUnauthorizedDevice]; n > 0 {
		recs = append(recs, fmt.Sprintf("Review and authorize or remove %d unrecognized device(s).", n))
	}
	if n := byType[EventHighRiskDevice]; n > 0 {
		recs = append(recs, fmt.Sprintf("Harden %d high-risk device(s): close unused services and change default credentials.", n))
	}
	if n := byType[EventSuspiciousPorts]; n > 0 {
		recs = append(recs, fmt.Sprintf("Disable Telnet/FTP/NetBIOS services exposed on %d device(s) or restrict them with firewall rules.", n))
	}
	if n := byType[EventDeviceOffline]; n > 0 {
		recs = append(recs, fmt.Sprintf("Investigate %d device(s) offline for over an hour.", n))
	}
	if len(recs) == 0 {
		recs = append(recs, "No active security events. Keep periodic scans enabled.")
	}
	return recs
}

// Posture is the aggregate snapshot served by the API.
type Posture struct {
	Score           int       `json:"score"`
	ThreatLevel     string    `json:"threatLevel"`
	ActiveEvents    int       `json:"activeEvents"`
	TotalEvents     int       `json:"totalEvents"`
	Recommendations []string  `json:"recommendations"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Posture computes the full snapshot in one lock acquisition.
func (m *Monitor) Posture() Posture {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Posture{
		Score:           m.scoreLocked(),
		ThreatLevel:     m.threatLevelLocked(),
		ActiveEvents:    len(m.active),
		TotalEvents:     len(m.events),
		Recommendations: m.recommendationsLocked(),
		GeneratedAt:     m.now(),
	}
}

func exposedSuspiciousPorts(device *models.Device) []int {
	var found []int
	for _, p := range suspiciousPorts {
		if device.HasPort(p) {
			found = append(found, p)
		}
	}
	return found
}
