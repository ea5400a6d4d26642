package security

import (
	"errors"
	"testing"
	"time"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

func managed(ip string, authorized bool, status, risk string, ports []int) *models.ManagedDevice {
	return &models.ManagedDevice{
		ID: "dev-" + ip,
		Device: models.Device{
			IP:        ip,
			Status:    status,
			RiskLevel: risk,
			OpenPorts: ports,
		},
		Authorized: authorized,
		LastSeen:   time.Now(),
	}
}

func TestEvaluateRaisesEventTaxonomy(t *testing.T) {
	m := NewMonitor(nil)

	offline := managed("192.168.1.4", true, models.StatusOffline, models.RiskLow, nil)
	offline.LastSeen = time.Now().Add(-2 * time.Hour)

	devices := []*models.ManagedDevice{
		managed("192.168.1.1", false, models.StatusOnline, models.RiskLow, nil),
		managed("192.168.1.2", true, models.StatusOnline, models.RiskHigh, nil),
		managed("192.168.1.3", true, models.StatusOnline, models.RiskLow, []int{23, 80}),
		offline,
	}

	raised := m.Evaluate(devices)
	if len(raised) != 4 {
		t.Fatalf("expected 4 events, got %d", len(raised))
	}

	bySource := map[string]*models.SecurityEvent{}
	for _, e := range raised {
		bySource[e.Source] = e
	}
	if e := bySource["192.168.1.1"]; e.Type != EventUnauthorizedDevice || e.Severity != models.SeverityMedium {
		t.Fatalf("unexpected unauthorized event: %+v", e)
	}
	if e := bySource["192.168.1.2"]; e.Type != EventHighRiskDevice || e.Severity != models.SeverityHigh {
		t.Fatalf("unexpected high-risk event: %+v", e)
	}
	if e := bySource["192.168.1.3"]; e.Type != EventSuspiciousPorts || e.Severity != models.SeverityMedium {
		t.Fatalf("unexpected suspicious-ports event: %+v", e)
	}
	if e := bySource["192.168.1.4"]; e.Type != EventDeviceOffline || e.Severity != models.SeverityLow {
		t.Fatalf("unexpected offline event: %+v", e)
	}
}

func TestEvaluateDeduplicatesWhileUnresolved(t *testing.T) {
	m := NewMonitor(nil)
	devices := []*models.ManagedDevice{
		managed("10.0.0.1", false, models.StatusOnline, models.RiskLow, nil),
	}

	first := m.Evaluate(devices)
	if len(first) != 1 {
		t.Fatalf("expected 1 event, got %d", len(first))
	}
	if again := m.Evaluate(devices); len(again) != 0 {
		t.Fatalf("expected dedupe while unresolved, got %d new events", len(again))
	}

	if err := m.Resolve(first[0].ID, "operator"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reraised := m.Evaluate(devices); len(reraised) != 1 {
		t.Fatalf("expected a fresh event after resolution, got %d", len(reraised))
	}
}

func TestResolveExactlyOnce(t *testing.T) {
	m := NewMonitor(nil)
	raised := m.Evaluate([]*models.ManagedDevice{
		managed("10.0.0.2", false, models.StatusOnline, models.RiskLow, nil),
	})

	if err := m.Resolve(raised[0].ID, "operator"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	event := m.Events(0)[0]
	if !event.Resolved || event.ResolvedBy != "operator" || event.ResolvedAt == nil {
		t.Fatalf("resolution fields must be set together, got %+v", event)
	}

	if err := m.Resolve(raised[0].ID, "operator"); !errors.Is(err, ErrEventResolved) {
		t.Fatalf("expected ErrEventResolved, got %v", err)
	}
	if err := m.Resolve("missing", "operator"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestScoreDeductions(t *testing.T) {
	m := NewMonitor(nil)
	if m.Score() != 100 {
		t.Fatalf("expected pristine score 100, got %d", m.Score())
	}

	// One medium (unauthorized) + one high (risk) + one medium (ports) = -20.
	m.Evaluate([]*models.ManagedDevice{
		managed("10.0.1.1", false, models.StatusOnline, models.RiskLow, nil),
		managed("10.0.1.2", true, models.StatusOnline, models.RiskHigh, nil),
		managed("10.0.1.3", true, models.StatusOnline, models.RiskLow, []int{21}),
	})
	if got := m.Score(); got != 80 {
		t.Fatalf("expected score 80, got %d", got)
	}

	// Resolving restores the deduction.
	for _, e := range m.Events(0) {
		if e.Type == EventHighRiskDevice {
			m.Resolve(e.ID, "operator")
		}
	}
	if got := m.Score(); got != 90 {
		t.Fatalf("expected score 90 after resolving the high event, got %d", got)
	}
}

func TestScoreVolumePenalty(t *testing.T) {
	m := NewMonitor(nil)

	// 11 unauthorized devices: 11 medium events = -55, plus -10 volume penalty.
	var devices []*models.ManagedDevice
	for i := 0; i < 11; i++ {
		ip := "10.0.2." + string(rune('1'+i))
		devices = append(devices, managed(ip, false, models.StatusOnline, models.RiskLow, nil))
	}
	m.Evaluate(devices)

	if got := m.Score(); got != 35 {
		t.Fatalf("expected score 35 (100-55-10), got %d", got)
	}
}

func TestScoreFloor(t *testing.T) {
	m := NewMonitor(nil)
	var devices []*models.ManagedDevice
	for i := 0; i < 30; i++ {
		ip := "10.0.3." + string(rune('a'+i))
		devices = append(devices, managed(ip, true, models.StatusOnline, models.RiskHigh, nil))
	}
	m.Evaluate(devices)

	if got := m.Score(); got != 0 {
		t.Fatalf("expected score floored at 0, got %d", got)
	}
}

func TestThreatLevels(t *testing.T) {
	m := NewMonitor(nil)
	if got := m.ThreatLevel(); got != models.RiskLow {
		t.Fatalf("expected low threat on a quiet network, got %q", got)
	}

	// One high event: score 90, 1 high → still low by thresholds.
	m.Evaluate([]*models.ManagedDevice{
		managed("10.0.4.1", true, models.StatusOnline, models.RiskHigh, nil),
	})
	if got := m.ThreatLevel(); got != models.RiskLow {
		t.Fatalf("expected low threat at score 90, got %q", got)
	}

	// Three more high events: >2 high ⇒ high threat.
	m.Evaluate([]*models.ManagedDevice{
		managed("10.0.4.2", true, models.StatusOnline, models.RiskHigh, nil),
		managed("10.0.4.3", true, models.StatusOnline, models.RiskHigh, nil),
		managed("10.0.4.4", true, models.StatusOnline, models.RiskHigh, nil),
	})
	if got := m.ThreatLevel(); got != models.RiskHigh {
		t.Fatalf("expected high threat with 4 high events, got %q", got)
	}
}

func TestEventsNewestFirstWithLimit(t *testing.T) {
	m := NewMonitor(nil)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	m.Evaluate([]*models.ManagedDevice{managed("10.0.5.1", false, models.StatusOnline, models.RiskLow, nil)})
	m.Evaluate([]*models.ManagedDevice{managed("10.0.5.2", false, models.StatusOnline, models.RiskLow, nil)})
	m.Evaluate([]*models.ManagedDevice{managed("10.0.5.3", false, models.StatusOnline, models.RiskLow, nil)})

	events := m.Events(2)
	if len(events) != 2 {
		t.Fatalf("expected limit 2, got %d", len(events))
	}
	if !events[0].Timestamp.After(events[1].Timestamp) {
		t.Fatalf("expected newest first, got %v then %v", events[0].Timestamp, events[1].Timestamp)
	}
}

func TestRecommendations(t *testing.T) {
	m := NewMonitor(nil)
	recs := m.Recommendations()
	if len(recs) != 1 {
		t.Fatalf("expected the quiet-network recommendation, got %v", recs)
	}

	m.Evaluate([]*models.ManagedDevice{
		managed("10.0.6.1", false, models.StatusOnline, models.RiskLow, nil),
		managed("10.0.6.2", true, models.StatusOnline, models.RiskLow, []int{23}),
	})
	recs = m.Recommendations()
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %v", recs)
	}

	p := m.Posture()
	if p.ActiveEvents != 2 || p.TotalEvents != 2 {
		t.Fatalf("unexpected posture: %+v", p)
	}
	if p.Score != 90 {
		t.Fatalf("expected posture score 90, got %d", p.Score)
	}
}
