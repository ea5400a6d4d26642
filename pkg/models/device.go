package models

import (
	"time"
)

// Device status values.
const (
	StatusOnline       = "online"
	StatusOffline      = "offline"
	StatusUnknown      = "unknown"
	StatusUnauthorized = "unauthorized"
)

// Risk level values shared by devices and assessments.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Vulnerability severity values.
const (
	SeverityInfo     = "info"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Device represents a discovered device on the network.
type Device struct {
	IP           string      `json:"ip"` // IP address, natural key
	Hostname     string      `json:"hostname,omitempty"`
	MAC          string      `json:"mac,omitempty"`
	Vendor       string      `json:"vendor,omitempty"` // From OUI lookup
	DeviceType   string      `json:"deviceType"`       // Classifier result
	OpenPorts    []int       `json:"openPorts"`        // Ascending order
	Services     []string    `json:"services"`         // Service names for open ports
	Capabilities []string    `json:"capabilities"`
	Status       string      `json:"status"`    // online, offline, unknown, unauthorized
	RiskLevel    string      `json:"riskLevel"` // low, medium, high
	RiskScore    int         `json:"riskScore"`
	ResponseMs   int64       `json:"responseMs"` // First successful contact latency
	LastSeen     time.Time   `json:"lastSeen"`
	Camera       *CameraInfo `json:"camera,omitempty"` // Set when the device is a camera
}

// CameraInfo carries the camera-specific payload of a Device.
type CameraInfo struct {
	Brand        string   `json:"brand"`
	Model        string   `json:"model,omitempty"`
	Firmware     string   `json:"firmware,omitempty"`
	RTSPURLs     []string `json:"rtspUrls"`
	ONVIFSupport bool     `json:"onvifSupport"`
	HTTPSSupport bool     `json:"httpsSupport"`
	PTZSupport   bool     `json:"ptzSupport"`
}

// IsCamera reports whether the device carries a camera payload.
func (d *Device) IsCamera() bool {
	return d.Camera != nil
}

// HasPort reports whether the given port is in the device's open port list.
func (d *Device) HasPort(port int) bool {
	for _, p := range d.OpenPorts {
		if p == port {
			return true
		}
	}
	return false
}

// ManagedDevice wraps a discovered device with registry lifecycle state.
type ManagedDevice struct {
	ID          string    `json:"id"` // Stable once assigned
	Device      Device    `json:"device"`
	Authorized  bool      `json:"authorized"`
	Tags        []string  `json:"tags"`
	Group       string    `json:"group,omitempty"` // Group ID, at most one
	Alerts      []string  `json:"alerts"`          // Alert IDs raised for this device
	Maintenance []string  `json:"maintenance"`     // Maintenance task IDs
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
}

// DeviceGroup is a named set of managed devices with shared policies.
type DeviceGroup struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Members  []string          `json:"members"` // ManagedDevice IDs
	Policies map[string]string `json:"policies,omitempty"`
}

// Alert is a registry-level notification tied to a device.
type Alert struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"deviceId"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// MaintenanceTask is a scheduled maintenance entry for a device.
type MaintenanceTask struct {
	ID            string     `json:"id"`
	DeviceID      string     `json:"deviceId"`
	Type          string     `json:"type"` // e.g. firmware-update, credential-rotation
	ScheduledDate time.Time  `json:"scheduledDate"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Vulnerability is a single security finding, immutable once produced.
type Vulnerability struct {
	Severity       string  `json:"severity"` // info, low, medium, high, critical
	Category       string  `json:"category"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Impact         string  `json:"impact,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	CVE            string  `json:"cve,omitempty"`
	CVSS           float64 `json:"cvss,omitempty"`
}

// SecurityCheck records the outcome of one assessment sub-check.
type SecurityCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass, fail, warning, unknown
	Details string `json:"details,omitempty"`
}

// ComplianceFlags summarise coarse regulatory posture for a device.
type ComplianceFlags struct {
	GDPR   bool `json:"gdpr"`
	HIPAA  bool `json:"hipaa"`
	PCIDSS bool `json:"pciDss"`
	NIST   bool `json:"nist"`
}

// SecurityAssessment is a wholesale per-device snapshot, recomputed each run.
type SecurityAssessment struct {
	DeviceID        string          `json:"deviceId"` // Device IP
	ScanDate        time.Time       `json:"scanDate"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	SecurityChecks  []SecurityCheck `json:"securityChecks"`
	RiskScore       int             `json:"riskScore"` // 0-100
	OverallRisk     string          `json:"overallRisk"`
	Compliance      ComplianceFlags `json:"compliance"`
}

// SecurityEvent is a monitor-level event with a resolve-once lifecycle.
type SecurityEvent struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Source      string     `json:"source"` // Device IP
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
	Resolved    bool       `json:"resolved"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// ScanOptions controls one scan invocation. Immutable per scan.
type ScanOptions struct {
	Timeout     time.Duration `json:"timeout"`
	Concurrency int           `json:"concurrency"`
	Ports       []int         `json:"ports"`
	DeepScan    bool          `json:"deepScan"` // Run camera fingerprinting + assessment
}
