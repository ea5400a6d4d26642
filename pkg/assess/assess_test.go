package assess

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

func testServer(t *testing.T, handler http.Handler) int {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return port
}

func newAssessment() *models.SecurityAssessment {
	return &models.SecurityAssessment{
		Vulnerabilities: []models.Vulnerability{},
		SecurityChecks:  []models.SecurityCheck{},
	}
}

func findCheck(t *testing.T, assessment *models.SecurityAssessment, name string) models.SecurityCheck {
	t.Helper()
	for _, c := range assessment.SecurityChecks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not recorded", name)
	return models.SecurityCheck{}
}

func TestCheckDefaultCredentialsAccepted(t *testing.T) {
	port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && user == "admin" && pass == "admin" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	a := NewAssessor(nil, nil, nil)
	a.WebPorts = []int{port}

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	assessment := newAssessment()
	a.checkDefaultCredentials(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected exactly one finding, got %d", len(assessment.Vulnerabilities))
	}
	vuln := assessment.Vulnerabilities[0]
	if vuln.Severity != models.SeverityCritical {
		t.Fatalf("expected critical severity, got %q", vuln.Severity)
	}
	if vuln.CVSS != 9.8 {
		t.Fatalf("expected CVSS 9.8, got %v", vuln.CVSS)
	}
	if c := findCheck(t, assessment, checkNameDefaultCredentials); c.Status != checkStatusFail {
		t.Fatalf("expected fail status, got %q", c.Status)
	}
}

func TestCheckDefaultCredentialsRejected(t *testing.T) {
	port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	a := NewAssessor(nil, nil, nil)
	a.WebPorts = []int{port}

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	assessment := newAssessment()
	a.checkDefaultCredentials(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 0 {
		t.Fatalf("expected no findings, got %d", len(assessment.Vulnerabilities))
	}
	if c := findCheck(t, assessment, checkNameDefaultCredentials); c.Status != checkStatusPass {
		t.Fatalf("expected pass status, got %q", c.Status)
	}
}

func TestCheckDefaultCredentialsNoWebInterface(t *testing.T) {
	a := NewAssessor(nil, nil, nil)
	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{22}}
	assessment := newAssessment()
	a.checkDefaultCredentials(context.Background(), device, assessment)

	if c := findCheck(t, assessment, checkNameDefaultCredentials); c.Status != checkStatusUnknown {
		t.Fatalf("expected unknown status, got %q", c.Status)
	}
}

func TestAggregateScore(t *testing.T) {
	tests := []struct {
		name       string
		severities []string
		want       int
	}{
		{"no findings", nil, 0},
		{"single critical", []string{models.SeverityCritical}, 100},
		{"single high", []string{models.SeverityHigh}, 70},
		{"single medium", []string{models.SeverityMedium}, 40},
		{"critical and info", []string{models.SeverityCritical, models.SeverityInfo}, 55},
		{"two medium", []string{models.SeverityMedium, models.SeverityMedium}, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vulns []models.Vulnerability
			for _, s := range tt.severities {
				vulns = append(vulns, models.Vulnerability{Severity: s})
			}
			if got := AggregateScore(vulns); got != tt.want {
				t.Fatalf("AggregateScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOverallRisk(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, models.RiskLow},
		{29, models.RiskLow},
		{30, models.RiskMedium},
		{59, models.RiskMedium},
		{60, models.RiskHigh},
		{79, models.RiskHigh},
		{80, models.RiskCritical},
		{100, models.RiskCritical},
	}
	for _, tt := range tests {
		if got := OverallRisk(tt.score); got != tt.want {
			t.Fatalf("OverallRisk(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestCVETableLookup(t *testing.T) {
	hits := DefaultCVETable.Lookup("Hikvision", "DS-2CD2042WD")
	if len(hits) != 2 {
		t.Fatalf("expected 2 hikvision hits for a DS-2CD model, got %d", len(hits))
	}

	hits = DefaultCVETable.Lookup("hikvision", "")
	if len(hits) != 1 {
		t.Fatalf("expected 1 model-independent hikvision hit, got %d", len(hits))
	}
	if hits[0].CVE != "CVE-2021-36260" {
		t.Fatalf("unexpected CVE: %s", hits[0].CVE)
	}

	if hits := DefaultCVETable.Lookup("acme", "x100"); len(hits) != 0 {
		t.Fatalf("expected no hits for unknown manufacturer, got %d", len(hits))
	}
}

func TestCheckFirmwareCVEs(t *testing.T) {
	a := NewAssessor(nil, nil, nil)
	device := &models.Device{
		IP:     "192.168.1.10",
		Camera: &models.CameraInfo{Brand: "dahua"},
	}
	assessment := newAssessment()
	a.checkFirmwareCVEs(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Vulnerabilities))
	}
	if assessment.Vulnerabilities[0].CVE != "CVE-2021-33044" {
		t.Fatalf("unexpected CVE: %s", assessment.Vulnerabilities[0].CVE)
	}
	if c := findCheck(t, assessment, checkNameFirmwareCVE); c.Status != checkStatusFail {
		t.Fatalf("expected fail status, got %q", c.Status)
	}
}

func TestCheckEncryptionHTTPOnly(t *testing.T) {
	port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	a := NewAssessor(nil, nil, nil)
	a.HTTPSPorts = nil
	a.HTTPPorts = []int{port}

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	assessment := newAssessment()
	a.checkEncryption(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Vulnerabilities))
	}
	if assessment.Vulnerabilities[0].Severity != models.SeverityHigh {
		t.Fatalf("expected high severity, got %q", assessment.Vulnerabilities[0].Severity)
	}
	if c := findCheck(t, assessment, checkNameEncryption); c.Status != checkStatusFail {
		t.Fatalf("expected fail status, got %q", c.Status)
	}
}

func TestCheckEncryptionHTTPSPresent(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	a := NewAssessor(nil, nil, nil)
	a.HTTPSPorts = []int{port}
	a.HTTPPorts = nil

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	assessment := newAssessment()
	a.checkEncryption(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 0 {
		t.Fatalf("expected no findings, got %d", len(assessment.Vulnerabilities))
	}
	if c := findCheck(t, assessment, checkNameEncryption); c.Status != checkStatusPass {
		t.Fatalf("expected pass status, got %q", c.Status)
	}
}

func TestCheckOpenPortsRiskyServices(t *testing.T) {
	a := NewAssessor(nil, nil, nil)
	device := &models.Device{IP: "192.168.1.20", OpenPorts: []int{23, 80, 445}}
	assessment := newAssessment()
	a.checkOpenPorts(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Vulnerabilities))
	}
	if assessment.Vulnerabilities[0].Severity != models.SeverityMedium {
		t.Fatalf("expected medium severity, got %q", assessment.Vulnerabilities[0].Severity)
	}
	c := findCheck(t, assessment, checkNameOpenPorts)
	if c.Status != checkStatusWarning {
		t.Fatalf("expected warning status, got %q", c.Status)
	}
}

func TestCheckOpenPortsSkipsCameras(t *testing.T) {
	a := NewAssessor(nil, nil, nil)
	device := &models.Device{
		IP:        "192.168.1.21",
		OpenPorts: []int{23, 554},
		Camera:    &models.CameraInfo{Brand: "hikvision"},
	}
	assessment := newAssessment()
	a.checkOpenPorts(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 0 {
		t.Fatalf("expected no findings for a camera, got %d", len(assessment.Vulnerabilities))
	}
	if c := findCheck(t, assessment, checkNameOpenPorts); c.Status != checkStatusPass {
		t.Fatalf("expected pass status, got %q", c.Status)
	}
}

func TestCheckRTSPExposureOpenStream(t *testing.T) {
	port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	a := NewAssessor(nil, nil, nil)
	a.RTSPPort = port

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	assessment := newAssessment()
	a.checkRTSPExposure(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Vulnerabilities))
	}
	if assessment.Vulnerabilities[0].Severity != models.SeverityHigh {
		t.Fatalf("expected high severity, got %q", assessment.Vulnerabilities[0].Severity)
	}
}

func TestCheckRTSPExposurePortClosed(t *testing.T) {
	a := NewAssessor(nil, nil, nil)
	device := &models.Device{IP: "192.168.1.30", OpenPorts: []int{80}}
	assessment := newAssessment()
	a.checkRTSPExposure(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 0 {
		t.Fatalf("expected no findings, got %d", len(assessment.Vulnerabilities))
	}
	if c := findCheck(t, assessment, checkNameRTSPExposure); c.Status != checkStatusPass {
		t.Fatalf("expected pass status, got %q", c.Status)
	}
}

func TestCheckONVIFAuth(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantVulns  int
		wantStatus string
	}{
		{"rejects unauthenticated", http.StatusUnauthorized, 0, checkStatusPass},
		{"accepts unauthenticated", http.StatusOK, 1, checkStatusFail},
		{"odd status", http.StatusBadGateway, 0, checkStatusWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			a := NewAssessor(nil, nil, nil)
			a.WebPorts = []int{port}

			device := &models.Device{
				IP:        "127.0.0.1",
				OpenPorts: []int{port},
				Camera:    &models.CameraInfo{Brand: "axis", ONVIFSupport: true},
			}
			assessment := newAssessment()
			a.checkONVIFAuth(context.Background(), device, assessment)

			if len(assessment.Vulnerabilities) != tt.wantVulns {
				t.Fatalf("expected %d findings, got %d", tt.wantVulns, len(assessment.Vulnerabilities))
			}
			if c := findCheck(t, assessment, checkNameONVIFAuth); c.Status != tt.wantStatus {
				t.Fatalf("expected status %q, got %q", tt.wantStatus, c.Status)
			}
		})
	}
}

func TestCheckWebInterfaceMissingHeaders(t *testing.T) {
	port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login</html>"))
	}))

	a := NewAssessor(nil, nil, nil)
	a.WebPorts = []int{port}

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	assessment := newAssessment()
	a.checkWebInterface(context.Background(), device, assessment)

	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Vulnerabilities))
	}
	if assessment.Vulnerabilities[0].Severity != models.SeverityMedium {
		t.Fatalf("expected medium severity, got %q", assessment.Vulnerabilities[0].Severity)
	}
}

func TestComplianceFlags(t *testing.T) {
	clean := newAssessment()
	clean.SecurityChecks = []models.SecurityCheck{
		{Name: checkNameDefaultCredentials, Status: checkStatusPass},
		{Name: checkNameEncryption, Status: checkStatusPass},
	}
	flags := complianceFlags(clean)
	if !flags.GDPR || !flags.HIPAA || !flags.PCIDSS || !flags.NIST {
		t.Fatalf("expected all flags set on a clean assessment, got %+v", flags)
	}

	noTLS := newAssessment()
	noTLS.SecurityChecks = []models.SecurityCheck{
		{Name: checkNameDefaultCredentials, Status: checkStatusPass},
		{Name: checkNameEncryption, Status: checkStatusFail},
	}
	flags = complianceFlags(noTLS)
	if flags.GDPR || flags.HIPAA || flags.PCIDSS {
		t.Fatalf("expected encryption-dependent flags cleared, got %+v", flags)
	}
	if !flags.NIST {
		t.Fatal("expected NIST to survive a missing-encryption finding")
	}

	severe := newAssessment()
	severe.Vulnerabilities = []models.Vulnerability{{Severity: models.SeverityCritical}}
	severe.SecurityChecks = clean.SecurityChecks
	flags = complianceFlags(severe)
	if flags.GDPR || flags.NIST {
		t.Fatalf("expected no flags with a critical finding, got %+v", flags)
	}
}

func TestAssessAggregates(t *testing.T) {
	a := NewAssessor(nil, nil, nil)
	// Unreachable web ports: the battery still completes and records checks.
	device := &models.Device{IP: "192.0.2.50", OpenPorts: []int{23}}

	assessment := a.Assess(context.Background(), device)
	if assessment.DeviceID != device.IP {
		t.Fatalf("expected device id %s, got %s", device.IP, assessment.DeviceID)
	}
	if len(assessment.SecurityChecks) != 7 {
		t.Fatalf("expected 7 recorded checks, got %d", len(assessment.SecurityChecks))
	}
	// Telnet is exposed, so the open-ports check contributes one medium finding.
	if len(assessment.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Vulnerabilities))
	}
	if assessment.RiskScore != 40 {
		t.Fatalf("expected score 40, got %d", assessment.RiskScore)
	}
	if assessment.OverallRisk != models.RiskMedium {
		t.Fatalf("expected medium risk, got %q", assessment.OverallRisk)
	}
}
