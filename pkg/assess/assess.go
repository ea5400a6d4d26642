// Package assess runs the per-device security check battery and aggregates
// findings into a SecurityAssessment. Every check is isolated: a check that
// cannot complete records a warning status instead of failing the run.
package assess

import (
	"context"
	"crypto/tls"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// Assessor runs security assessments against discovered devices.
type Assessor struct {
	Credentials []Credential
	CVEs        CVETable
	WebPorts    []int // Ports inspected by web/credential checks
	HTTPSPorts  []int // Ports counted as encrypted by the encryption check
	HTTPPorts   []int // Plaintext ports consulted by the encryption check
	RTSPPort    int
	Timeout     time.Duration

	client *http.Client
	logger *logrus.Logger
}

// NewAssessor creates an Assessor. Nil tables select the built-in credential
// list and CVE table.
func NewAssessor(creds []Credential, cves CVETable, logger *logrus.Logger) *Assessor {
	if creds == nil {
		creds = DefaultCredentials
	}
	if cves == nil {
		cves = DefaultCVETable
	}
	if logger == nil {
		logger = logrus.New()
	}
	timeout := 4 * time.Second
	return &Assessor{
		Credentials: creds,
		CVEs:        cves,
		WebPorts:    []int{80, 443, 8080, 8000, 8443},
		HTTPSPorts:  []int{443, 8443},
		HTTPPorts:   []int{80, 8080, 8000},
		RTSPPort:    554,
		Timeout:     timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			// Redirects to login pages must not turn into false positives;
			// the checks inspect the first response.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Assess runs the full battery against one device and returns a wholesale
// snapshot. The snapshot replaces, never merges with, earlier assessments.
func (a *Assessor) Assess(ctx context.Context, device *models.Device) *models.SecurityAssessment {
	assessment := &models.SecurityAssessment{
		DeviceID:        device.IP,
		ScanDate:        time.Now(),
		Vulnerabilities: []models.Vulnerability{},
		SecurityChecks:  []models.SecurityCheck{},
	}

	checks := []func(context.Context, *models.Device, *models.SecurityAssessment){
		a.checkDefaultCredentials,
		a.checkRTSPExposure,
		a.checkWebInterface,
		a.checkONVIFAuth,
		a.checkFirmwareCVEs,
		a.checkEncryption,
		a.checkOpenPorts,
	}
	for _, check := range checks {
		a.runIsolated(ctx, check, device, assessment)
	}

	assessment.RiskScore = AggregateScore(assessment.Vulnerabilities)
	assessment.OverallRisk = OverallRisk(assessment.RiskScore)
	assessment.Compliance = complianceFlags(assessment)

	return assessment
}

// runIsolated shields the assessment from a panicking check.
func (a *Assessor) runIsolated(ctx context.Context, check func(context.Context, *models.Device, *models.SecurityAssessment), device *models.Device, assessment *models.SecurityAssessment) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("ip", device.IP).Warnf("assessment check panicked: %v", r)
		}
	}()
	check(ctx, device, assessment)
}

// AggregateScore maps vulnerabilities to a 0-100 score:
// round(sum(weights) / (10 * count) * 100). No findings scores 0.
func AggregateScore(vulns []models.Vulnerability) int {
	if len(vulns) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vulns {
		sum += severityWeights[v.Severity]
	}
	return int(math.Round(float64(sum) / (10 * float64(len(vulns))) * 100))
}

// OverallRisk classifies an aggregate score.
func OverallRisk(score int) string {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 30:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// complianceFlags derives coarse regulatory posture: no critical/high
// findings, encryption in place and authentication checks passing.
func complianceFlags(assessment *models.SecurityAssessment) models.ComplianceFlags {
	severe := false
	for _, v := range assessment.Vulnerabilities {
		if v.Severity == models.SeverityCritical || v.Severity == models.SeverityHigh {
			severe = true
			break
		}
	}

	encryptionOK := checkPassed(assessment, checkNameEncryption)
	authOK := checkPassed(assessment, checkNameDefaultCredentials)

	base := !severe && authOK
	return models.ComplianceFlags{
		GDPR:   base && encryptionOK,
		HIPAA:  base && encryptionOK,
		PCIDSS: base && encryptionOK,
		NIST:   base,
	}
}

func checkPassed(assessment *models.SecurityAssessment, name string) bool {
	for _, c := range assessment.SecurityChecks {
		if c.Name == name {
			return c.Status == checkStatusPass
		}
	}
	return false
}
