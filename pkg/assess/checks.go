package assess

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// Check names recorded on assessments.
const (
	checkNameDefaultCredentials = "default-credentials"
	checkNameRTSPExposure       = "rtsp-exposure"
	checkNameWebInterface       = "web-interface"
	checkNameONVIFAuth          = "onvif-auth"
	checkNameFirmwareCVE        = "firmware-cve"
	checkNameEncryption         = "encryption"
	checkNameOpenPorts          = "open-ports"
)

// Check status values.
const (
	checkStatusPass    = "pass"
	checkStatusFail    = "fail"
	checkStatusWarning = "warning"
	checkStatusUnknown = "unknown"
)

func (a *Assessor) record(assessment *models.SecurityAssessment, name, status, details string) {
	assessment.SecurityChecks = append(assessment.SecurityChecks, models.SecurityCheck{
		Name:    name,
		Status:  status,
		Details: details,
	})
}

// checkDefaultCredentials tries the first entries of the credential list
// against HTTP Basic Auth, or a WS-Security ONVIF request for ONVIF devices.
// Any accepted pair is a critical finding.
func (a *Assessor) checkDefaultCredentials(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	port := a.firstOpenWebPort(device)
	if port == 0 {
		a.record(assessment, checkNameDefaultCredentials, checkStatusUnknown, "no web interface to test")
		return
	}

	creds := a.Credentials
	if len(creds) > maxCredentialAttempts {
		creds = creds[:maxCredentialAttempts]
	}

	onvif := device.Camera != nil && device.Camera.ONVIFSupport
	for _, cred := range creds {
		var accepted bool
		if onvif {
			accepted = a.tryONVIFCredentials(ctx, device.IP, port, cred)
		} else {
			accepted = a.tryBasicAuth(ctx, device.IP, port, cred)
		}
		if accepted {
			assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
				Severity:       models.SeverityCritical,
				Category:       "authentication",
				Title:          "Default credentials accepted",
				Description:    fmt.Sprintf("The device accepted the factory credential pair %q/%q.", cred.Username, cred.Password),
				Impact:         "Full administrative access for anyone on the network.",
				Recommendation: "Change the default password immediately and disable unused accounts.",
				CVSS:           9.8,
			})
			a.record(assessment, checkNameDefaultCredentials, checkStatusFail,
				fmt.Sprintf("accepted %s/%s", cred.Username, cred.Password))
			return
		}
	}

	a.record(assessment, checkNameDefaultCredentials, checkStatusPass, "")
}

func (a *Assessor) tryBasicAuth(ctx context.Context, ip string, port int, cred Credential) bool {
	url := fmt.Sprintf("%s://%s:%d/", schemeFor(port), ip, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.SetBasicAuth(cred.Username, cred.Password)

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusFound
}

// tryONVIFCredentials issues a WS-Security UsernameToken GetDeviceInformation
// request. Acceptance is a plain 200.
func (a *Assessor) tryONVIFCredentials(ctx context.Context, ip string, port int, cred Credential) bool {
	nonce := fmt.Sprintf("%d", time.Now().UnixNano())
	created := time.Now().UTC().Format(time.RFC3339)
	digest := wsseDigest(nonce, created, cred.Password)

	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Header>
    <Security xmlns="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd">
      <UsernameToken>
        <Username>%s</Username>
        <Password Type="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest">%s</Password>
        <Nonce>%s</Nonce>
        <Created>%s</Created>
      </UsernameToken>
    </Security>
  </s:Header>
  <s:Body>
    <GetDeviceInformation xmlns="http://www.onvif.org/ver10/device/wsdl"/>
  </s:Body>
</s:Envelope>`, cred.Username, digest, base64.StdEncoding.EncodeToString([]byte(nonce)), created)

	url := fmt.Sprintf("http://%s:%d/onvif/device_service", ip, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(envelope))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode == http.StatusOK
}

// wsseDigest computes base64(sha1(nonce + created + password)).
func wsseDigest(nonce, created, password string) string {
	h := sha1.New()
	h.Write([]byte(nonce))
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// checkRTSPExposure probes stream URLs with HTTP OPTIONS on the RTSP port.
// A 2xx answer without authentication marks the stream as unprotected.
func (a *Assessor) checkRTSPExposure(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	if !device.HasPort(a.RTSPPort) {
		a.record(assessment, checkNameRTSPExposure, checkStatusPass, "rtsp port closed")
		return
	}

	paths := []string{"/live", "/stream1", "/video1"}
	if device.Camera != nil {
		// Reuse the path component of the estimated stream URLs.
		for _, raw := range device.Camera.RTSPURLs {
			rest := strings.TrimPrefix(raw, "rtsp://")
			if i := strings.Index(rest, "/"); i >= 0 {
				paths = append(paths, rest[i:])
			}
		}
	}

	for _, path := range paths {
		url := fmt.Sprintf("http://%s:%d%s", device.IP, a.RTSPPort, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodOptions, url, nil)
		if err != nil {
			continue
		}
		resp, err := a.client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
				Severity:       models.SeverityHigh,
				Category:       "exposure",
				Title:          "Unprotected RTSP stream",
				Description:    fmt.Sprintf("The stream endpoint %s answers without authentication.", path),
				Impact:         "Live video is viewable by anyone on the network.",
				Recommendation: "Enable RTSP authentication or restrict the port to the VMS host.",
			})
			a.record(assessment, checkNameRTSPExposure, checkStatusFail, path)
			return
		}
	}

	a.record(assessment, checkNameRTSPExposure, checkStatusPass, "")
}

// disclosureMarkers are body substrings that leak configuration or identity.
var disclosureMarkers = []string{
	"server version", "firmware version", "serial number",
	"default password", "index of /", "phpinfo()",
}

// defaultPageMarkers identify factory/default landing pages.
var defaultPageMarkers = []string{
	"welcome to your new", "default web site page", "it works!",
	"please change the default password", "first time setup",
}

// checkWebInterface fetches each open web port and inspects security headers
// and body content. Findings are medium severity.
func (a *Assessor) checkWebInterface(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	tested := false
	var issues []string

	for _, port := range a.WebPorts {
		if !device.HasPort(port) {
			continue
		}
		url := fmt.Sprintf("%s://%s:%d/", schemeFor(port), device.IP, port)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := a.client.Do(req)
		if err != nil {
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 128<<10))
		resp.Body.Close()
		tested = true

		if resp.Header.Get("X-Frame-Options") == "" {
			issues = append(issues, fmt.Sprintf("port %d: missing X-Frame-Options", port))
		}
		if resp.Header.Get("X-Content-Type-Options") == "" {
			issues = append(issues, fmt.Sprintf("port %d: missing X-Content-Type-Options", port))
		}
		if schemeFor(port) == "https" && resp.Header.Get("Strict-Transport-Security") == "" {
			issues = append(issues, fmt.Sprintf("port %d: missing HSTS", port))
		}

		text := strings.ToLower(string(body))
		for _, marker := range disclosureMarkers {
			if strings.Contains(text, marker) {
				issues = append(issues, fmt.Sprintf("port %d: information disclosure (%q)", port, marker))
				break
			}
		}
		for _, marker := range defaultPageMarkers {
			if strings.Contains(text, marker) {
				issues = append(issues, fmt.Sprintf("port %d: default page served", port))
				break
			}
		}
	}

	if !tested {
		a.record(assessment, checkNameWebInterface, checkStatusUnknown, "no web interface reachable")
		return
	}
	if len(issues) == 0 {
		a.record(assessment, checkNameWebInterface, checkStatusPass, "")
		return
	}

	assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
		Severity:       models.SeverityMedium,
		Category:       "configuration",
		Title:          "Web interface hardening issues",
		Description:    strings.Join(issues, "; "),
		Recommendation: "Set standard security headers and replace default pages.",
	})
	a.record(assessment, checkNameWebInterface, checkStatusWarning, strings.Join(issues, "; "))
}

// checkONVIFAuth verifies the device service rejects unauthenticated
// GetCapabilities calls. 401 passes; 200 is a high finding.
func (a *Assessor) checkONVIFAuth(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	if device.Camera == nil || !device.Camera.ONVIFSupport {
		a.record(assessment, checkNameONVIFAuth, checkStatusPass, "onvif not present")
		return
	}

	port := a.firstOpenWebPort(device)
	if port == 0 {
		a.record(assessment, checkNameONVIFAuth, checkStatusUnknown, "no reachable onvif port")
		return
	}

	envelope := `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body>
<GetCapabilities xmlns="http://www.onvif.org/ver10/device/wsdl"><Category>All</Category></GetCapabilities>
</s:Body></s:Envelope>`

	url := fmt.Sprintf("http://%s:%d/onvif/device_service", device.IP, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(envelope))
	if err != nil {
		a.record(assessment, checkNameONVIFAuth, checkStatusUnknown, err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := a.client.Do(req)
	if err != nil {
		a.record(assessment, checkNameONVIFAuth, checkStatusUnknown, err.Error())
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		a.record(assessment, checkNameONVIFAuth, checkStatusPass, "")
	case http.StatusOK:
		assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
			Severity:       models.SeverityHigh,
			Category:       "authentication",
			Title:          "ONVIF service accepts unauthenticated requests",
			Description:    "GetCapabilities succeeded without credentials.",
			Impact:         "Device configuration and stream URIs are exposed to the network.",
			Recommendation: "Enable ONVIF authentication on the device.",
		})
		a.record(assessment, checkNameONVIFAuth, checkStatusFail, "unauthenticated 200")
	default:
		a.record(assessment, checkNameONVIFAuth, checkStatusWarning,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

// checkFirmwareCVEs consults the static CVE table for the device's
// manufacturer/model. Hits are appended verbatim.
func (a *Assessor) checkFirmwareCVEs(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	manufacturer := device.Vendor
	model := ""
	if device.Camera != nil {
		if device.Camera.Brand != "" {
			manufacturer = device.Camera.Brand
		}
		model = device.Camera.Model
	}
	if manufacturer == "" {
		a.record(assessment, checkNameFirmwareCVE, checkStatusUnknown, "manufacturer unknown")
		return
	}

	hits := a.CVEs.Lookup(manufacturer, model)
	if len(hits) == 0 {
		a.record(assessment, checkNameFirmwareCVE, checkStatusPass, "")
		return
	}

	for _, hit := range hits {
		assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
			Severity:       hit.Severity,
			Category:       "firmware",
			Title:          hit.Title,
			Description:    hit.Description,
			Recommendation: "Update the device firmware to the latest vendor release.",
			CVE:            hit.CVE,
			CVSS:           hit.CVSS,
		})
	}
	a.record(assessment, checkNameFirmwareCVE, checkStatusFail,
		fmt.Sprintf("%d known firmware vulnerabilities", len(hits)))
}

// checkEncryption verifies an encrypted management path exists. HTTPS
// reachable passes; HTTP only is a high finding; neither is inconclusive.
func (a *Assessor) checkEncryption(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	httpsOK := false
	for _, port := range a.HTTPSPorts {
		if a.portAnswers(ctx, device, port, "https") {
			httpsOK = true
			break
		}
	}
	if httpsOK {
		a.record(assessment, checkNameEncryption, checkStatusPass, "")
		return
	}

	httpOK := false
	for _, port := range a.HTTPPorts {
		if a.portAnswers(ctx, device, port, "http") {
			httpOK = true
			break
		}
	}
	if httpOK {
		assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
			Severity:       models.SeverityHigh,
			Category:       "encryption",
			Title:          "Management interface without encryption",
			Description:    "The device serves its web interface over plain HTTP only.",
			Impact:         "Credentials and video metadata cross the network in cleartext.",
			Recommendation: "Enable HTTPS on the device or front it with a TLS proxy.",
		})
		a.record(assessment, checkNameEncryption, checkStatusFail, "http only")
		return
	}

	a.record(assessment, checkNameEncryption, checkStatusWarning, "no web interface reachable")
}

func (a *Assessor) portAnswers(ctx context.Context, device *models.Device, port int, scheme string) bool {
	if !device.HasPort(port) {
		return false
	}
	url := fmt.Sprintf("%s://%s:%d/", scheme, device.IP, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// checkOpenPorts flags risky services on non-camera devices. Cameras get the
// dedicated camera checks instead.
func (a *Assessor) checkOpenPorts(ctx context.Context, device *models.Device, assessment *models.SecurityAssessment) {
	if device.Camera != nil {
		a.record(assessment, checkNameOpenPorts, checkStatusPass, "camera-specific checks apply")
		return
	}

	var risky []string
	for _, port := range device.OpenPorts {
		if name, ok := riskyServices[port]; ok {
			risky = append(risky, fmt.Sprintf("%s (%d)", name, port))
		}
	}

	if len(risky) == 0 {
		a.record(assessment, checkNameOpenPorts, checkStatusPass, "")
		return
	}

	assessment.Vulnerabilities = append(assessment.Vulnerabilities, models.Vulnerability{
		Severity:       models.SeverityMedium,
		Category:       "exposure",
		Title:          "Risky services exposed",
		Description:    "Open ports expose services frequently abused on LANs: " + strings.Join(risky, ", ") + ".",
		Recommendation: "Disable unused services or restrict them with firewall rules.",
	})
	a.record(assessment, checkNameOpenPorts, checkStatusWarning, strings.Join(risky, ", "))
}

func (a *Assessor) firstOpenWebPort(device *models.Device) int {
	for _, port := range a.WebPorts {
		if device.HasPort(port) {
			return port
		}
	}
	return 0
}

func schemeFor(port int) string {
	if port == 443 || port == 8443 {
		return "https"
	}
	return "http"
}
