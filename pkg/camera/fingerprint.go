// Package camera identifies IP cameras behind discovered hosts: brand
// matching over HTTP responses, model/firmware extraction, ONVIF capability
// probing and RTSP stream URL estimation.
package camera

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// Web ports inspected for camera interfaces, in probe order.
var defaultWebPorts = []int{80, 443, 8080, 8000, 8443}

// Ports tried for the ONVIF device service.
var defaultONVIFPorts = []int{80, 8080, 8000}

// ONVIF device service paths, in probe order.
var onvifPaths = []string{"/onvif/device_service", "/onvif/Device"}

// Fingerprinter probes hosts for camera interfaces.
type Fingerprinter struct {
	Brands     []BrandPattern
	Templates  RTSPTemplates
	WebPorts   []int
	ONVIFPorts []int
	Timeout    time.Duration

	client *http.Client
	logger *logrus.Logger
}

// NewFingerprinter creates a Fingerprinter. Nil tables select the built-in
// brand dictionary and RTSP templates.
func NewFingerprinter(brands []BrandPattern, templates RTSPTemplates, logger *logrus.Logger) *Fingerprinter {
	if brands == nil {
		brands = DefaultBrandPatterns
	}
	if templates == nil {
		templates = DefaultRTSPTemplates
	}
	if logger == nil {
		logger = logrus.New()
	}
	timeout := 4 * time.Second
	return &Fingerprinter{
		Brands:     brands,
		Templates:  templates,
		WebPorts:   append([]int(nil), defaultWebPorts...),
		ONVIFPorts: append([]int(nil), defaultONVIFPorts...),
		Timeout:    timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// Cameras ship self-signed certificates.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: logger,
	}
}

// Fingerprint probes a device's web ports for a camera interface. Returns nil
// when no camera is identified; probing failures are not errors.
func (f *Fingerprinter) Fingerprint(ctx context.Context, device *models.Device) *models.CameraInfo {
	open := make(map[int]bool, len(device.OpenPorts))
	for _, p := range device.OpenPorts {
		open[p] = true
	}

	var info *models.CameraInfo
	for _, port := range f.WebPorts {
		if !open[port] {
			continue
		}
		body, headers, err := f.fetch(ctx, device.IP, port)
		if err != nil {
			f.logger.WithFields(logrus.Fields{"ip": device.IP, "port": port}).
				Debugf("camera fetch failed: %v", err)
			continue
		}

		haystack := strings.ToLower(body + "\n" + headers)
		brand := f.matchBrand(haystack)
		if brand == "" {
			continue
		}

		info = &models.CameraInfo{Brand: brand}
		info.Model = extractModel(brand, haystack)
		info.Firmware = extractFirmware(haystack)
		// First match wins; stop scanning further ports.
		break
	}

	if info == nil {
		return nil
	}

	info.HTTPSSupport = open[443] || open[8443]
	f.probeONVIF(ctx, device.IP, open, info)
	info.RTSPURLs = f.RTSPCandidates(device.IP, info.Brand)

	return info
}

// matchBrand tests the ordered brand dictionary, then generic keywords.
// Returns "" when nothing matches.
func (f *Fingerprinter) matchBrand(haystack string) string {
	for _, entry := range f.Brands {
		for _, pattern := range entry.Patterns {
			if strings.Contains(haystack, pattern) {
				return entry.Brand
			}
		}
	}
	for _, kw := range genericKeywords {
		if strings.Contains(haystack, kw) {
			return GenericBrand
		}
	}
	return ""
}

// fetch issues a GET against one web port and returns lowercase-preserving
// body and a flattened header block. Bodies are capped at 256 KiB.
func (f *Fingerprinter) fetch(ctx context.Context, ip string, port int) (string, string, error) {
	scheme := "http"
	if port == 443 || port == 8443 {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d/", scheme, ip, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil && len(body) == 0 {
		return "", "", err
	}

	var headers strings.Builder
	for name, values := range resp.Header {
		headers.WriteString(name)
		headers.WriteString(": ")
		headers.WriteString(strings.Join(values, ", "))
		headers.WriteString("\n")
	}

	return string(body), headers.String(), nil
}

// probeONVIF posts a GetCapabilities envelope to the candidate device
// service endpoints. Any response mentioning onvif/Capabilities, or plain
// 200/401, marks ONVIF support. PTZ capability is read from the response.
func (f *Fingerprinter) probeONVIF(ctx context.Context, ip string, open map[int]bool, info *models.CameraInfo) {
	for _, port := range f.ONVIFPorts {
		if !open[port] {
			continue
		}
		for _, path := range onvifPaths {
			url := fmt.Sprintf("http://%s:%d%s", ip, port, path)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(onvifEnvelope))
			if err != nil {
				continue
			}
			req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

			resp, err := f.client.Do(req)
			if err != nil {
				continue
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 128<<10))
			resp.Body.Close()

			text := strings.ToLower(string(body))
			supported := strings.Contains(text, "onvif") ||
				strings.Contains(text, "capabilities") ||
				resp.StatusCode == http.StatusOK ||
				resp.StatusCode == http.StatusUnauthorized
			if supported {
				info.ONVIFSupport = true
				info.PTZSupport = strings.Contains(text, "ptz")
				return
			}
		}
	}
}

// RTSPCandidates generates stream URL candidates for a brand, falling back
// to the generic templates for unknown brands.
func (f *Fingerprinter) RTSPCandidates(ip, brand string) []string {
	templates, ok := f.Templates[strings.ToLower(brand)]
	if !ok {
		templates = genericRTSPTemplates
	}
	urls := make([]string, len(templates))
	for i, tpl := range templates {
		urls[i] = strings.ReplaceAll(tpl, "{ip}", ip)
	}
	return urls
}

func extractModel(brand, haystack string) string {
	for _, re := range modelPatterns[brand] {
		if m := re.FindStringSubmatch(haystack); len(m) > 1 {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

func extractFirmware(haystack string) string {
	for _, re := range firmwarePatterns {
		if m := re.FindStringSubmatch(haystack); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
