// Package classify maps probe results to device types, capabilities and
// coarse risk levels. Classification is an ordered rule tree: rules are
// evaluated top to bottom and the first match wins, so results are
// deterministic for a given input.
package classify

import (
	"strings"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// Device type names produced by the classifier.
const (
	TypeCamera  = "IP Camera"
	TypeRouter  = "Router/Gateway"
	TypeServer  = "Server"
	TypeWindows = "Windows Computer"
	TypePrinter = "Printer"
	TypeNAS     = "NAS"
	TypeUnknown = "Unknown Device"
)

// cameraKeywords are hostname/vendor substrings that mark a web-capable host
// as a camera.
var cameraKeywords = []string{
	"hikvision", "dahua", "axis", "foscam", "uniview", "reolink",
	"amcrest", "vivotek", "camera", "ipcam", "cam-", "nvr", "dvr",
}

// DeviceType classifies a host from its open ports, hostname and vendor.
func DeviceType(openPorts []int, hostname, vendor string) string {
	ports := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		ports[p] = true
	}

	// 1. Camera: RTSP/DVR ports, or a web interface with a camera keyword.
	if ports[554] || ports[37777] {
		return TypeCamera
	}
	if (ports[80] || ports[443]) && hasCameraKeyword(hostname, vendor) {
		return TypeCamera
	}

	// 2. Router/Gateway: both web ports plus a management shell.
	if ports[80] && ports[443] && (ports[22] || ports[23]) {
		return TypeRouter
	}

	// 3. Server: SSH plus a web port.
	if ports[22] && (ports[80] || ports[443]) {
		return TypeServer
	}

	// 4. Windows host: the RPC/NetBIOS/SMB triple.
	if ports[135] && ports[139] && ports[445] {
		return TypeWindows
	}

	// 5. Printer: IPP or JetDirect.
	if ports[631] || ports[9100] {
		return TypePrinter
	}

	// 6. NAS: SMB shares plus AFP.
	if ports[139] && ports[445] && ports[548] {
		return TypeNAS
	}

	return TypeUnknown
}

func hasCameraKeyword(hostname, vendor string) bool {
	haystack := strings.ToLower(hostname + " " + vendor)
	for _, kw := range cameraKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// capabilityMap maps service names to user-facing capabilities.
var capabilityMap = []struct {
	service    string
	capability string
}{
	{"HTTP", "Web Interface"},
	{"HTTPS", "Web Interface"},
	{"HTTP-Alt", "Web Interface"},
	{"HTTPS-Alt", "Web Interface"},
	{"SSH", "Remote Shell"},
	{"Telnet", "Remote Shell"},
	{"RDP", "Remote Desktop"},
	{"VNC", "VNC Access"},
	{"SMB", "File Sharing"},
	{"NetBIOS", "File Sharing"},
	{"AFP", "File Sharing"},
	{"FTP", "File Transfer"},
	{"RTSP", "Video Streaming"},
	{"Dahua-DVR", "Video Streaming"},
	{"IPP", "Printing"},
	{"JetDirect", "Printing"},
}

// Capabilities derives the capability list for a set of services. Each
// capability appears once, in map order.
func Capabilities(services []string) []string {
	have := make(map[string]bool, len(services))
	for _, s := range services {
		have[s] = true
	}

	var caps []string
	seen := make(map[string]bool)
	for _, entry := range capabilityMap {
		if have[entry.service] && !seen[entry.capability] {
			caps = append(caps, entry.capability)
			seen[entry.capability] = true
		}
	}
	return caps
}

// Classify fills DeviceType, Capabilities, RiskScore and RiskLevel on a
// probed device in place.
func Classify(device *models.Device) {
	device.DeviceType = DeviceType(device.OpenPorts, device.Hostname, device.Vendor)
	device.Capabilities = Capabilities(device.Services)
	device.RiskScore, device.RiskLevel = ScoreDeviceRisk(device.OpenPorts, device.Services, device.DeviceType)
}
