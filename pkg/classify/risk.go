package classify

import (
	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// Risk thresholds shared by both scorers.
const (
	riskHighThreshold   = 5
	riskMediumThreshold = 2
)

// ScoreDeviceRisk computes the generic device risk score and level.
//
// Weight table (all matching conditions accumulate):
//
//	Telnet service   +3      port 23 open  +3 (fires independently of the service row)
//	FTP service      +2      port 21 open  +2
//	RDP service      +2      port 135 open +1
//	VNC service      +2
//	SSH service      +1
//	SMB service      +1
//	type IP Camera       +1
//	type Router/Gateway  +2
//
// Level: score >= 5 high, >= 2 medium, else low.
func ScoreDeviceRisk(openPorts []int, services []string, deviceType string) (int, string) {
	score := 0

	serviceWeights := map[string]int{
		"Telnet": 3,
		"FTP":    2,
		"RDP":    2,
		"VNC":    2,
		"SSH":    1,
		"SMB":    1,
	}
	for _, svc := range services {
		score += serviceWeights[svc]
	}

	switch deviceType {
	case TypeCamera:
		score++
	case TypeRouter:
		score += 2
	}

	for _, port := range openPorts {
		switch port {
		case 23:
			score += 3
		case 21:
			score += 2
		case 135:
			score++
		}
	}

	return score, riskLevel(score)
}

// ScoreCameraRisk computes the camera-specific risk score and level. Cameras
// are scored on the exposure of their streaming and management surfaces, with
// a weight table separate from ScoreDeviceRisk.
//
// Weight table:
//
//	RTSP candidates without ONVIF support   +4
//	HTTP web UI without HTTPS               +2
//	ONVIF enabled (regardless of auth)      +2
//	Telnet open on the camera               +3
//	Default RTSP port (554) exposed         +1
func ScoreCameraRisk(device *models.Device) (int, string) {
	if device == nil || device.Camera == nil {
		return 0, models.RiskLow
	}
	cam := device.Camera
	score := 0

	if len(cam.RTSPURLs) > 0 && !cam.ONVIFSupport {
		score += 4
	}
	hasWeb := device.HasPort(80) || device.HasPort(8080) || device.HasPort(8000)
	if hasWeb && !cam.HTTPSSupport {
		score += 2
	}
	if cam.ONVIFSupport {
		score += 2
	}
	if device.HasPort(23) {
		score += 3
	}
	if device.HasPort(554) {
		score++
	}

	return score, riskLevel(score)
}

func riskLevel(score int) string {
	switch {
	case score >= riskHighThreshold:
		return models.RiskHigh
	case score >= riskMediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
