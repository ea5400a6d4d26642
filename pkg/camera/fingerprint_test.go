package camera

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

func testServer(t *testing.T, handler http.Handler) (*httptest.Server, int) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return srv, port
}

func TestFingerprintBrandMatch(t *testing.T) {
	_, port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>HIKVISION login</title>Model DS-2CD2042WD firmware V5.4.5</html>`))
	}))

	f := NewFingerprinter(nil, nil, nil)
	f.WebPorts = []int{port}
	f.ONVIFPorts = nil

	device := &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}}
	info := f.Fingerprint(context.Background(), device)
	if info == nil {
		t.Fatal("expected a camera, got nil")
	}
	if info.Brand != "hikvision" {
		t.Fatalf("expected brand hikvision, got %q", info.Brand)
	}
	if info.Model != "DS-2CD2042WD" {
		t.Fatalf("expected model DS-2CD2042WD, got %q", info.Model)
	}
	if info.Firmware != "v5.4.5" {
		t.Fatalf("expected firmware v5.4.5, got %q", info.Firmware)
	}
	if len(info.RTSPURLs) == 0 {
		t.Fatal("expected RTSP candidates for hikvision")
	}
}

func TestFingerprintFirstBrandWins(t *testing.T) {
	// Body mentions both hikvision and dahua; dictionary order decides.
	_, port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("dahua compatible, hikvision protocol supported"))
	}))

	f := NewFingerprinter(nil, nil, nil)
	f.WebPorts = []int{port}
	f.ONVIFPorts = nil

	info := f.Fingerprint(context.Background(), &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}})
	if info == nil || info.Brand != "hikvision" {
		t.Fatalf("expected hikvision (first in dictionary), got %+v", info)
	}
}

func TestFingerprintGenericKeywords(t *testing.T) {
	_, port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Network Video Surveillance System</body></html>"))
	}))

	f := NewFingerprinter(nil, nil, nil)
	f.WebPorts = []int{port}
	f.ONVIFPorts = nil

	info := f.Fingerprint(context.Background(), &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}})
	if info == nil {
		t.Fatal("expected a generic camera")
	}
	if info.Brand != GenericBrand {
		t.Fatalf("expected brand %q, got %q", GenericBrand, info.Brand)
	}

	urls := info.RTSPURLs
	if len(urls) != 3 {
		t.Fatalf("expected 3 generic RTSP candidates, got %d", len(urls))
	}
	if urls[0] != "rtsp://127.0.0.1:554/live" {
		t.Fatalf("unexpected first generic candidate: %s", urls[0])
	}
}

func TestFingerprintNoCamera(t *testing.T) {
	_, port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Apache2 Debian Default Page</body></html>"))
	}))

	f := NewFingerprinter(nil, nil, nil)
	f.WebPorts = []int{port}
	f.ONVIFPorts = nil

	info := f.Fingerprint(context.Background(), &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}})
	if info != nil {
		t.Fatalf("expected nil for a non-camera host, got %+v", info)
	}
}

func TestProbeONVIFUnauthorizedCountsAsSupport(t *testing.T) {
	_, port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/onvif/device_service" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("hikvision web service camera"))
	}))

	f := NewFingerprinter(nil, nil, nil)
	f.WebPorts = []int{port}
	f.ONVIFPorts = []int{port}

	info := f.Fingerprint(context.Background(), &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}})
	if info == nil {
		t.Fatal("expected a camera")
	}
	if !info.ONVIFSupport {
		t.Fatal("expected 401 from the device service to count as ONVIF support")
	}
}

func TestProbeONVIFPTZCapability(t *testing.T) {
	_, port := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`<Envelope><Capabilities><PTZ><XAddr>http://x/onvif/ptz</XAddr></PTZ></Capabilities></Envelope>`))
			return
		}
		w.Write([]byte("dahua web client"))
	}))

	f := NewFingerprinter(nil, nil, nil)
	f.WebPorts = []int{port}
	f.ONVIFPorts = []int{port}

	info := f.Fingerprint(context.Background(), &models.Device{IP: "127.0.0.1", OpenPorts: []int{port}})
	if info == nil {
		t.Fatal("expected a camera")
	}
	if !info.ONVIFSupport || !info.PTZSupport {
		t.Fatalf("expected ONVIF + PTZ support, got onvif=%v ptz=%v", info.ONVIFSupport, info.PTZSupport)
	}
}

func TestRTSPCandidatesKnownBrand(t *testing.T) {
	f := NewFingerprinter(nil, nil, nil)
	urls := f.RTSPCandidates("192.168.1.12", "hikvision")
	if len(urls) != 3 {
		t.Fatalf("expected 3 hikvision candidates, got %d", len(urls))
	}
	if urls[0] != "rtsp://192.168.1.12:554/Streaming/Channels/101" {
		t.Fatalf("unexpected candidate: %s", urls[0])
	}
}
