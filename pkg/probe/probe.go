// Package probe implements single-host reachability and identification:
// TCP port probes plus the composite host probe (ping, reverse DNS, ARP
// table, OUI vendor lookup, bounded port sweep).
package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// serviceNames maps well-known ports to service names.
var serviceNames = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	135:   "MSRPC",
	139:   "NetBIOS",
	143:   "IMAP",
	443:   "HTTPS",
	445:   "SMB",
	548:   "AFP",
	554:   "RTSP",
	631:   "IPP",
	1433:  "MSSQL",
	1883:  "MQTT",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	8000:  "HTTP-Alt",
	8080:  "HTTP-Alt",
	8443:  "HTTPS-Alt",
	9100:  "JetDirect",
	37777: "Dahua-DVR",
}

// ServiceName returns the service name for a port, or "Unknown".
func ServiceName(port int) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "Unknown"
}

// ProbePort reports whether a TCP connection to ip:port succeeds within the
// timeout. Any error, including timeout, counts as closed. No retries.
func ProbePort(ip string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Prober performs composite host probes.
type Prober struct {
	OUI          OUITable
	Resolver     *net.Resolver
	PingFallback bool // Treat an open TCP port as proof of reachability
	logger       *logrus.Logger
}

// NewProber creates a Prober. A nil OUI table selects the built-in table; a
// nil logger selects a fresh logrus logger.
func NewProber(oui OUITable, logger *logrus.Logger) *Prober {
	if oui == nil {
		oui = DefaultOUITable
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Prober{
		OUI:          oui,
		Resolver:     net.DefaultResolver,
		PingFallback: true,
		logger:       logger,
	}
}

// ProbeHost probes a single address. An unreachable host yields (nil, nil):
// absence of a device is not an error. Identification sub-steps (hostname,
// MAC, vendor) are best-effort and never abort the probe.
func (p *Prober) ProbeHost(ctx context.Context, ip string, opts models.ScanOptions) (*models.Device, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("invalid address: %s", ip)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	start := time.Now()
	reachable := p.ping(ctx, ip, timeout)

	var openPorts []int
	if reachable {
		openPorts = p.sweepPorts(ctx, ip, opts.Ports, timeout, opts.Concurrency)
	} else if p.PingFallback {
		// Hosts dropping ICMP still answer on TCP; the sweep doubles as the
		// reachability test.
		openPorts = p.sweepPorts(ctx, ip, opts.Ports, timeout, opts.Concurrency)
		reachable = len(openPorts) > 0
	}
	if !reachable {
		return nil, nil
	}

	device := &models.Device{
		IP:         ip,
		OpenPorts:  openPorts,
		Status:     models.StatusOnline,
		ResponseMs: time.Since(start).Milliseconds(),
		LastSeen:   time.Now(),
	}

	for _, port := range openPorts {
		device.Services = append(device.Services, ServiceName(port))
	}

	if hostname := p.reverseDNS(ctx, ip); hostname != "" {
		device.Hostname = hostname
	}
	if mac := lookupARP(ip); mac != "" {
		device.MAC = mac
		device.Vendor = p.OUI.LookupVendor(mac)
	}

	p.logger.WithFields(logrus.Fields{
		"ip":    ip,
		"ports": len(openPorts),
	}).Debug("host probe complete")

	return device, nil
}

// ping invokes the platform ping binary with a single echo request.
func (p *Prober) ping(ctx context.Context, ip string, timeout time.Duration) bool {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "ping", "-n", "1", "-w", strconv.Itoa(secs*1000), ip)
	case "darwin":
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs*1000), ip)
	default:
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), ip)
	}

	return cmd.Run() == nil
}

// sweepPorts probes the port set with bounded concurrency, returning open
// ports in ascending order.
func (p *Prober) sweepPorts(ctx context.Context, ip string, ports []int, timeout time.Duration, concurrency int) []int {
	if concurrency <= 0 {
		concurrency = 16
	}

	semaphore := make(chan struct{}, concurrency)
	results := make(chan int, len(ports))
	var wg sync.WaitGroup

	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			if ProbePort(ip, port, timeout) {
				results <- port
			}
		}(port)
	}

	wg.Wait()
	close(results)

	open := make([]int, 0, len(ports))
	for port := range results {
		open = append(open, port)
	}
	sort.Ints(open)
	return open
}

// reverseDNS resolves the PTR record for an address, best-effort.
func (p *Prober) reverseDNS(ctx context.Context, ip string) string {
	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	lookupCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	names, err := resolver.LookupAddr(lookupCtx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSpace(names[0]), ".")
}

// lookupARP reads the system ARP table for the address's MAC, best-effort.
func lookupARP(ip string) string {
	if runtime.GOOS == "linux" {
		if mac := lookupARPLinux(ip); mac != "" {
			return mac
		}
	}
	return lookupARPCommand(ip)
}

// lookupARPLinux parses /proc/net/arp:
// IP address  HW type  Flags  HW address  Mask  Device
func lookupARPLinux(ip string) string {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		return ""
	}
	return parseARPTable(string(data), ip)
}

func parseARPTable(data, ip string) string {
	lines := strings.Split(data, "\n")
	if len(lines) < 2 {
		return ""
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if fields[0] == ip && fields[3] != "00:00:00:00:00:00" {
			return strings.ToUpper(fields[3])
		}
	}
	return ""
}

// lookupARPCommand shells out to "arp -n <ip>" (or "arp -a" style output) and
// extracts the first MAC-looking token on the matching line.
func lookupARPCommand(ip string) string {
	out, err := exec.Command("arp", "-n", ip).Output()
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, ip) {
			continue
		}
		for _, field := range strings.Fields(line) {
			if isMAC(field) {
				return strings.ToUpper(field)
			}
		}
	}
	return ""
}

func isMAC(s string) bool {
	_, err := net.ParseMAC(s)
	return err == nil
}
