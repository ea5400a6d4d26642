// Package iprange expands address range expressions into concrete IPv4 lists.
//
// Three forms are recognised: CIDR ("192.168.1.0/24"), last-octet dash ranges
// ("192.168.1.5-192.168.1.9" or "192.168.1.5-9") and single addresses. Input
// matching none of the forms is returned as-is in a single-element list so
// that callers decide how strict to be.
package iprange

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultMaxHosts caps expansion of wide CIDR ranges.
const DefaultMaxHosts = 1024

// Expand turns a range expression into an ordered list of dotted-quad
// addresses, capped at DefaultMaxHosts.
func Expand(expr string) []string {
	return ExpandLimit(expr, DefaultMaxHosts)
}

// ExpandLimit is Expand with an explicit host cap. A cap <= 0 means
// DefaultMaxHosts.
func ExpandLimit(expr string, cap int) []string {
	if cap <= 0 {
		cap = DefaultMaxHosts
	}
	expr = strings.TrimSpace(expr)

	if strings.Contains(expr, "/") {
		if ips := expandCIDR(expr, cap); ips != nil {
			return ips
		}
	}
	if strings.Contains(expr, "-") {
		if ips := expandDashRange(expr); ips != nil {
			return ips
		}
	}

	// Malformed or single address: hand back the literal input.
	return []string{expr}
}

// expandCIDR walks the network, skipping network and broadcast addresses.
// Returns nil when the expression is not valid CIDR.
func expandCIDR(expr string, cap int) []string {
	ip, network, err := net.ParseCIDR(expr)
	if err != nil || ip.To4() == nil {
		return nil
	}

	ones, bits := network.Mask.Size()
	if bits != 32 {
		return nil
	}

	total := 1 << uint(32-ones)
	ips := make([]string, 0, total)

	cur := network.IP.Mask(network.Mask).To4()
	for i := 0; i < total && len(ips) < cap; i++ {
		skip := ones <= 30 && (i == 0 || i == total-1) // network + broadcast
		if !skip {
			addr := make(net.IP, len(cur))
			copy(addr, cur)
			ips = append(ips, addr.String())
		}
		inc(cur)
	}

	return ips
}

// expandDashRange handles "a.b.c.start-end" and "a.b.c.start-a.b.c.end".
// Returns nil when the expression does not parse as a last-octet range.
func expandDashRange(expr string) []string {
	parts := strings.SplitN(expr, "-", 2)
	if len(parts) != 2 {
		return nil
	}

	start := net.ParseIP(strings.TrimSpace(parts[0]))
	if start == nil || start.To4() == nil {
		return nil
	}
	start = start.To4()

	endPart := strings.TrimSpace(parts[1])
	var endOctet int
	if end := net.ParseIP(endPart); end != nil && end.To4() != nil {
		end = end.To4()
		// Only last-octet ranges are supported; prefixes must agree.
		if end[0] != start[0] || end[1] != start[1] || end[2] != start[2] {
			return nil
		}
		endOctet = int(end[3])
	} else {
		n, err := strconv.Atoi(endPart)
		if err != nil || n < 0 || n > 255 {
			return nil
		}
		endOctet = n
	}

	startOctet := int(start[3])
	if endOctet < startOctet {
		return nil
	}

	prefix := fmt.Sprintf("%d.%d.%d.", start[0], start[1], start[2])
	ips := make([]string, 0, endOctet-startOctet+1)
	for o := startOctet; o <= endOctet; o++ {
		ips = append(ips, prefix+strconv.Itoa(o))
	}
	return ips
}

func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
