package assess

import (
	"strings"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// Credential is one username/password pair from the default credential list.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DefaultCredentials is the built-in default credential list. Only the first
// maxCredentialAttempts entries are tried per device.
var DefaultCredentials = []Credential{
	{Username: "admin", Password: "admin"},
	{Username: "admin", Password: "12345"},
	{Username: "admin", Password: ""},
	{Username: "admin", Password: "password"},
	{Username: "root", Password: "root"},
	{Username: "admin", Password: "123456"},
	{Username: "user", Password: "user"},
	{Username: "root", Password: "12345"},
	{Username: "admin", Password: "1234"},
	{Username: "admin", Password: "admin123"},
}

// maxCredentialAttempts bounds the brute-check per device.
const maxCredentialAttempts = 5

// CVEEntry is one record of the static firmware vulnerability table.
type CVEEntry struct {
	Manufacturer string  `json:"manufacturer"` // lowercase
	ModelMatch   string  `json:"modelMatch"`   // lowercase substring of the model, "" matches all
	CVE          string  `json:"cve"`
	Severity     string  `json:"severity"`
	CVSS         float64 `json:"cvss"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
}

// CVETable is the pluggable (manufacturer, model) vulnerability lookup.
type CVETable []CVEEntry

// DefaultCVETable is the built-in table. Entries are illustrative of widely
// deployed camera firmware issues.
var DefaultCVETable = CVETable{
	{
		Manufacturer: "hikvision",
		ModelMatch:   "",
		CVE:          "CVE-2021-36260",
		Severity:     models.SeverityCritical,
		CVSS:         9.8,
		Title:        "Hikvision web server command injection",
		Description:  "Unauthenticated command injection in the web server of several Hikvision camera firmware lines.",
	},
	{
		Manufacturer: "hikvision",
		ModelMatch:   "ds-2cd",
		CVE:          "CVE-2017-7921",
		Severity:     models.SeverityCritical,
		CVSS:         10.0,
		Title:        "Hikvision authentication bypass",
		Description:  "Improper authentication allows retrieval of device credentials via crafted requests.",
	},
	{
		Manufacturer: "dahua",
		ModelMatch:   "",
		CVE:          "CVE-2021-33044",
		Severity:     models.SeverityCritical,
		CVSS:         9.8,
		Title:        "Dahua identity authentication bypass",
		Description:  "Authentication bypass during the login process via crafted data packets.",
	},
	{
		Manufacturer: "axis",
		ModelMatch:   "",
		CVE:          "CVE-2018-10660",
		Severity:     models.SeverityCritical,
		CVSS:         9.8,
		Title:        "Axis shell command injection",
		Description:  "Shell command injection in multiple Axis camera products.",
	},
	{
		Manufacturer: "foscam",
		ModelMatch:   "",
		CVE:          "CVE-2018-6830",
		Severity:     models.SeverityHigh,
		CVSS:         7.5,
		Title:        "Foscam arbitrary file deletion",
		Description:  "Remote attackers can delete arbitrary files via the web management interface.",
	},
	{
		Manufacturer: "reolink",
		ModelMatch:   "",
		CVE:          "CVE-2020-25173",
		Severity:     models.SeverityHigh,
		CVSS:         8.8,
		Title:        "Reolink OS command injection",
		Description:  "An authenticated attacker can execute operating system commands via the device API.",
	},
}

// Lookup returns all entries matching a manufacturer and model.
func (t CVETable) Lookup(manufacturer, model string) []CVEEntry {
	manufacturer = lower(manufacturer)
	model = lower(model)

	var hits []CVEEntry
	for _, entry := range t {
		if entry.Manufacturer != manufacturer {
			continue
		}
		if entry.ModelMatch != "" && !contains(model, entry.ModelMatch) {
			continue
		}
		hits = append(hits, entry)
	}
	return hits
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func contains(s, sub string) bool { return strings.Contains(s, sub) }

// riskyServices maps ports to service names flagged by the open-ports check.
var riskyServices = map[int]string{
	21:    "FTP",
	23:    "Telnet",
	135:   "MSRPC",
	139:   "NetBIOS",
	445:   "SMB",
	1433:  "MSSQL",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	27017: "MongoDB",
}

// severityWeights drives the aggregate risk score.
var severityWeights = map[string]int{
	models.SeverityCritical: 10,
	models.SeverityHigh:     7,
	models.SeverityMedium:   4,
	models.SeverityLow:      2,
	models.SeverityInfo:     1,
}
