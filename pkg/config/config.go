package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full service configuration.
type Config struct {
	Server    ServerConfig
	Scan      ScanConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig configures the HTTP/WebSocket server.
type ServerConfig struct {
	Port       string
	Mode       string // gin mode: debug or release
	EnableCORS bool
}

// ScanConfig configures default scan behaviour.
type ScanConfig struct {
	Range          string        // Default range expression
	Timeout        time.Duration // Per-probe timeout
	Concurrency    int           // Probes in flight within a batch
	BatchSize      int           // Addresses per batch
	BatchPause     time.Duration // Pause between batches
	Ports          []int         // Port sweep set
	MaxHosts       int           // Safety cap for wide ranges
	DeepScan       bool          // Camera fingerprinting + assessment
	PingFallback   bool          // Treat open TCP port as reachable when ping fails
}

// SchedulerConfig configures background jobs.
type SchedulerConfig struct {
	RescanSpec string // cron spec for periodic rescans, empty disables
	SweepSpec  string // cron spec for security/maintenance sweeps
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level string
}

// DefaultPorts is the standard sweep set: management, web, video and
// file-sharing services commonly exposed on LAN devices.
var DefaultPorts = []int{
	21,    // FTP
	22,    // SSH
	23,    // Telnet
	80,    // HTTP
	135,   // MS RPC
	139,   // NetBIOS
	443,   // HTTPS
	445,   // SMB
	548,   // AFP
	554,   // RTSP
	631,   // IPP
	3389,  // RDP
	5900,  // VNC
	8000,  // HTTP Alt
	8080,  // HTTP Alt
	8443,  // HTTPS Alt
	9100,  // JetDirect
	37777, // Dahua DVR
}

// Default returns a configuration with built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:       "8080",
			Mode:       "release",
			EnableCORS: true,
		},
		Scan: ScanConfig{
			Range:        "192.168.1.0/24",
			Timeout:      2 * time.Second,
			Concurrency:  16,
			BatchSize:    16,
			BatchPause:   150 * time.Millisecond,
			Ports:        append([]int(nil), DefaultPorts...),
			MaxHosts:     1024,
			DeepScan:     true,
			PingFallback: true,
		},
		Scheduler: SchedulerConfig{
			RescanSpec: "",
			SweepSpec:  "@every 1m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from configs/config.yaml (or cwd) with
// NETSENTRY_-prefixed environment overrides. A missing file is not an error;
// defaults apply.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NETSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	cfg.Server.Port = v.GetString("server.port")
	cfg.Server.Mode = v.GetString("server.mode")
	cfg.Server.EnableCORS = v.GetBool("server.cors")
	cfg.Scan.Range = v.GetString("scan.range")
	cfg.Scan.Timeout = v.GetDuration("scan.timeout")
	cfg.Scan.Concurrency = v.GetInt("scan.concurrency")
	cfg.Scan.BatchSize = v.GetInt("scan.batch_size")
	cfg.Scan.BatchPause = v.GetDuration("scan.batch_pause")
	if ports := v.GetIntSlice("scan.ports"); len(ports) > 0 {
		cfg.Scan.Ports = ports
	}
	cfg.Scan.MaxHosts = v.GetInt("scan.max_hosts")
	cfg.Scan.DeepScan = v.GetBool("scan.deep")
	cfg.Scan.PingFallback = v.GetBool("scan.ping_fallback")
	cfg.Scheduler.RescanSpec = v.GetString("scheduler.rescan")
	cfg.Scheduler.SweepSpec = v.GetString("scheduler.sweep")
	cfg.Logging.Level = v.GetString("logging.level")

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.cors", cfg.Server.EnableCORS)
	v.SetDefault("scan.range", cfg.Scan.Range)
	v.SetDefault("scan.timeout", cfg.Scan.Timeout)
	v.SetDefault("scan.concurrency", cfg.Scan.Concurrency)
	v.SetDefault("scan.batch_size", cfg.Scan.BatchSize)
	v.SetDefault("scan.batch_pause", cfg.Scan.BatchPause)
	v.SetDefault("scan.max_hosts", cfg.Scan.MaxHosts)
	v.SetDefault("scan.deep", cfg.Scan.DeepScan)
	v.SetDefault("scan.ping_fallback", cfg.Scan.PingFallback)
	v.SetDefault("scheduler.rescan", cfg.Scheduler.RescanSpec)
	v.SetDefault("scheduler.sweep", cfg.Scheduler.SweepSpec)
	v.SetDefault("logging.level", cfg.Logging.Level)
}
