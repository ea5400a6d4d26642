package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/SecureView-Labs/netsentry/pkg/api"
	"github.com/SecureView-Labs/netsentry/pkg/assess"
	"github.com/SecureView-Labs/netsentry/pkg/camera"
	"github.com/SecureView-Labs/netsentry/pkg/config"
	"github.com/SecureView-Labs/netsentry/pkg/models"
	"github.com/SecureView-Labs/netsentry/pkg/probe"
	"github.com/SecureView-Labs/netsentry/pkg/registry"
	"github.com/SecureView-Labs/netsentry/pkg/scan"
	"github.com/SecureView-Labs/netsentry/pkg/scheduler"
	"github.com/SecureView-Labs/netsentry/pkg/security"
)

func main() {
	app := &cli.App{
		Name:  "netsentry",
		Usage: "LAN device discovery and camera security assessment",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			scanCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context, cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.Bool("verbose") {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan an address range once and print a summary",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "range", Aliases: []string{"r"}, Usage: "CIDR, dash range or single IP"},
			&cli.DurationFlag{Name: "timeout", Usage: "per-probe timeout"},
			&cli.IntFlag{Name: "concurrency", Usage: "probes in flight per batch"},
			&cli.BoolFlag{Name: "full", Usage: "run the security assessment battery per device"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write results to a JSON file"},
		},
		Action: runScan,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP/WebSocket API server with background jobs",
		Action: runServe,
	}
}

func runScan(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(c, cfg)

	rangeExpr := c.String("range")
	if rangeExpr == "" {
		rangeExpr = cfg.Scan.Range
	}

	printBanner()

	prober := probe.NewProber(nil, logger)
	prober.PingFallback = cfg.Scan.PingFallback
	fingerprinter := camera.NewFingerprinter(nil, nil, logger)
	orch := scan.NewOrchestrator(prober, fingerprinter, cfg.Scan, logger)

	opts := models.ScanOptions{
		Timeout:     c.Duration("timeout"),
		Concurrency: c.Int("concurrency"),
		DeepScan:    true,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		orch.Abort()
	}()

	color.Cyan("Scanning %s ...\n", rangeExpr)
	start := time.Now()
	devices, err := orch.Start(ctx, rangeExpr, opts)
	if err != nil {
		return err
	}

	var assessments []*models.SecurityAssessment
	if c.Bool("full") {
		color.Cyan("Running security assessments on %d device(s) ...", len(devices))
		assessor := assess.NewAssessor(nil, nil, logger)
		for _, d := range devices {
			assessments = append(assessments, assessor.Assess(ctx, d))
		}
	}

	printSummary(devices, assessments, time.Since(start))

	if path := c.String("output"); path != "" {
		if err := writeResults(path, devices, assessments); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		logger.Infof("results written to %s", path)
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(c, cfg)

	printBanner()

	prober := probe.NewProber(nil, logger)
	prober.PingFallback = cfg.Scan.PingFallback
	fingerprinter := camera.NewFingerprinter(nil, nil, logger)
	orch := scan.NewOrchestrator(prober, fingerprinter, cfg.Scan, logger)
	reg := registry.New(logger)
	monitor := security.NewMonitor(logger)

	server := api.NewServer(orch, reg, monitor, cfg, logger)
	jobs := scheduler.New(orch, reg, monitor, cfg, logger)
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer jobs.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Green("API listening on http://localhost:%s", cfg.Server.Port)
	color.Green("Press Ctrl+C to exit")
	return server.Run(ctx)
}

func printBanner() {
	banner := `
╔══════════════════════════════════════════════════╗
║                                                  ║
║                    NetSentry                     ║
║                                                  ║
║          Discover - Classify - Assess            ║
║                                                  ║
╚══════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}

func printSummary(devices []*models.Device, assessments []*models.SecurityAssessment, elapsed time.Duration) {
	fmt.Println("\n=== Scan Summary ===")
	fmt.Printf("Devices discovered: %d (in %s)\n", len(devices), elapsed.Round(time.Millisecond))

	byType := map[string]int{}
	cameras := 0
	for _, d := range devices {
		byType[d.DeviceType]++
		if d.IsCamera() {
			cameras++
		}
	}
	for deviceType, n := range byType {
		fmt.Printf("  %-20s %d\n", deviceType, n)
	}
	if cameras > 0 {
		color.Yellow("Cameras identified: %d", cameras)
	}

	for _, d := range devices {
		line := fmt.Sprintf("  - %-15s %-20s risk=%s ports=%v", d.IP, d.DeviceType, d.RiskLevel, d.OpenPorts)
		switch d.RiskLevel {
		case models.RiskHigh, models.RiskCritical:
			color.Red(line)
		case models.RiskMedium:
			color.Yellow(line)
		default:
			fmt.Println(line)
		}
	}

	if len(assessments) > 0 {
		fmt.Println("\n=== Security Assessments ===")
		for _, a := range assessments {
			line := fmt.Sprintf("  - %-15s score=%-3d risk=%-8s findings=%d",
				a.DeviceID, a.RiskScore, a.OverallRisk, len(a.Vulnerabilities))
			switch a.OverallRisk {
			case models.RiskCritical, models.RiskHigh:
				color.Red(line)
			case models.RiskMedium:
				color.Yellow(line)
			default:
				fmt.Println(line)
			}
			for _, v := range a.Vulnerabilities {
				fmt.Printf("      [%s] %s\n", v.Severity, v.Title)
			}
		}
	}
}

func writeResults(path string, devices []*models.Device, assessments []*models.SecurityAssessment) error {
	out := struct {
		GeneratedAt time.Time                    `json:"generatedAt"`
		Devices     []*models.Device             `json:"devices"`
		Assessments []*models.SecurityAssessment `json:"assessments,omitempty"`
	}{
		GeneratedAt: time.Now(),
		Devices:     devices,
		Assessments: assessments,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
