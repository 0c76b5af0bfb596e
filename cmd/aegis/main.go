// Command aegis is the AEGIS gateway's entrypoint (spec §6): subcommands
// dispatch on os.Args[1] the way the teacher's single-binary CLI would if
// it had more than one mode, using plain flag.NewFlagSet per subcommand —
// no CLI framework appears anywhere in the example corpus, so none is
// introduced here. Graceful shutdown on SIGINT/SIGTERM is grounded on the
// teacher's cmd/wmap/main.go (signal.NotifyContext + slog.NewJSONHandler).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aegis-gateway/aegis/internal/adapters/reporting"
	"github.com/aegis-gateway/aegis/internal/app"
	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/services/audit"
	aegiscrypto "github.com/aegis-gateway/aegis/internal/core/services/crypto"
)

// Exit codes per spec §6.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitBindError     = 2
	exitCryptoFailure = 3
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitConfigError)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = runGateway(dryrun(false))
	case "dryrun":
		code = runGateway(dryrun(true))
	case "keys":
		code = runKeys(os.Args[2:])
	case "audit":
		code = runAudit(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = exitOK
	default:
		fmt.Fprintf(os.Stderr, "aegis: unknown subcommand %q\n", os.Args[1])
		usage()
		code = exitConfigError
	}
	os.Exit(code)
}

type dryrun bool

func usage() {
	fmt.Fprintln(os.Stderr, `usage: aegis <subcommand> [flags]

subcommands:
  run                          run the gateway, forwarding decisions to the flight controller
  dryrun                       run the full pipeline and audit trail without egress
  keys rotate                  rotate the active session key
  keys revoke                  revoke the active session key (emergency failsafe)
  audit summary                print a session's summary
    --session ID               session id (required)
    --format human|json|pdf    output format (default human)`)
}

// runGateway loads config, shifts os.Args past the subcommand so the
// flag-based config.Load() sees only its own flags, and runs the
// gateway to completion or cancellation.
func runGateway(dry dryrun) int {
	os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		return exitConfigError
	}

	if dry {
		cfg.FCIP = ""
		slog.Info("starting in dryrun mode: egress disabled, full pipeline and audit trail active")
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("application init failed", "error", err)
		return exitCryptoFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		slog.Error("gateway run failed", "error", err)
		return exitBindError
	}
	return exitOK
}

func runKeys(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "aegis keys: expected rotate or revoke")
		return exitConfigError
	}
	action := args[0]
	fs := flag.NewFlagSet("keys "+action, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to aegis key=value config file")
	reason := fs.String("reason", "operator-initiated", "reason recorded for this key action")
	if err := fs.Parse(args[1:]); err != nil {
		return exitConfigError
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		return exitConfigError
	}

	km, err := aegiscrypto.NewKeyManager(aegiscrypto.KeyManagerConfig{
		RootKeyPath:     cfg.RootKeyPath,
		SessionKeyPath:  cfg.SessionKeyPath,
		MetadataPath:    cfg.MetadataPath,
		SessionLifetime: time.Duration(cfg.SessionLifetimeSec) * time.Second,
		MaxCommandsPer:  cfg.MaxCommandsPerSession,
		GracePeriod:     time.Duration(cfg.GracePeriodSec) * time.Second,
		Strict:          cfg.Strict,
	})
	if err != nil {
		slog.Error("key manager init failed", "error", err)
		return exitCryptoFailure
	}
	defer km.Close()

	ctx := context.Background()
	switch action {
	case "rotate":
		if err := km.Rotate(ctx, *reason); err != nil {
			slog.Error("key rotation failed", "error", err)
			return exitCryptoFailure
		}
		slog.Info("session key rotated", "generation", km.Context().Meta.Generation, "session", km.Context().Meta.SessionID)
	case "revoke":
		if err := km.Revoke(ctx); err != nil {
			slog.Error("key revocation failed", "error", err)
			return exitCryptoFailure
		}
		slog.Info("session key revoked: gateway will enter emergency failsafe mode on next restart", "session", km.Context().Meta.SessionID)
	default:
		fmt.Fprintf(os.Stderr, "aegis keys: unknown action %q (expected rotate or revoke)\n", action)
		return exitConfigError
	}
	return exitOK
}

func runAudit(args []string) int {
	if len(args) < 1 || args[0] != "summary" {
		fmt.Fprintln(os.Stderr, "aegis audit: expected summary")
		return exitConfigError
	}
	fs := flag.NewFlagSet("audit summary", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to aegis key=value config file")
	sessionID := fs.String("session", "", "session id to summarize (required)")
	format := fs.String("format", "human", "output format: human|json|pdf")
	if err := fs.Parse(args[1:]); err != nil {
		return exitConfigError
	}
	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "aegis audit summary: --session is required")
		return exitConfigError
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		return exitConfigError
	}

	summary, err := audit.LoadSummary(cfg.LogDir, *sessionID)
	if err != nil {
		slog.Error("summary load failed", "error", err)
		return exitConfigError
	}

	switch *format {
	case "human":
		printHumanSummary(summary)
	case "json":
		return printJSONSummary(summary)
	case "pdf":
		return writePDFSummary(summary, *sessionID)
	default:
		fmt.Fprintf(os.Stderr, "aegis audit summary: unknown format %q\n", *format)
		return exitConfigError
	}
	return exitOK
}

func printHumanSummary(s domain.SessionSummary) {
	fmt.Printf("session:              %s\n", s.SessionID)
	fmt.Printf("window:               %s to %s\n", s.StartedAt.Format(time.RFC3339), s.EndedAt.Format(time.RFC3339))
	fmt.Printf("total datagrams:      %d\n", s.TotalDatagrams)
	fmt.Printf("accepted:             %d\n", s.Accepted)
	fmt.Printf("constrained:          %d\n", s.Constrained)
	fmt.Printf("held:                 %d\n", s.Held)
	fmt.Printf("rtl triggered:        %d\n", s.RTLTriggered)
	fmt.Printf("security events:      %d\n", s.SecurityEvents)
	fmt.Printf("flood detections:     %d\n", s.FloodDetections)
	fmt.Printf("replay detections:    %d\n", s.ReplayDetections)
	fmt.Printf("injection detections: %d\n", s.InjectionDetections)
	fmt.Printf("intent mismatches:    %d\n", s.IntentMismatches)
}

func printJSONSummary(s domain.SessionSummary) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		slog.Error("summary encode failed", "error", err)
		return exitConfigError
	}
	return exitOK
}

func writePDFSummary(s domain.SessionSummary, sessionID string) int {
	exporter := reporting.NewPDFExporter()
	data, err := exporter.ExportSessionReport(s, nil)
	if err != nil {
		slog.Error("pdf export failed", "error", err)
		return exitConfigError
	}
	path := sessionID + "_summary.pdf"
	if err := os.WriteFile(path, data, 0o600); err != nil {
		slog.Error("pdf write failed", "error", err)
		return exitConfigError
	}
	fmt.Println("wrote", path)
	return exitOK
}
