// Package config loads the AEGIS gateway's configuration: a line-oriented
// key=value file (spec §6) as the primary source of network/security/
// detector/crypto/logging parameters, merged with the teacher's
// env-var-then-flag precedence for process-level bootstrap flags.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aegis-gateway/aegis/internal/core/domain"
)

// Config holds the full set of gateway parameters named in spec §6.
type Config struct {
	ListenHost string
	ListenPort int
	FCIP       string
	FCPort     int
	TrustedGCSIP string

	EnableCrypto bool
	EnableML     bool
	EnableShadow bool
	Strict       bool

	FloodNormalThreshold float64
	FloodAttackThreshold float64
	FloodBurstThreshold  float64

	ReplayNonceWindow          int
	ReplayTimestampToleranceSec float64

	SessionLifetimeSec    int
	MaxCommandsPerSession uint64
	GracePeriodSec        int

	RootKeyPath    string
	SessionKeyPath string
	MetadataPath   string
	LogDir         string

	GeofenceCenterLat float64
	GeofenceCenterLon float64
	GeofenceRadiusM   float64
	GeofenceMinAltM   float64
	GeofenceMaxAltM   float64

	EnableCapture bool
	CapturePath   string

	EnableStorage bool
	SQLitePath    string

	HTTPAddr string

	// Process-level bootstrap flags, not gateway parameters.
	LogLevel string
}

// Defaults mirrors spec §6's documented defaults.
func Defaults() Config {
	return Config{
		ListenHost: "0.0.0.0",
		ListenPort: 14560,
		FCPort:     14550,

		FloodNormalThreshold: 5,
		FloodAttackThreshold: 20,
		FloodBurstThreshold:  50,

		ReplayNonceWindow:           10000,
		ReplayTimestampToleranceSec: 30.0,

		SessionLifetimeSec:    1800,
		MaxCommandsPerSession: 1000,
		GracePeriodSec:        300,

		RootKeyPath:    "crypto/root_key.pem",
		SessionKeyPath: "crypto/session_key.bin",
		MetadataPath:   "crypto/key_metadata.json",
		LogDir:         "logs",
		SQLitePath:     "logs/audit_index.db",

		// Deliberately no geofence defaults: spec §9 requires these be
		// required config whenever security.enable_shadow=true, with no
		// implicit fallback values (the original hard-codes a dict; this
		// is the fix).

		HTTPAddr: ":8090",
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, an optional key=value file (path
// from -config flag or AEGIS_CONFIG env var), and command-line flag
// overrides, in that precedence order (spec §6).
func Load() (*Config, error) {
	cfg := Defaults()

	configPath := os.Getenv("AEGIS_CONFIG")
	flagConfigPath := flag.String("config", configPath, "Path to AEGIS key=value config file")
	logLevel := flag.String("log-level", cfg.LogLevel, "Process log level (debug|info|warn|error)")
	listenPort := flag.Int("listen-port", 0, "Override network.listen_port")
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "Operator HTTP surface bind address")
	strict := flag.Bool("strict", false, "Run in strict mode (spec §3/§9)")
	flag.Parse()

	if *flagConfigPath != "" {
		if err := cfg.mergeFile(*flagConfigPath); err != nil {
			return nil, err
		}
	}

	cfg.LogLevel = *logLevel
	cfg.HTTPAddr = *httpAddr
	if *listenPort != 0 {
		cfg.ListenPort = *listenPort
	}
	if *strict {
		cfg.Strict = true
	}

	if cfg.Strict && cfg.TrustedGCSIP == "" {
		return nil, &domain.ConfigError{Key: "network.trusted_gcs_ip", Reason: "required in strict mode"}
	}

	return &cfg, nil
}

// LoadFile builds a Config from defaults merged with a key=value file,
// bypassing the flag/env-driven Load() — used by CLI subcommands that
// parse their own flag.FlagSet instead of the global flag.CommandLine
// (spec §6's "keys rotate"/"keys revoke"/"audit summary" subcommands).
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &domain.ConfigError{Key: path, Reason: fmt.Sprintf("open config file: %v", err)}
	}
	defer f.Close()

	kv, err := ParseFile(f)
	if err != nil {
		return err
	}
	return c.apply(kv)
}

// ParseFile reads a line-oriented key=value config (spec §6), skipping
// blank lines and '#' comments, the way a bufio.Scanner-based reader
// normally would — no third-party config-file library appears anywhere
// in the example corpus.
func ParseFile(r io.Reader) (map[string]string, error) {
	kv := make(map[string]string)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		idx := strings.Index(text, "=")
		if idx < 0 {
			return nil, &domain.ParseError{Reason: fmt.Sprintf("line %d: missing '='", line)}
		}
		key := strings.TrimSpace(text[:idx])
		val := strings.TrimSpace(text[idx+1:])
		kv[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ParseError{Reason: err.Error()}
	}
	return kv, nil
}

func (c *Config) apply(kv map[string]string) error {
	get := func(key string) (string, bool) { v, ok := kv[key]; return v, ok }

	if v, ok := get("network.listen_host"); ok {
		c.ListenHost = v
	}
	if v, ok := get("network.listen_port"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Key: "network.listen_port", Reason: err.Error()}
		}
		c.ListenPort = n
	}
	if v, ok := get("network.fc_ip"); ok {
		c.FCIP = v
	}
	if v, ok := get("network.fc_port"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Key: "network.fc_port", Reason: err.Error()}
		}
		c.FCPort = n
	}
	if v, ok := get("network.trusted_gcs_ip"); ok {
		c.TrustedGCSIP = v
	}

	if v, ok := get("security.enable_crypto"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Key: "security.enable_crypto", Reason: err.Error()}
		}
		c.EnableCrypto = b
	}
	if v, ok := get("security.enable_ml"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Key: "security.enable_ml", Reason: err.Error()}
		}
		c.EnableML = b
	}
	if v, ok := get("security.enable_shadow"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Key: "security.enable_shadow", Reason: err.Error()}
		}
		c.EnableShadow = b
	}

	if err := setFloat(kv, "detectors.flood.normal_threshold", &c.FloodNormalThreshold); err != nil {
		return err
	}
	if err := setFloat(kv, "detectors.flood.attack_threshold", &c.FloodAttackThreshold); err != nil {
		return err
	}
	if err := setFloat(kv, "detectors.flood.burst_threshold", &c.FloodBurstThreshold); err != nil {
		return err
	}

	if v, ok := get("detectors.replay.nonce_window"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Key: "detectors.replay.nonce_window", Reason: err.Error()}
		}
		c.ReplayNonceWindow = n
	}
	if err := setFloat(kv, "detectors.replay.timestamp_tolerance_sec", &c.ReplayTimestampToleranceSec); err != nil {
		return err
	}

	if v, ok := get("crypto.session_lifetime_sec"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Key: "crypto.session_lifetime_sec", Reason: err.Error()}
		}
		c.SessionLifetimeSec = n
	}
	if v, ok := get("crypto.max_commands_per_session"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &domain.ConfigError{Key: "crypto.max_commands_per_session", Reason: err.Error()}
		}
		c.MaxCommandsPerSession = n
	}
	if v, ok := get("crypto.grace_period_sec"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Key: "crypto.grace_period_sec", Reason: err.Error()}
		}
		c.GracePeriodSec = n
	}
	if v, ok := get("crypto.root_key_path"); ok {
		c.RootKeyPath = v
	}
	if v, ok := get("crypto.session_key_path"); ok {
		c.SessionKeyPath = v
	}
	if v, ok := get("crypto.metadata_path"); ok {
		c.MetadataPath = v
	}

	if v, ok := get("logging.log_dir"); ok {
		c.LogDir = v
	}

	if err := setFloat(kv, "shadow.geofence.center_lat", &c.GeofenceCenterLat); err != nil {
		return err
	}
	if err := setFloat(kv, "shadow.geofence.center_lon", &c.GeofenceCenterLon); err != nil {
		return err
	}
	if err := setFloat(kv, "shadow.geofence.radius_m", &c.GeofenceRadiusM); err != nil {
		return err
	}
	if err := setFloat(kv, "shadow.geofence.min_alt_m", &c.GeofenceMinAltM); err != nil {
		return err
	}
	if err := setFloat(kv, "shadow.geofence.max_alt_m", &c.GeofenceMaxAltM); err != nil {
		return err
	}

	if v, ok := get("capture.enable"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Key: "capture.enable", Reason: err.Error()}
		}
		c.EnableCapture = b
	}
	if v, ok := get("capture.path"); ok {
		c.CapturePath = v
	}

	if v, ok := get("storage.enable"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Key: "storage.enable", Reason: err.Error()}
		}
		c.EnableStorage = b
	}
	if v, ok := get("storage.sqlite_path"); ok {
		c.SQLitePath = v
	}

	if c.EnableShadow {
		required := []string{
			"shadow.geofence.center_lat", "shadow.geofence.center_lon",
			"shadow.geofence.radius_m", "shadow.geofence.min_alt_m", "shadow.geofence.max_alt_m",
		}
		for _, key := range required {
			if _, ok := kv[key]; !ok {
				return &domain.ConfigError{Key: key, Reason: "required when security.enable_shadow=true (spec §9: no implicit geofence defaults)"}
			}
		}
	}

	return nil
}

func setFloat(kv map[string]string, key string, dst *float64) error {
	v, ok := kv[key]
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return &domain.ConfigError{Key: key, Reason: err.Error()}
	}
	*dst = f
	return nil
}
