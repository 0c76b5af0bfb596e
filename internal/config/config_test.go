package config

import (
	"os"
	"strings"
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestParseFile_KeyValueLines(t *testing.T) {
	kv, err := ParseFile(strings.NewReader(`
# a comment
network.listen_port = 14560
network.fc_ip=127.0.0.1

security.enable_crypto = true
`))
	require.NoError(t, err)
	require.Equal(t, "14560", kv["network.listen_port"])
	require.Equal(t, "127.0.0.1", kv["network.fc_ip"])
	require.Equal(t, "true", kv["security.enable_crypto"])
}

func TestParseFile_MissingEquals_ParseError(t *testing.T) {
	_, err := ParseFile(strings.NewReader("not-a-kv-line"))
	require.Error(t, err)
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestLoadFile_AppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/aegis.conf"
	require.NoError(t, writeFile(path, `
network.listen_port = 15000
network.trusted_gcs_ip = 10.0.0.5
detectors.flood.burst_threshold = 75
crypto.max_commands_per_session = 500
`))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 15000, cfg.ListenPort)
	require.Equal(t, "10.0.0.5", cfg.TrustedGCSIP)
	require.Equal(t, 75.0, cfg.FloodBurstThreshold)
	require.Equal(t, uint64(500), cfg.MaxCommandsPerSession)
	// Unset keys retain Defaults().
	require.Equal(t, 14550, cfg.FCPort)
}

func TestLoadFile_ShadowEnabledRequiresGeofenceKeys(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/aegis.conf"
	require.NoError(t, writeFile(path, `security.enable_shadow = true`))

	_, err := LoadFile(path)
	require.Error(t, err)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Key, "shadow.geofence")
}

func TestLoadFile_ShadowEnabledWithAllGeofenceKeysSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/aegis.conf"
	require.NoError(t, writeFile(path, `
security.enable_shadow = true
shadow.geofence.center_lat = 47.6
shadow.geofence.center_lon = -122.1
shadow.geofence.radius_m = 500
shadow.geofence.min_alt_m = 0
shadow.geofence.max_alt_m = 120
`))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.True(t, cfg.EnableShadow)
	require.Equal(t, 120.0, cfg.GeofenceMaxAltM)
}

func TestLoadFile_BadIntValue_ConfigError(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/aegis.conf"
	require.NoError(t, writeFile(path, `network.listen_port = not-a-number`))

	_, err := LoadFile(path)
	require.Error(t, err)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
