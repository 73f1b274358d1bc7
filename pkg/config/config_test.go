package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigJSONMissingFile(t *testing.T) {
	_, err := LoadConfigJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigJSONEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadConfigJSON("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadJSONRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.MaxPorts = 48

	path := filepath.Join(t.TempDir(), "switch.json")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfigJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.LogLevel)
	assert.Equal(t, 48, loaded.MaxPorts)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switch.yaml")
	content := "log_level: warn\nmax_vlans: 100\ndefault_vlan_id: 10\nfeatures:\n  stp: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfigYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 100, cfg.MaxVlans)
	assert.Equal(t, 10, cfg.DefaultVlanID)
	assert.False(t, cfg.FeatureEnabled("stp"))
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPacketSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DefaultVlanID = cfg.MaxVlans + 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DefaultMTU = cfg.MaxMTU + 1
	assert.Error(t, cfg.Validate())
}
