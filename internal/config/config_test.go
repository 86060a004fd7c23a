// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, ".", cfg.DefaultLogDir)
	require.False(t, cfg.FailureFatal)
	require.Zero(t, cfg.LogRotateBytes)
	require.Equal(t, 16, cfg.EngineProfile.MaxUniqDstGroups)
}

func TestLoadBytesOverridesDefaults(t *testing.T) {
	src := `
default_log_dir   = "/var/log/sentryd"
failure_fatal      = true
log_rotate_bytes   = 104857600

engine_profile {
  max_uniq_dst_groups = 64
}

thresholds {
  default_seconds = 30
}
`
	cfg, err := LoadBytes("test.hcl", []byte(src))
	require.NoError(t, err)
	require.Equal(t, "/var/log/sentryd", cfg.DefaultLogDir)
	require.True(t, cfg.FailureFatal)
	require.Equal(t, int64(104857600), cfg.LogRotateBytes)
	require.Equal(t, 64, cfg.EngineProfile.MaxUniqDstGroups)
	// Decoding a present block allocates a fresh struct, so an axis absent
	// from the block itself (not the whole config) reads as the Go zero
	// value here; Profile() is what supplies the siggroup default for it.
	require.Equal(t, 0, cfg.EngineProfile.MaxUniqSrcGroups)
	require.Equal(t, 2, cfg.Profile().MaxUniqSrcGroups)
	require.Equal(t, 30, cfg.ThresholdsBlock.DefaultSeconds)
}

func TestLoadBytesEmptyFillsDefaults(t *testing.T) {
	cfg, err := LoadBytes("test.hcl", []byte(""))
	require.NoError(t, err)
	require.NotNil(t, cfg.EngineProfile)
	require.NotNil(t, cfg.ThresholdsBlock)
	require.Equal(t, ".", cfg.DefaultLogDir)
}

func TestLoadBytesRejectsMalformedHCL(t *testing.T) {
	_, err := LoadBytes("test.hcl", []byte("default_log_dir = "))
	require.Error(t, err)
}

func TestProfileFallsBackToDefaultsForUnsetAxes(t *testing.T) {
	cfg := &Config{EngineProfile: &EngineProfileConfig{MaxUniqDstGroups: 64}}
	p := cfg.Profile()
	require.Equal(t, 64, p.MaxUniqDstGroups)
	require.Equal(t, 2, p.MaxUniqSrcGroups)
	require.Equal(t, 2, p.MaxUniqSpGroups)
	require.Equal(t, 2, p.MaxUniqDpGroups)
}

func TestProfileNilEngineProfileReturnsDefault(t *testing.T) {
	cfg := &Config{}
	p := cfg.Profile()
	require.Equal(t, 16, p.MaxUniqDstGroups)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/sentryd.hcl")
	require.Error(t, err)
}
