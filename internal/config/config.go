// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads sentryd's engine configuration tree from HCL,
// mirroring the teacher's internal/config/hcl.go use of
// github.com/hashicorp/hcl/v2 + hclsimple. Unlike the teacher's config
// (a large, diffable, round-trippable firewall policy document), this
// tree only governs the engine's own tunables: rule and classification
// files stay their own line-oriented textual formats per spec.md §6.
package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/sentryd/internal/errors"
	"grimm.is/sentryd/internal/siggroup"
)

// Config is the engine's configuration tree (spec.md's "pre-parsed
// configuration tree (ConfNode-equivalent)" hand-off).
type Config struct {
	// DefaultLogDir is the directory alert-fastlog's "filename" config key
	// is resolved against when a rule path is relative (original_source's
	// alert-fastlog.c default-log-dir convention).
	DefaultLogDir string `hcl:"default_log_dir,optional"`

	// FailureFatal makes a rule-parse error abort engine startup instead
	// of being logged and skipped (spec.md §7's error taxonomy: rule-parse
	// errors are per-rule and non-fatal unless this is set).
	FailureFatal bool `hcl:"failure_fatal,optional"`

	// LogRotateBytes rotates fast.log once it grows past this size,
	// gzipping the rotated copy; 0 disables rotation.
	LogRotateBytes int64 `hcl:"log_rotate_bytes,optional"`

	EngineProfile   *EngineProfileConfig `hcl:"engine_profile,block"`
	ThresholdsBlock *ThresholdsConfig    `hcl:"thresholds,block"`
}

// EngineProfileConfig mirrors siggroup.EngineProfile's four axis caps.
type EngineProfileConfig struct {
	MaxUniqSrcGroups int `hcl:"max_uniq_src_groups,optional"`
	MaxUniqDstGroups int `hcl:"max_uniq_dst_groups,optional"`
	MaxUniqSpGroups  int `hcl:"max_uniq_sp_groups,optional"`
	MaxUniqDpGroups  int `hcl:"max_uniq_dp_groups,optional"`
}

// ThresholdsConfig carries process-wide threshold defaults applied to a
// signature that sets `threshold:` or `detection_filter:` with no
// explicit `seconds` (a global reload knob, not per-rule state).
type ThresholdsConfig struct {
	DefaultSeconds int `hcl:"default_seconds,optional"`
}

// DefaultConfig returns sentryd's built-in defaults: fast.log under the
// current directory, non-fatal rule errors, and siggroup.DefaultProfile.
func DefaultConfig() *Config {
	return &Config{
		DefaultLogDir: ".",
		FailureFatal:  false,
		EngineProfile: &EngineProfileConfig{
			MaxUniqSrcGroups: siggroup.DefaultProfile.MaxUniqSrcGroups,
			MaxUniqDstGroups: siggroup.DefaultProfile.MaxUniqDstGroups,
			MaxUniqSpGroups:  siggroup.DefaultProfile.MaxUniqSpGroups,
			MaxUniqDpGroups:  siggroup.DefaultProfile.MaxUniqDpGroups,
		},
		ThresholdsBlock: &ThresholdsConfig{DefaultSeconds: 60},
	}
}

// Load reads and decodes an HCL config file at path, filling unset
// blocks from DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindEngineInit, "failed to read engine config")
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes HCL from data, naming it path for diagnostics.
func LoadBytes(path string, data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := hclsimple.Decode(path, data, nil, cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindEngineInit, "failed to decode engine config")
	}
	if cfg.EngineProfile == nil {
		cfg.EngineProfile = DefaultConfig().EngineProfile
	}
	if cfg.ThresholdsBlock == nil {
		cfg.ThresholdsBlock = DefaultConfig().ThresholdsBlock
	}
	if cfg.DefaultLogDir == "" {
		cfg.DefaultLogDir = "."
	}
	return cfg, nil
}

// Profile converts the decoded block into a siggroup.EngineProfile,
// falling back to siggroup.DefaultProfile's axis values for any zero
// field (an explicit 0 in HCL is indistinguishable from "unset" here,
// which matches the teacher's own optional-int HCL fields).
func (c *Config) Profile() siggroup.EngineProfile {
	p := siggroup.DefaultProfile
	if c.EngineProfile == nil {
		return p
	}
	if c.EngineProfile.MaxUniqSrcGroups != 0 {
		p.MaxUniqSrcGroups = c.EngineProfile.MaxUniqSrcGroups
	}
	if c.EngineProfile.MaxUniqDstGroups != 0 {
		p.MaxUniqDstGroups = c.EngineProfile.MaxUniqDstGroups
	}
	if c.EngineProfile.MaxUniqSpGroups != 0 {
		p.MaxUniqSpGroups = c.EngineProfile.MaxUniqSpGroups
	}
	if c.EngineProfile.MaxUniqDpGroups != 0 {
		p.MaxUniqDpGroups = c.EngineProfile.MaxUniqDpGroups
	}
	return p
}
