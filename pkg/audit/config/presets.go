package config

import (
	"fmt"

	"github.com/spounge-ai/audittrail/pkg/audit/chain"
	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// Preset names a compliance framework whose logging requirements are
// approximated by a bundle of configuration overrides. Presets only set
// chaining, algorithm, retention, signing and auto-delete; sinks and service
// identity always come from the caller.
type Preset string

const (
	SOC2    Preset = "SOC2"
	HIPAA   Preset = "HIPAA"
	PCIDSS  Preset = "PCI_DSS"
	GDPR    Preset = "GDPR"
	FedRAMP Preset = "FEDRAMP"
)

// presetOverrides are plain override tables merged over the defaults.
type presetOverrides struct {
	algorithm     chain.Algorithm
	retentionDays int
	signLogs      bool
	autoDelete    bool
}

var presets = map[Preset]presetOverrides{
	SOC2:    {algorithm: chain.SHA256, retentionDays: 365},
	HIPAA:   {algorithm: chain.SHA512, retentionDays: 2190, signLogs: true},
	PCIDSS:  {algorithm: chain.SHA256, retentionDays: 365},
	GDPR:    {algorithm: chain.SHA256, retentionDays: 90, autoDelete: true},
	FedRAMP: {algorithm: chain.SHA512, retentionDays: 1095, signLogs: true},
}

// ForPreset returns the default configuration with the named preset's
// overrides applied, then any options on top. Every preset enables hash
// chaining.
func ForPreset(p Preset, opts ...Option) (Config, error) {
	ov, ok := presets[p]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", domain.ErrUnknownPreset, p)
	}
	c := Default()
	c.HashChaining = true
	c.HashAlgorithm = ov.algorithm
	c.RetentionDays = ov.retentionDays
	c.SignLogs = ov.signLogs
	c.AutoDelete = ov.autoDelete
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}

// Presets lists the known preset names.
func Presets() []Preset {
	return []Preset{SOC2, HIPAA, PCIDSS, GDPR, FedRAMP}
}
