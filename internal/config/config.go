// Package config defines the judge's configuration surface and its
// defaults. Everything here is loaded once at startup; nothing reads
// environment state afterwards.
package config

import (
	"time"

	"github.com/google/shlex"

	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

const (
	defaultWorkRoot      = "/tmp/gavel"
	defaultCompileBudget = 10 * time.Second
)

// JudgeConfig holds submission work settings.
type JudgeConfig struct {
	WorkRoot      string        `json:"workRoot,optional"`
	CompileBudget time.Duration `json:"compileBudget,optional"`
	// SelfTest gates the sandboxed echo test during adapter probing.
	// Disabling it trusts toolchain presence alone.
	SelfTest bool `json:"selfTest,default=true"`
}

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	HelperPath     string `json:"helperPath,optional"`
	StdoutMaxBytes int64  `json:"stdoutMaxBytes,optional"`
}

// RuntimeConfig pins toolchain binaries and passes per-adapter compiler
// flags. Paths seeds the registry before autoconfiguration; a seeded name
// is never overwritten. Flags values are shell-quoted strings.
type RuntimeConfig struct {
	Paths map[string]string `json:"paths,optional"`
	Flags map[string]string `json:"flags,optional"`
}

// ArchConfig overrides one architecture profile.
type ArchConfig struct {
	QEMU          string   `json:"qemu,optional"`
	DynamicLinker string   `json:"dynamicLinker,optional"`
	CRTPre        []string `json:"crtPre,optional"`
	CRTPost       []string `json:"crtPost,optional"`
	CRTInLib32    bool     `json:"crtInLib32,optional"`
}

// Config is the root judge configuration.
type Config struct {
	Logger  logger.Config `json:"logger,optional"`
	Judge   JudgeConfig   `json:"judge,optional"`
	Sandbox SandboxConfig `json:"sandbox,optional"`
	Runtime RuntimeConfig `json:"runtime,optional"`
	X86     ArchConfig    `json:"x86,optional"`
	X64     ArchConfig    `json:"x64,optional"`
}

// ApplyDefaults fills the gaps a minimal config file leaves.
func ApplyDefaults(c *Config) {
	if c.Judge.WorkRoot == "" {
		c.Judge.WorkRoot = defaultWorkRoot
	}
	if c.Judge.CompileBudget <= 0 {
		c.Judge.CompileBudget = defaultCompileBudget
	}
}

// ExtraFlags splits the configured per-adapter flag strings into argv
// fragments.
func (r RuntimeConfig) ExtraFlags() (map[string][]string, error) {
	if len(r.Flags) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(r.Flags))
	for name, raw := range r.Flags {
		args, err := shlex.Split(raw)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "flags for %q are not valid shell words", name)
		}
		out[name] = args
	}
	return out, nil
}
