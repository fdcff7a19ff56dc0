//go:build !linux

package sandbox

import (
	"context"

	appErr "gavel/pkg/errors"
)

// Config holds reference engine settings.
type Config struct {
	HelperPath     string `json:",default=gavel-init"`
	StdoutMaxBytes int64  `json:",optional"`
}

type stubEngine struct{}

// NewEngine returns a stub on platforms without the reference engine.
func NewEngine(cfg Config) (Engine, error) {
	return stubEngine{}, nil
}

func (stubEngine) Run(ctx context.Context, req Request) (Result, error) {
	return Result{}, appErr.New(appErr.SandboxError).WithMessage("sandbox engine requires linux")
}
