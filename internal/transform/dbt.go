// Package transform runs the downstream warehouse transforms. The pipeline
// treats the whole step as opaque: it either succeeds or fails, and its
// failure never rolls back ingested rows.
package transform

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/configs"
)

// Runner executes the transform step once.
type Runner interface {
	Run(ctx context.Context) error
}

// DBT runs `dbt run` followed by `dbt test` against the configured project.
type DBT struct {
	cfg    configs.TransformConfig
	logger *logrus.Logger
}

// NewDBT creates a dbt runner.
func NewDBT(cfg configs.TransformConfig, logger *logrus.Logger) *DBT {
	return &DBT{cfg: cfg, logger: logger}
}

// Run executes models then tests. A skipped (unconfigured) step is success:
// ingestion-only deployments are valid.
func (d *DBT) Run(ctx context.Context) error {
	if d.cfg.ProjectDir == "" {
		d.logger.Info("Transform step not configured, skipping")
		return nil
	}

	for _, subcommand := range []string{"run", "test"} {
		if err := d.exec(ctx, subcommand); err != nil {
			return fmt.Errorf("dbt %s: %w", subcommand, err)
		}
	}
	return nil
}

func (d *DBT) exec(ctx context.Context, subcommand string) error {
	args := []string{subcommand, "--project-dir", d.cfg.ProjectDir}
	if d.cfg.Target != "" {
		args = append(args, "--target", d.cfg.Target)
	}

	cmd := exec.CommandContext(ctx, "dbt", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if d.cfg.ProfilesDir != "" {
		cmd.Env = append(cmd.Env, "DBT_PROFILES_DIR="+d.cfg.ProfilesDir)
	}

	d.logger.WithField("subcommand", subcommand).Info("Running dbt")
	return cmd.Run()
}
