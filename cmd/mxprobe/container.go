package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/internal/config"
	"github.com/optimode/mxprobe/internal/logging"
	"github.com/optimode/mxprobe/metrics"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool
}

// buildContainer wires configuration, logging, metrics and the verifier.
func buildContainer(flags *globalFlags) (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		func() *globalFlags { return flags },
		newConfig,
		newLogger,
		prometheus.NewRegistry,
		newMetrics,
		newVerifier,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, fmt.Errorf("failed to register provider: %w", err)
		}
	}
	return container, nil
}

func newConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.New(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if flags.Verbose {
		cfg.Set("logging.level", "debug")
	}
	if flags.JSONLog {
		cfg.Set("logging.format", "json")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.InitLogger(cfg.GetString("logging.level"), cfg.GetString("logging.format"))
}

// newMetrics returns nil when metrics are disabled; a nil collector records nothing.
func newMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Collector {
	if !cfg.GetBool("metrics.enabled") {
		return nil
	}
	return metrics.New(reg)
}

func newVerifier(cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (*mxprobe.Verifier, error) {
	smtp, err := cfg.SMTPOptions()
	if err != nil {
		return nil, err
	}
	dns, err := cfg.DNSOptions()
	if err != nil {
		return nil, err
	}
	br, breakerOn, err := cfg.BreakerOptions()
	if err != nil {
		return nil, err
	}

	v := mxprobe.New().
		WithLogger(logger).
		WithMetrics(m).
		WithDNS(dns).
		WithSMTP(smtp)
	if cfg.GetBool("verify.domain_checks") {
		v.WithDomainChecks()
	}
	if breakerOn {
		v.WithBreaker(br)
	}
	return v, nil
}
