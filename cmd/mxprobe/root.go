package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/candidate"
	"github.com/optimode/mxprobe/internal/config"
	"github.com/optimode/mxprobe/metrics"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "mxprobe",
		Short: "Verify email addresses without sending mail",
		Long: `mxprobe resolves the mail exchangers of an address's domain and asks them,
over SMTP up to RCPT TO, whether the mailbox exists. No message is sent.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&flags.Verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(
		newVerifyCmd(flags),
		newFindCmd(flags),
		newCandidatesCmd(),
	)
	return rootCmd
}

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <address>...",
		Short: "Verify addresses and print one JSON verdict per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags, cmd, func(ctx context.Context, v *mxprobe.Verifier, cfg *config.Config) ([]mxprobe.Verdict, error) {
				return v.VerifyMany(ctx, args, cfg.ConcurrencyOptions())
			})
		},
	}
}

func newFindCmd(flags *globalFlags) *cobra.Command {
	var domain, last string
	cmd := &cobra.Command{
		Use:   "find --domain <domain> [--last <last name>] <first name or full name>",
		Short: "Guess and verify the address of a person at a domain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := joinArgs(args)
			return run(flags, cmd, func(ctx context.Context, v *mxprobe.Verifier, cfg *config.Config) ([]mxprobe.Verdict, error) {
				return v.FindForPerson(ctx, name, last, domain, cfg.ConcurrencyOptions())
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Domain to search")
	cmd.Flags().StringVar(&last, "last", "", "Last name")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func newCandidatesCmd() *cobra.Command {
	var domain, last string
	cmd := &cobra.Command{
		Use:   "candidates --domain <domain> [--last <last name>] <first name>",
		Short: "Print the candidate addresses for a person without verifying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			first := joinArgs(args)
			if last == "" {
				first, last = candidate.SplitFullName(first)
			}
			for _, addr := range candidate.Generate(first, last, domain) {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Domain of the candidates")
	cmd.Flags().StringVar(&last, "last", "", "Last name")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

type verifyFunc func(ctx context.Context, v *mxprobe.Verifier, cfg *config.Config) ([]mxprobe.Verdict, error)

// run builds the container, runs fn and prints its verdicts as JSON lines.
func run(flags *globalFlags, cmd *cobra.Command, fn verifyFunc) error {
	container, err := buildContainer(flags)
	if err != nil {
		return err
	}
	return container.Invoke(func(v *mxprobe.Verifier, cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry, m *metrics.Collector) error {
		defer func() { _ = logger.Sync() }()

		verdicts, err := fn(cmd.Context(), v, cfg)
		if err != nil {
			return err
		}
		if err := writeVerdicts(cmd.OutOrStdout(), verdicts); err != nil {
			return err
		}
		if m != nil {
			return writeMetrics(cmd.ErrOrStderr(), reg)
		}
		return nil
	})
}

func writeVerdicts(w io.Writer, verdicts []mxprobe.Verdict) error {
	enc := json.NewEncoder(w)
	for _, vd := range verdicts {
		if err := enc.Encode(vd); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
