package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"telemetry/internal/app"
	"telemetry/internal/clock"
	"telemetry/internal/config"
	"telemetry/internal/ingest"
	"telemetry/internal/mockgen"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

const mockChunkSize = 500

type configFlags struct {
	file string
	dir  string
}

func (f *configFlags) load() (config.Config, error) {
	source, err := config.FromCLI(f.file, f.dir)
	if err != nil {
		return config.Config{}, err
	}
	return config.LoadSnapshot(source)
}

// main runs telemetry CLI.
// Params: CLI args.
// Returns: exit code 1 on any command error.
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &configFlags{}
	root := &cobra.Command{
		Use:           "telemetry",
		Short:         "In-memory telemetry store with error-rate alerting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.file, "config-file", "", "path to one TOML config file")
	root.PersistentFlags().StringVar(&flags.dir, "config-dir", "", "path to directory with TOML config fragments")

	root.AddCommand(
		newServeCmd(flags),
		newValidateCmd(flags),
		newMockCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "telemetry %s (commit %s)\n", appVersion, appCommit)
			},
		},
	)
	return root
}

func newServeCmd(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, evaluation loop, and optional NATS ingest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := config.FromCLI(flags.file, flags.dir)
			if err != nil {
				return err
			}
			service, err := app.NewService(source, clock.RealClock{})
			if err != nil {
				return fmt.Errorf("service init failed: %w", err)
			}
			if err := service.Run(cmd.Context()); err != nil {
				return fmt.Errorf("service run failed: %w", err)
			}
			return nil
		},
	}
}

func newValidateCmd(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate configuration without starting the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "config ok: service=%s mode=%s listen=%s rules=%d\n",
				cfg.Service.Name, cfg.Service.Mode, cfg.HTTP.Listen, len(cfg.Rule))
			return nil
		},
	}
}

func newMockCmd(flags *configFlags) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Publish one hour of synthetic telemetry to the NATS ingest subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if config.NormalizeServiceMode(cfg.Service.Mode) != config.ServiceModeNATS {
				return errors.New("mock publishing requires service.mode = \"nats\"")
			}
			if subject == "" {
				subject = cfg.NATS.Ingest.Subject
			}
			nc, err := nats.Connect(strings.Join(cfg.NATS.URL, ","), nats.Name(cfg.Service.Name+"-mock"))
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer nc.Close()

			events := mockgen.New(nil).Generate(time.Now().UTC())
			for start := 0; start < len(events); start += mockChunkSize {
				end := min(start+mockChunkSize, len(events))
				payload, err := json.Marshal(events[start:end])
				if err != nil {
					return fmt.Errorf("encode mock batch: %w", err)
				}
				if err := ingest.PublishPayload(nc, subject, payload); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %d events to %s\n", len(events), subject)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "override ingest subject")
	return cmd
}
