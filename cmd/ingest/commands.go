package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/permits/ingest"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/scheduler"
	"permit_ingest_backend/platform/config"

	"github.com/spf13/cobra"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	var (
		source string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch one source (or all) and upsert its permits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if timeout := e.cfg.GetIngestRunTimeout(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var summaries []domain.BatchSummary
			if source == ingest.AllSources {
				summaries = e.runner.RunAll(ctx, dryRun)
			} else {
				if !domain.IsKnownSource(source) {
					return fmt.Errorf("unknown source %q", source)
				}
				summary, err := e.runner.Run(ctx, domain.Source(source), dryRun)
				if err != nil {
					return err
				}
				summaries = []domain.BatchSummary{summary}
			}
			return report(cmd.OutOrStdout(), summaries)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source to run, or \"all\"")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Roll back every write and only report")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List known sources and whether they are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, source := range domain.KnownSources {
				def, _ := sources.Lookup(source)
				settings, ok := cfg.GetSourceSettings(string(source))
				status := "not configured"
				if ok {
					status = settings.URL
				}
				fmt.Fprintf(out, "%-12s %-5s %-16s %s\n", source, def.Format, def.Jurisdiction, status)
			}
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	var (
		source string
		key    string
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-ingest an archived raw batch without fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (key == "") == (file == "") {
				return fmt.Errorf("exactly one of --key or --file is required")
			}
			if !domain.IsKnownSource(source) {
				return fmt.Errorf("unknown source %q", source)
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			body, err := readBatch(ctx, e, key, file)
			if err != nil {
				return err
			}
			adapter, err := sources.NewReplayAdapter(domain.Source(source), body, time.Now())
			if err != nil {
				return err
			}
			summary, err := e.runner.Replay(ctx, adapter, dryRun)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), []domain.BatchSummary{summary})
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source the batch belongs to")
	cmd.Flags().StringVar(&key, "key", "", "Archive object key (raw/{source}/...)")
	cmd.Flags().StringVar(&file, "file", "", "Local file holding a raw batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Roll back every write and only report")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func readBatch(ctx context.Context, e *env, key, file string) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}
	if e.archive == nil {
		return nil, fmt.Errorf("raw archive is not configured")
	}
	rc, err := e.archive.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func enqueueCmd() *cobra.Command {
	var (
		source string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a run for the scheduler worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != ingest.AllSources && !domain.IsKnownSource(source) {
				return fmt.Errorf("unknown source %q", source)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := scheduler.NewClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := client.EnqueueIngest(cmd.Context(), scheduler.IngestPayload{Source: source, DryRun: dryRun})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s run %s\n", source, id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source to run, or \"all\"")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Roll back every write and only report")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// report prints summaries as JSON and fails when any batch was aborted.
func report(out io.Writer, summaries []domain.BatchSummary) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return err
	}
	var failed []string
	for _, s := range summaries {
		if s.Failed() {
			failed = append(failed, string(s.Source))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed sources: %s", strings.Join(failed, ", "))
	}
	return nil
}
