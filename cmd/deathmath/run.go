package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Technolog796/DeathMath/internal/aggregate"
	"github.com/Technolog796/DeathMath/internal/cache"
	"github.com/Technolog796/DeathMath/internal/config"
	"github.com/Technolog796/DeathMath/internal/dataset"
	"github.com/Technolog796/DeathMath/internal/leaderboard"
	"github.com/Technolog796/DeathMath/internal/retry"
	"github.com/Technolog796/DeathMath/internal/scheduler"
)

const (
	defaultCachePath       = "data/cache/responses.db"
	defaultLeaderboardPath = "data/leaderboard.db"
	defaultReportPath      = "results/leaderboard.md"
)

type runOptions struct {
	datasets    []string
	numExamples int
	maxWorkers  int
	noCache     bool
	output      string
	maxRetries  int
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate configured models and write a leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(cmd, st, &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.datasets, "dataset", nil, "datasets to run (default: all)")
	cmd.Flags().IntVar(&opts.numExamples, "num-examples", 0, "examples per dataset (0 = config default)")
	cmd.Flags().IntVar(&opts.maxWorkers, "max-workers", 0, "global concurrency bound (0 = config default)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "ignore cached responses (still writes cache)")
	cmd.Flags().StringVar(&opts.output, "output", defaultReportPath, "leaderboard report path")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "retry attempts per request (0 = default)")

	return cmd
}

func runEvaluation(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return err
	}
	if opts.numExamples > 0 {
		cfg.NumExamples = opts.numExamples
	}
	if opts.maxWorkers > 0 {
		cfg.MaxWorkers = opts.maxWorkers
	}
	debug := st.debug || cfg.Debug
	log := newLogger(debug)

	datasets, err := selectDatasets(opts.datasets)
	if err != nil {
		return err
	}

	cachePath := strings.TrimSpace(cfg.Storage.CachePath)
	if cachePath == "" {
		cachePath = defaultCachePath
	}
	store, err := cache.Open(cachePath, opts.noCache, log)
	if err != nil {
		return err
	}
	defer store.Close()

	policy := retry.New(opts.maxRetries, 0, 0)

	sched, err := scheduler.New(cfg, store, policy, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, runErr := sched.Run(ctx, datasets)
	if report == nil {
		return runErr
	}

	scores := aggregate.Fold(report.Results)

	lbPath := strings.TrimSpace(cfg.Storage.LeaderboardPath)
	if lbPath == "" {
		lbPath = defaultLeaderboardPath
	}
	lbStore, err := leaderboard.NewStore(lbPath)
	if err != nil {
		return err
	}
	defer lbStore.Close()

	runID := uuid.NewString()
	if err := lbStore.SaveRun(context.Background(), runID, scores); err != nil {
		return err
	}

	if err := writeReportFile(opts.output, scores, report.Elapsed); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished in %s, %d tokens used\n", runID, report.Elapsed.Round(time.Second), report.TotalTokens)
	for _, ms := range scores {
		o := ms.Overall
		fmt.Fprintf(out, "  %-30s %.2f%% (%d/%d correct, %d cached, %d failed, %d data faults)\n",
			ms.Model, o.Accuracy*100, o.Correct, o.Attempted, o.CacheHits, o.Failed, o.DataFaults)
	}
	fmt.Fprintf(out, "Report written to %s\n", opts.output)

	return runErr
}

func selectDatasets(names []string) ([]dataset.Dataset, error) {
	if len(names) == 0 {
		return dataset.All(), nil
	}

	out := make([]dataset.Dataset, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		ds, ok := dataset.ByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		out = append(out, ds)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no datasets selected")
	}
	return out, nil
}

func writeReportFile(path string, scores []aggregate.ModelScore, elapsed time.Duration) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultReportPath
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	return leaderboard.WriteReport(f, scores, elapsed)
}
