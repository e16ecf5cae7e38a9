package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Technolog796/DeathMath/internal/config"
	"github.com/Technolog796/DeathMath/internal/leaderboard"
)

type leaderboardOptions struct {
	dataset string
	limit   int
	dbPath  string
}

func newLeaderboardCmd(st *cliState) *cobra.Command {
	var opts leaderboardOptions

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show stored model rankings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLeaderboard(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "overall", "dataset to rank by")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max entries to show")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "leaderboard database path")

	return cmd
}

func showLeaderboard(cmd *cobra.Command, st *cliState, opts *leaderboardOptions) error {
	dbPath := resolveLeaderboardPath(st.configPath, opts.dbPath)

	lbStore, err := leaderboard.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer lbStore.Close()

	entries, err := lbStore.Top(cmd.Context(), opts.dataset, opts.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No entries for dataset %q\n", opts.dataset)
		return nil
	}

	fmt.Fprintf(out, "%-4s %-30s %-16s %10s %10s %8s\n", "#", "Model", "Dataset", "Accuracy", "Attempted", "Failed")
	for i, e := range entries {
		fmt.Fprintf(out, "%-4d %-30s %-16s %9.2f%% %10d %8d\n",
			i+1, e.Model, e.Dataset, e.Accuracy*100, e.Attempted, e.Failed)
	}
	return nil
}

// resolveLeaderboardPath prefers the explicit flag, then the config file's
// storage section, then the default.
func resolveLeaderboardPath(configPath, flagPath string) string {
	if v := strings.TrimSpace(flagPath); v != "" {
		return v
	}
	if cfg, err := config.Load(configPath); err == nil {
		if v := strings.TrimSpace(cfg.Storage.LeaderboardPath); v != "" {
			return v
		}
	}
	return defaultLeaderboardPath
}
