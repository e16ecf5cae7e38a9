package main

import (
	"github.com/spf13/cobra"

	"github.com/Technolog796/DeathMath/api"
	"github.com/Technolog796/DeathMath/internal/leaderboard"
)

type serveOptions struct {
	addr   string
	dbPath string
}

func newServeCmd(st *cliState) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the leaderboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "leaderboard database path")

	return cmd
}

func serve(st *cliState, opts *serveOptions) error {
	dbPath := resolveLeaderboardPath(st.configPath, opts.dbPath)

	lbStore, err := leaderboard.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer lbStore.Close()

	srv, err := api.NewServer(lbStore, newLogger(st.debug))
	if err != nil {
		return err
	}
	return srv.Run(opts.addr)
}
