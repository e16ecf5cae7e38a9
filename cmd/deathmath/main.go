package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type cliState struct {
	configPath string
	debug      bool
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:           "deathmath",
		Short:         "Evaluate language models on math and physics benchmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&st.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd(st))
	root.AddCommand(newLeaderboardCmd(st))
	root.AddCommand(newServeCmd(st))
	return root
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: stderrWriter}).
		Level(level).
		With().Timestamp().Logger()
}
