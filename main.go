package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pixbatch/archive"
	"pixbatch/codec"
	"pixbatch/config"
	"pixbatch/job"
	"pixbatch/logger"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "pixbatch",
		Short:         "Batch image converter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Minimum log level: debug, info, warn, error (default $PIXBATCH_LOG_LEVEL or info)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newConvertCommand())
	return rootCmd
}

// initLogger applies the flag, then PIXBATCH_LOG_LEVEL and PIXBATCH_LOG_FILE.
func initLogger(flagLevel string) error {
	name := flagLevel
	if name == "" {
		name = config.GetLogLevel()
	}
	level, ok := logger.ParseLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	return logger.Init(logger.Options{
		Filename: config.GetLogFile(),
		Console:  os.Stderr,
		Level:    level,
	})
}

// newCoordinator builds a coordinator with the configured limits.
func newCoordinator(lib *codec.Library) *job.Coordinator {
	format, err := archive.ParseFormat(config.GetDefaultArchiveFormat())
	if err != nil {
		logger.Warnf("Ignoring PIXBATCH_ARCHIVE_FORMAT: %v", err)
		format = archive.Zip
	}
	return &job.Coordinator{
		Codec:          lib,
		ConcurrencyFor: config.GetConcurrency,
		MemoryPerItem:  config.GetMemoryPerItem(),
		Archive:        format,
	}
}
