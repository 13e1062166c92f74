package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tarndt/flashbench/cmd/flashbench/conf"
	"github.com/tarndt/flashbench/pkg/logging"
)

//Simple usage: go build && ./flashbench run /media/usb-stick
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string
	log := logrus.New()

	rootCmd := &cobra.Command{
		Use:          "flashbench",
		Short:        "Benchmark USB flash drives and other removable block storage",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Configure(log, cmd.ErrOrStderr(), logLevel, logFormat); err != nil {
				return err
			}
			return conf.LoadEnv()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, fmt.Sprintf("Log format: %q or %q", logging.FormatText, logging.FormatJSON))

	rootCmd.AddCommand(newRunCmd(log), newCompareCmd(), newProfilesCmd())
	return rootCmd
}
