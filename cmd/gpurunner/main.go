package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// globalFlags holds the persistent flags and the process-wide writers.
type globalFlags struct {
	configPath  string
	apiKey      string
	logLevel    string
	logFormat   string
	metricsFile string

	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, g := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		g.log().Error("gpurunner failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *globalFlags) {
	g := &globalFlags{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "gpurunner",
		Short: "Lambda Cloud GPU runner lifecycle tool",
		Long: `gpurunner starts and terminates the Lambda Cloud GPU instance backing a CI runner.

Each instance type has at most one runner. start and terminate are safe to
repeat: they do nothing when the runner is already in the requested state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.stderr, g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			g.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&g.apiKey, "api-key", "", "Lambda Cloud API key (env: LAMBDA_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&g.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")

	rootCmd.AddCommand(startCmd(g))
	rootCmd.AddCommand(terminateCmd(g))
	rootCmd.AddCommand(typesCmd(g))
	rootCmd.AddCommand(instancesCmd(g))
	rootCmd.AddCommand(versionCmd(g))

	return rootCmd, g
}

// log returns the configured logger, or a stderr text logger if flag
// parsing failed before one was built.
func (g *globalFlags) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.New(slog.NewTextHandler(g.stderr, nil))
}
