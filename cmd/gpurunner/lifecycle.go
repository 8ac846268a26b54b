package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/NavarchProject/gpurunner/pkg/config"
	"github.com/NavarchProject/gpurunner/pkg/lifecycle"
	"github.com/NavarchProject/gpurunner/pkg/metrics"
	"github.com/NavarchProject/gpurunner/pkg/notify"
)

func startCmd(g *globalFlags) *cobra.Command {
	var instanceType string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch a runner instance unless one is already running",
		Long: `Launch one instance of the given type in the first region with capacity and
wait until it is active. The IP address is printed to stdout.

If an instance of the type is already running, nothing is launched and
nothing is printed.`,
		Example: "  gpurunner start --instance-type-name gpu_1x_a10",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.runLifecycle(cmd.Context(), lifecycle.ActionStart, instanceType)
		},
	}

	cmd.Flags().StringVar(&instanceType, "instance-type-name", "", "Instance type to launch (e.g. gpu_1x_a10)")
	cobra.CheckErr(cmd.MarkFlagRequired("instance-type-name"))

	return cmd
}

func terminateCmd(g *globalFlags) *cobra.Command {
	var instanceType string

	cmd := &cobra.Command{
		Use:   "terminate",
		Short: "Terminate the running instance of a type",
		Long: `Terminate the running instance of the given type and wait until it is gone.
The IP address it had is printed to stdout.

If no instance of the type is running, nothing is printed.`,
		Example: "  gpurunner terminate --instance-type-name gpu_1x_a10",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.runLifecycle(cmd.Context(), lifecycle.ActionTerminate, instanceType)
		},
	}

	cmd.Flags().StringVar(&instanceType, "instance-type-name", "", "Instance type to terminate (e.g. gpu_1x_a10)")
	cobra.CheckErr(cmd.MarkFlagRequired("instance-type-name"))

	return cmd
}

func (g *globalFlags) runLifecycle(ctx context.Context, action, instanceType string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	cat, err := cfg.Catalog()
	if err != nil {
		return err
	}
	if err := cat.Validate(instanceType); err != nil {
		return err
	}

	m := metrics.New()
	defer g.writeMetrics(cfg, m)

	api, err := g.newAPI(cfg, m)
	if err != nil {
		return err
	}

	notifier, err := g.newNotifier(cfg)
	if err != nil {
		return err
	}

	orch := lifecycle.New(api, lifecycle.Options{
		SSHKeyName:      cfg.Runner.SSHKeyName,
		NamePrefix:      cfg.Runner.NamePrefix,
		FileSystemNames: cfg.Runner.FileSystems,
		VerifySSHKey:    cfg.Runner.VerifySSHKey,
		PollInterval:    cfg.Poll.Interval,
		PollTimeout:     cfg.Poll.Timeout,
		Logger:          g.log().With(slog.String("component", "lifecycle")),
		Recorder:        m,
		Notifier:        notifier,
	})

	var res *lifecycle.Result
	switch action {
	case lifecycle.ActionStart:
		res, err = orch.Start(ctx, instanceType)
	case lifecycle.ActionTerminate:
		res, err = orch.Terminate(ctx, instanceType)
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	if err != nil {
		return err
	}

	switch res.Outcome {
	case lifecycle.OutcomeLaunched, lifecycle.OutcomeTerminated:
		fmt.Fprintln(g.stdout, res.IP)
	}
	return nil
}

func (g *globalFlags) newNotifier(cfg *config.Config) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.NewLogNotifier(g.log())}
	if cfg.Notify.WebhookURL == "" {
		return notifiers, nil
	}

	wh, err := notify.NewWebhook(notify.WebhookConfig{
		URL:     cfg.Notify.WebhookURL,
		Timeout: cfg.Notify.Timeout,
		Headers: cfg.Notify.Headers,
	}, g.log().With(slog.String("component", "webhook")))
	if err != nil {
		return nil, err
	}
	return append(notifiers, wh), nil
}
