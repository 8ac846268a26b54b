package main

import (
	"log/slog"

	"github.com/NavarchProject/gpurunner/pkg/config"
	"github.com/NavarchProject/gpurunner/pkg/lambda"
	"github.com/NavarchProject/gpurunner/pkg/metrics"
)

func (g *globalFlags) loadConfig() (*config.Config, error) {
	if g.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	g.log().Debug("loaded config", slog.String("path", g.configPath))
	return cfg, nil
}

// newAPI builds the Lambda Cloud client. Each attempt is measured, and read
// calls are retried when the config enables it.
func (g *globalFlags) newAPI(cfg *config.Config, m *metrics.Metrics) (lambda.API, error) {
	key, err := cfg.APIKey(g.apiKey)
	if err != nil {
		return nil, err
	}

	logger := g.log().With(slog.String("component", "lambda-client"))
	client, err := lambda.New(lambda.Config{
		APIKey:     key,
		BaseURL:    cfg.API.BaseURL,
		AuthScheme: cfg.API.AuthScheme,
		Timeout:    cfg.API.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	policy := cfg.RetryPolicy()
	policy.Logger = logger

	return lambda.WithRetry(metrics.InstrumentAPI(client, m), policy), nil
}

// writeMetrics exports m if a textfile path is configured. A failed export
// is logged and does not change the exit status.
func (g *globalFlags) writeMetrics(cfg *config.Config, m *metrics.Metrics) {
	path := g.metricsFile
	if path == "" {
		path = cfg.Metrics.Textfile
	}
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		g.log().Warn("failed to write metrics", slog.String("error", err.Error()))
		return
	}
	g.log().Debug("wrote metrics", slog.String("path", path))
}
