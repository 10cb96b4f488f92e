// Package jobenv wires up what both pipeline commands share: config,
// logging, telemetry and the product API client.
package jobenv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"novawatch/internal/archive"
	"novawatch/internal/components/chrono"
	"novawatch/internal/components/telemetry"
	"novawatch/internal/config"
	"novawatch/internal/offapi"
	"novawatch/lib/util/serviceutil"
)

type Env struct {
	Config config.Config
	Tel    telemetry.API
	Clock  chrono.API
	Client *offapi.Client

	providers telemetry.Telemetry
	archive   *archive.Archive
}

func Setup(ctx context.Context, serviceName, configPath string, verbose bool) (*Env, error) {
	serviceutil.InitSlog(verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	providers, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	env, err := newEnv(cfg, providers)
	if err != nil {
		shutdown(providers, telemetry.SlogAPI{})
		return nil, err
	}

	slog.Debug("environment ready", "config", configPath, "country", cfg.Country, "base_url", cfg.BaseUrl)
	return env, nil
}

func newEnv(cfg config.Config, providers telemetry.Telemetry) (*Env, error) {
	tel := telemetry.SlogAPI{}

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	opts := offapi.Options{
		BaseUrl:           cfg.BaseUrl,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	if cfg.DebugHttpDir != "" {
		output, err := telemetry.NewFilesystemOutput(cfg.DebugHttpDir)
		if err != nil {
			return nil, fmt.Errorf("debug http dir: %w", err)
		}
		opts.MessageOutput = output
	}
	client, err := offapi.NewClient(opts, tel)
	if err != nil {
		return nil, err
	}

	return &Env{
		Config:    cfg,
		Tel:       tel,
		Clock:     clock,
		Client:    client,
		providers: providers,
	}, nil
}

func shutdown(providers telemetry.Telemetry, tel telemetry.API) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := providers.Shutdown(ctx)
	if err != nil {
		tel.ReportWarning("shutdown telemetry", err)
	}
}

// Archive opens the configured archive lazily, it returns nil when no
// archive is configured.
func (e *Env) Archive(ctx context.Context) (*archive.Archive, error) {
	if !e.Config.Archive.Enabled() {
		return nil, nil
	}
	if e.archive != nil {
		return e.archive, nil
	}
	a, err := archive.Open(ctx, e.Config.Archive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	e.archive = a
	return a, nil
}

// Close releases the archive and flushes telemetry.
func (e *Env) Close() {
	if e.archive != nil {
		err := e.archive.Close()
		if err != nil {
			e.Tel.ReportWarning("close archive", err)
		}
	}

	shutdown(e.providers, e.Tel)
}
