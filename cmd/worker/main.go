package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"translation-orchestrator/internal/action"
	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/logging"
	"translation-orchestrator/internal/provider"
	"translation-orchestrator/internal/settings"
	"translation-orchestrator/internal/storage"
	"translation-orchestrator/internal/telemetry"
	appTemporal "translation-orchestrator/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logging.New(cfg.Environment, cfg.LogLevel, "worker")
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("init logger")
	}

	tracer, shutdownTracer, err := telemetry.NewTracer(context.Background(), "translation-worker", cfg.TracingEnabled)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer store.Close()

	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("connect minio")
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect temporal")
	}
	defer temporalClient.Close()

	static := cfg.StaticSettings()
	activities := &appTemporal.Activities{
		Env: action.Env{
			Settings: settings.NewLayeredLoader(static, store),
			Static:   settings.Merge(static),
			Sessions: provider.NewFactory(&http.Client{}, provider.NewMockProvider(), log),
			Tracer:   tracer,
			Log:      log,
		},
		Exports:  blob,
		Importer: action.NewBlobImporter(blob),
		Store:    store,
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.TranslationWorkflow, workflow.RegisterOptions{Name: appTemporal.TranslationWorkflowName})
	w.RegisterActivity(activities.SendTranslationActivity)
	w.RegisterActivity(activities.DownloadTranslationActivity)
	w.RegisterActivity(activities.CancelTranslationActivity)
	w.RegisterActivity(activities.RecordSnapshotActivity)

	log.Info().Str("task_queue", cfg.TemporalTaskQueue).Str("provider_type", cfg.ProviderType).Msg("worker running")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("worker stopped with error")
	}
}
