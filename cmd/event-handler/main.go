package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/events"
	"translation-orchestrator/internal/logging"
	"translation-orchestrator/internal/storage"
	appTemporal "translation-orchestrator/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logging.New(cfg.Environment, cfg.LogLevel, "event-handler")
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("init logger")
	}

	minioClient, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect minio")
	}
	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("connect minio bucket")
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect temporal")
	}
	defer temporalClient.Close()

	source := events.NewMinioManifestEventSource(minioClient, cfg.MinioBucket, storage.ManifestFile, log)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("bucket", cfg.MinioBucket).Msg("event-handler listening for manifests")
	err = source.Run(ctx, func(parent context.Context, event events.ManifestEvent) error {
		execCtx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()

		evLog := log.With().Str("request_id", event.RequestID).Str("object", event.ObjectKey).Logger()
		manifest, err := blob.GetManifest(execCtx, event.ObjectKey)
		if err != nil {
			evLog.Error().Err(err).Msg("manifest unreadable, skipping")
			return nil
		}
		if manifest.RequestID != event.RequestID {
			evLog.Error().Str("manifest_request_id", manifest.RequestID).Msg("manifest does not match its location, skipping")
			return nil
		}

		workflowID := cfg.WorkflowID(event.RequestID)
		_, startErr := temporalClient.ExecuteWorkflow(execCtx, client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: cfg.TemporalTaskQueue,
		}, appTemporal.TranslationWorkflowName, appTemporal.WorkflowInput{
			RequestID: manifest.RequestID,
			Site:      manifest.Site,
			Request:   manifest.Request,
		})
		if startErr != nil {
			var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(startErr, &alreadyStarted) {
				evLog.Info().Str("workflow_id", workflowID).Msg("workflow already started")
				return nil
			}
			return fmt.Errorf("start workflow for object %s: %w", event.ObjectKey, startErr)
		}

		evLog.Info().Str("workflow_id", workflowID).Msg("started workflow")
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("event-handler stopped with error")
	}
}
