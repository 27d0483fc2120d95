package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// ManifestEvent reports that the export pipeline finished writing a request.
type ManifestEvent struct {
	RequestID string
	ObjectKey string
	EventName string
}

type ManifestEventSource interface {
	Run(ctx context.Context, handler func(context.Context, ManifestEvent) error) error
}

type MinioManifestEventSource struct {
	client   *minio.Client
	bucket   string
	manifest string
	log      zerolog.Logger
}

func NewMinioManifestEventSource(client *minio.Client, bucket, manifest string, log zerolog.Logger) *MinioManifestEventSource {
	return &MinioManifestEventSource{
		client:   client,
		bucket:   bucket,
		manifest: manifest,
		log:      log,
	}
}

func (s *MinioManifestEventSource) Run(ctx context.Context, handler func(context.Context, ManifestEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, "", s.manifest, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					s.log.Warn().Err(err).Str("raw_key", record.S3.Object.Key).Msg("skipping undecodable object key")
					continue
				}
				requestID, err := parseManifestKey(objectKey, s.manifest)
				if err != nil {
					s.log.Debug().Err(err).Msg("skipping object")
					continue
				}
				event := ManifestEvent{
					RequestID: requestID,
					ObjectKey: objectKey,
					EventName: record.EventName,
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseManifestKey accepts only <requestID>/<manifest>.
func parseManifestKey(objectKey, manifest string) (string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	dir, file := path.Split(cleaned)
	if file != manifest {
		return "", fmt.Errorf("object key %q is not a manifest", objectKey)
	}
	requestID := strings.TrimSpace(strings.TrimSuffix(dir, "/"))
	if requestID == "" || strings.Contains(requestID, "/") {
		return "", fmt.Errorf("object key %q does not match request_id/%s", objectKey, manifest)
	}
	return requestID, nil
}
