package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"translation-orchestrator/internal/domain"
)

// ManifestFile is written last by the export pipeline; its arrival starts
// the translation workflow.
const ManifestFile = "manifest.json"

const xliffContentType = "application/x-xliff+xml"

// Manifest lists what the export pipeline wrote for one request.
type Manifest struct {
	RequestID string                   `json:"request_id"`
	Site      string                   `json:"site,omitempty"`
	Request   domain.SubmissionRequest `json:"request"`
	Exports   map[string]string        `json:"exports"`
	CreatedAt time.Time                `json:"created_at"`
}

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*MinioStore, error) {
	client, err := NewMinioClient(endpoint, accessKey, secretKey, useSSL)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func ExportKey(requestID, locale string) string {
	return path.Join(requestID, "exports", locale+".xliff")
}

func TranslationKey(requestID, locale string) string {
	return path.Join(requestID, "translations", locale+".xliff")
}

func ManifestKey(requestID string) string {
	return path.Join(requestID, ManifestFile)
}

func (m *MinioStore) PutExport(ctx context.Context, requestID, locale string, payload []byte) (string, error) {
	return m.put(ctx, ExportKey(requestID, locale), payload, xliffContentType)
}

// ExportPayload reports a missing export as domain.ErrNotFound.
func (m *MinioStore) ExportPayload(ctx context.Context, requestID, locale string) ([]byte, error) {
	return m.get(ctx, ExportKey(requestID, locale))
}

func (m *MinioStore) PutTranslation(ctx context.Context, requestID, locale string, payload []byte) (string, error) {
	return m.put(ctx, TranslationKey(requestID, locale), payload, xliffContentType)
}

func (m *MinioStore) PutManifest(ctx context.Context, manifest Manifest) (string, error) {
	payload, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	return m.put(ctx, ManifestKey(manifest.RequestID), payload, "application/json")
}

func (m *MinioStore) GetManifest(ctx context.Context, objectKey string) (Manifest, error) {
	payload, err := m.get(ctx, objectKey)
	if err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", objectKey, err)
	}
	return manifest, nil
}

func (m *MinioStore) put(ctx context.Context, objectKey string, content []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func (m *MinioStore) get(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err, objectKey)
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, notFound(err, objectKey)
	}
	return data.Bytes(), nil
}

func notFound(err error, objectKey string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("object %s: %w", objectKey, domain.ErrNotFound)
	}
	return fmt.Errorf("read object %s: %w", objectKey, err)
}
