package action

import (
	"context"

	"translation-orchestrator/internal/domain"
)

// TranslationStore keeps imported translations.
type TranslationStore interface {
	PutTranslation(ctx context.Context, requestID, locale string, payload []byte) (string, error)
}

// BlobImporter stores every well-formed translation as is. Payloads that
// are not XLIFF are reported against their locale and left on the provider.
type BlobImporter struct {
	Store TranslationStore
}

func NewBlobImporter(store TranslationStore) *BlobImporter {
	return &BlobImporter{Store: store}
}

func (b *BlobImporter) Import(ctx context.Context, requestID string, task domain.TaskRecord, payload []byte) (map[string][]string, error) {
	if !domain.IsTranslatablePayload(payload) {
		return map[string][]string{domain.CodeFileType: {task.Locale}}, nil
	}
	if _, err := b.Store.PutTranslation(ctx, requestID, task.Locale, payload); err != nil {
		return nil, err
	}
	return nil, nil
}
