package repository

import (
	"context"
	"fmt"

	"github.com/debemdeboas/folio/internal/model"
)

// BlobStore keeps image variants outside the database.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

func variantKey(blobKey string, v model.ImageVariant) string {
	return fmt.Sprintf("%s/%s", blobKey, v)
}

func variantKeys(blobKeys []string) []string {
	keys := make([]string, 0, len(blobKeys)*len(model.ImageVariants))
	for _, k := range blobKeys {
		for _, v := range model.ImageVariants {
			keys = append(keys, variantKey(k, v))
		}
	}
	return keys
}

// deleteBlobs runs after the owning rows are gone, so failures only leave
// orphaned objects behind and are logged.
func (s *PostStore) deleteBlobs(ctx context.Context, blobKeys []string) {
	if s.blobs == nil || len(blobKeys) == 0 {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), variantKeys(blobKeys)...); err != nil {
		repoLogger.Error().Err(err).Strs("blob_keys", blobKeys).Msg("Error deleting image blobs")
	}
}
