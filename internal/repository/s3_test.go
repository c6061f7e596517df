package repository

import (
	"context"
	"testing"

	"github.com/debemdeboas/folio/internal/config"
	"github.com/debemdeboas/folio/internal/model"
)

func TestNewS3BlobStoreRequiresBucket(t *testing.T) {
	if _, err := NewS3BlobStore(context.Background(), config.S3Config{Region: "auto"}); err == nil {
		t.Error("Expected missing bucket to fail")
	}
}

func TestNewS3BlobStore(t *testing.T) {
	store, err := NewS3BlobStore(context.Background(), config.S3Config{
		Bucket:          "images",
		Endpoint:        "http://localhost:9000",
		Region:          "auto",
		Prefix:          "folio",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3BlobStore failed: %v", err)
	}
	if store.bucket != "images" || store.client == nil {
		t.Errorf("Unexpected store: %+v", store)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "abc/original", "abc/original"},
		{"images", "abc/original", "images/abc/original"},
		{"images/", "abc/thumbnail", "images/abc/thumbnail"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+"|"+tt.key, func(t *testing.T) {
			b := &S3BlobStore{prefix: tt.prefix}
			if got := b.objectKey(tt.key); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestVariantKeys(t *testing.T) {
	got := variantKeys([]string{"a", "b"})
	want := []string{"a/original", "a/normal", "a/thumbnail", "b/original", "b/normal", "b/thumbnail"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Key %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if variantKey("x", model.VariantNormal) != "x/normal" {
		t.Errorf("Unexpected variant key %q", variantKey("x", model.VariantNormal))
	}
}
