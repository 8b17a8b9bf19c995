package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

// ObjectStore defines the interface for private object storage. Objects are
// addressed by key and read back only through short-lived presigned URLs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// DocumentObjectBase is the key prefix shared by all variants of a loan document
func DocumentObjectBase(loanID int32, documentID string) string {
	return path.Join("loans", fmt.Sprintf("%d", loanID), "documents", documentID)
}

// VariantKey is the storage key of one size variant under base
func VariantKey(base, variant string) string {
	return base + "_" + variant + ".jpg"
}
