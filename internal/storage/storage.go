// Package storage uploads proof photos to an object store.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// UploadResult identifies a stored object. Ref is what Delete takes.
type UploadResult struct {
	URL          string
	ResourceType string
	Ref          string
}

// ObjectStore is the proof image store.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error)
	// Delete removes the object by reference. Deleting a missing object is not an error.
	Delete(ctx context.Context, ref string) error
}

// ProofKey builds the object key for a new proof photo: proofs/<crop-slug>/<user>/<uuid>.jpg.
func ProofKey(crop, userID string) string {
	folder := slug.Make(crop)
	if folder == "" {
		folder = "general"
	}
	return fmt.Sprintf("proofs/%s/%s/%s.jpg", folder, userID, uuid.NewString())
}
