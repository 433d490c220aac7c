/*
Package storage provides object storage for uploaded policy documents.

Two backends implement BlobStore:
  - DiskStore: files under a local directory, served by the API at /files/
  - S3Store:   aws-sdk-go-v2, for real deployments

Keys are namespaced per owner (see keys.go) so one user's documents can
never collide with another's.
*/
package storage

import "context"

// BlobStore stores and removes document blobs and resolves their public,
// retrievable URLs.
type BlobStore interface {
	// Put stores data under key. Keys are write-once; overwriting an
	// existing key is an error.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// PublicURL returns the retrievable URL for a stored key.
	PublicURL(key string) string

	// Remove deletes the blob at key. Used as the compensating action when
	// record creation fails after an upload.
	Remove(ctx context.Context, key string) error
}
