// Blob storage for uploaded material files.
//
// Two backends exist:
//   - LocalStore: files under UPLOAD_DIR (or any absolute / cwd-relative path)
//   - S3Store: objects in AWS_S3_BUCKET, addressed by relative key
//
// Upload rows store either an absolute local path or an object key; Resolver
// picks the backend from that value at read time.

package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
)

var ErrNotFound = errors.New("blob not found")

type Object struct {
	Body io.ReadCloser
	Size int64
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Resolver routes a stored file path to the backend that owns it.
type Resolver struct {
	objects Store
	local   *LocalStore
}

func NewResolver(objects Store, local *LocalStore) *Resolver {
	return &Resolver{objects: objects, local: local}
}

// Writer returns the store new uploads go to.
func (r *Resolver) Writer() Store {
	if r.objects != nil {
		return r.objects
	}
	return r.local
}

// For returns the backend a previously stored path must be read from.
func (r *Resolver) For(path string) Store {
	if r.objects != nil && !filepath.IsAbs(path) {
		return r.objects
	}
	return r.local
}

func (r *Resolver) HasObjectStore() bool {
	return r.objects != nil
}
