// Package storage provides the object storage backends report archives are
// uploaded to.
package storage

import (
	"context"
	"fmt"

	cerrors "github.com/cellcount/cellcount/internal/errors"
)

// ErrObjectNotFound is returned by Download when the object does not exist.
// Match it with errors.Is.
var ErrObjectNotFound = cerrors.New(cerrors.ErrCategoryStorage, cerrors.CodeObjectNotFound, "object not found")

// ObjectStorage abstracts object storage operations.
// Implementations are the local filesystem and S3.
type ObjectStorage interface {
	// Upload copies the local file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies objectPath to the local file at localPath.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether objectPath exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Backend types.
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Type string
	// Path is the base directory of the local backend.
	Path string
	// Bucket is the S3 bucket name.
	Bucket string
	S3     S3Config
}

// New opens the backend described by opts.
func New(ctx context.Context, opts Options) (ObjectStorage, error) {
	switch opts.Type {
	case TypeLocal, "":
		s, err := NewLocalStorage(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeS3:
		s, err := NewS3Storage(ctx, opts.Bucket, opts.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, cerrors.NewConfigError(cerrors.CodeInvalidConfig,
			fmt.Sprintf("unknown storage type %q", opts.Type))
	}
}

func uploadErr(objectPath string, cause error) error {
	return cerrors.NewStorageError(cerrors.CodeUploadFailed, "upload "+objectPath, cause)
}

func downloadErr(objectPath string, cause error) error {
	return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "download "+objectPath, cause)
}

func deleteErr(objectPath string, cause error) error {
	return cerrors.NewStorageError(cerrors.CodeDeleteFailed, "delete "+objectPath, cause)
}
