// Package archive stores snappy-compressed copies of report files in object
// storage, keyed by load run.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/cellcount/cellcount/internal/storage"
	"github.com/golang/snappy"
)

// Prefix is the object path prefix every archived report lives under.
const Prefix = "reports"

// Ext is appended to archived object names.
const Ext = ".sz"

// Archive compresses report files into an ObjectStorage.
type Archive struct {
	store  storage.ObjectStorage
	tmpDir string
}

// New creates an Archive on top of store. Compressed files are staged in
// the system temporary directory.
func New(store storage.ObjectStorage) *Archive {
	return &Archive{store: store, tmpDir: os.TempDir()}
}

// ObjectPath returns the object path a file is archived under for runID.
func ObjectPath(runID, localPath string) string {
	return path.Join(Prefix, runID, filepath.Base(localPath)+Ext)
}

// Put compresses localPath with the snappy framing format and uploads it.
// It returns the object path written.
func (a *Archive) Put(ctx context.Context, runID, localPath string) (string, error) {
	if runID == "" {
		return "", cerrors.NewInternalError("archive run id is empty", nil)
	}
	objectPath := ObjectPath(runID, localPath)

	src, err := os.Open(localPath)
	if err != nil {
		return "", cerrors.NewStorageError(cerrors.CodeUploadFailed, "open "+localPath, err)
	}
	defer src.Close()

	staged, err := os.CreateTemp(a.tmpDir, "cellcount-archive-*"+Ext)
	if err != nil {
		return "", cerrors.NewStorageError(cerrors.CodeUploadFailed, "stage "+objectPath, err)
	}
	defer os.Remove(staged.Name())

	if err := compress(staged, src); err != nil {
		staged.Close()
		return "", cerrors.NewStorageError(cerrors.CodeUploadFailed, "compress "+localPath, err)
	}
	if err := staged.Close(); err != nil {
		return "", cerrors.NewStorageError(cerrors.CodeUploadFailed, "stage "+objectPath, err)
	}

	if err := a.store.Upload(ctx, staged.Name(), objectPath); err != nil {
		return "", err
	}
	return objectPath, nil
}

// Get downloads objectPath and writes its decompressed content to localPath.
func (a *Archive) Get(ctx context.Context, objectPath, localPath string) error {
	staged, err := os.CreateTemp(a.tmpDir, "cellcount-restore-*"+Ext)
	if err != nil {
		return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "stage "+objectPath, err)
	}
	stagedPath := staged.Name()
	staged.Close()
	defer os.Remove(stagedPath)

	if err := a.store.Download(ctx, objectPath, stagedPath); err != nil {
		return err
	}

	src, err := os.Open(stagedPath)
	if err != nil {
		return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "open "+objectPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "create "+localPath, err)
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "create "+localPath, err)
	}
	if _, err := io.Copy(dst, snappy.NewReader(src)); err != nil {
		dst.Close()
		return cerrors.NewStorageError(cerrors.CodeDownloadFailed,
			fmt.Sprintf("decompress %s", objectPath), err)
	}
	if err := dst.Close(); err != nil {
		return cerrors.NewStorageError(cerrors.CodeDownloadFailed, "write "+localPath, err)
	}
	return nil
}

// List returns the archived object paths of one run, or of every run when
// runID is empty.
func (a *Archive) List(ctx context.Context, runID string) ([]string, error) {
	prefix := Prefix
	if runID != "" {
		prefix = path.Join(Prefix, runID)
	}
	objects, err := a.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := objects[:0]
	for _, o := range objects {
		if strings.HasSuffix(o, Ext) {
			out = append(out, o)
		}
	}
	return out, nil
}

func compress(dst io.Writer, src io.Reader) error {
	w := snappy.NewBufferedWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
