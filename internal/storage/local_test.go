package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	cerrors "github.com/cellcount/cellcount/internal/errors"
)

func writeReport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	srcPath := writeReport(t, "relative_frequencies.txt", "sample total_count\n")
	objectPath := "reports/run-1/relative_frequencies.txt"
	if err := store.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	dstPath := filepath.Join(t.TempDir(), "nested", "downloaded.txt")
	if err := store.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != "sample total_count\n" {
		t.Errorf("content mismatch: got %q", downloaded)
	}

	if err := store.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}
}

func TestLocalStorage_UploadOverwrites(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	if err := store.Upload(ctx, writeReport(t, "a", "first"), "obj"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Upload(ctx, writeReport(t, "b", "second"), "obj"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(store.BasePath(), "obj"))
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestLocalStorage_UploadMissingSource(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	err = store.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"), "obj")
	if err == nil {
		t.Fatal("expected error uploading a missing file")
	}
	if cerrors.GetCode(err) != cerrors.CodeUploadFailed {
		t.Errorf("code = %s, want %s", cerrors.GetCode(err), cerrors.CodeUploadFailed)
	}
	if !cerrors.IsRetryable(err) {
		t.Error("upload failures should be retryable")
	}
}

func TestLocalStorage_DownloadNotFound(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	err = store.Download(context.Background(), "reports/none.sz", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	if err := store.Delete(context.Background(), "never/uploaded"); err != nil {
		t.Errorf("Delete of missing object should succeed, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	src := writeReport(t, "f", "x")
	for _, p := range []string{"reports/run-2/b.sz", "reports/run-1/a.sz", "reports/run-2/a.sz", "other/c.sz"} {
		if err := store.Upload(ctx, src, p); err != nil {
			t.Fatalf("Upload %s failed: %v", p, err)
		}
	}

	got, err := store.ListObjects(ctx, "reports")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	want := []string{"reports/run-1/a.sz", "reports/run-2/a.sz", "reports/run-2/b.sz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListObjects = %v, want %v", got, want)
	}

	got, err = store.ListObjects(ctx, "missing")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no objects, got %v", got)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Upload(ctx, writeReport(t, "f", "x"), "obj"); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload with cancelled context = %v, want context.Canceled", err)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Options{Type: TypeLocal, Path: t.TempDir()})
	if err != nil {
		t.Fatalf("New local: %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Errorf("expected *LocalStorage, got %T", s)
	}

	if _, err := New(ctx, Options{Type: "gcs"}); cerrors.GetCode(err) != cerrors.CodeInvalidConfig {
		t.Errorf("unknown type: expected INVALID_CONFIG, got %v", err)
	}
	if _, err := New(ctx, Options{Type: TypeS3}); cerrors.GetCode(err) != cerrors.CodeInvalidConfig {
		t.Errorf("s3 without bucket: expected INVALID_CONFIG, got %v", err)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	s := &S3Storage{maxRetries: 3, baseDelay: time.Millisecond}
	ctx := context.Background()

	calls := 0
	err := s.retryWithBackoff(ctx, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	calls = 0
	err = s.retryWithBackoff(ctx, func() error {
		calls++
		return ErrObjectNotFound
	})
	if !errors.Is(err, ErrObjectNotFound) || calls != 1 {
		t.Errorf("not-found should not be retried: calls=%d err=%v", calls, err)
	}

	calls = 0
	err = s.retryWithBackoff(ctx, func() error {
		calls++
		return errors.New("permanent")
	})
	if err == nil || calls != 4 {
		t.Errorf("expected 4 attempts and an error, got calls=%d err=%v", calls, err)
	}
}
