// Package upload defines the object-storage collaborator the capture path
// hands JPEG bytes to (an upload(bucket, key, bytes, userID) -> result
// boundary), plus two runnable adapters. No cloud object-storage SDK
// appears anywhere in the example pack, so none is fabricated here; see
// DESIGN.md for that justification.
package upload

import (
	"context"
	"os"
	"path/filepath"
)

// Result is the outcome of one upload, mirroring the success/failure
// envelope original_source/capturer-svr's OSS client returns.
type Result struct {
	Success bool
	Msg     string
}

// Uploader stores bytes under bucket/key on behalf of a user. userID is
// opaque to the uploader; concrete adapters may use it for auditing.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, userID string) (Result, error)
}

// NoopUploader discards its input and reports success. Used when no local
// upload directory (OSS_LOCAL_DIR) is configured, whatever the bucket, the
// same way internal/telemetry.Init degrades to a no-op shutdown when
// tracing is unconfigured.
type NoopUploader struct{}

func (NoopUploader) Upload(_ context.Context, _, _ string, _ []byte, _ string) (Result, error) {
	return Result{Success: true, Msg: "upload skipped (no uploader configured)"}, nil
}

// FileUploader writes objects under a local directory, one subdirectory
// per bucket and one file per key, standing in for a real object store in
// tests and local runs.
type FileUploader struct {
	BaseDir string
}

func NewFileUploader(baseDir string) *FileUploader {
	return &FileUploader{BaseDir: baseDir}
}

func (f *FileUploader) Upload(_ context.Context, bucket, key string, data []byte, _ string) (Result, error) {
	dir := filepath.Join(f.BaseDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Success: false, Msg: err.Error()}, err
	}
	path := filepath.Join(dir, filepath.Base(key))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{Success: false, Msg: err.Error()}, err
	}
	return Result{Success: true, Msg: path}, nil
}
