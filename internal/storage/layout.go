// Package storage provides the deterministic on-disk layout for pipeline
// outputs and small filesystem helpers used across the pipeline stages.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/models"
)

// Layout computes output paths for a job's artifacts. All paths are
// deterministic functions of the job ID so re-runs overwrite in place.
type Layout struct {
	storage config.StorageConfig
}

// NewLayout creates a Layout over the configured storage roots.
func NewLayout(storage config.StorageConfig) *Layout {
	return &Layout{storage: storage}
}

// EncodedFile returns the encoded output path for one resolution, e.g.
// <base>/encoded/720p/<job>_720p.mp4.
func (l *Layout) EncodedFile(jobID models.ULID, resolution string) string {
	return filepath.Join(l.storage.EncodedPath(), resolution,
		fmt.Sprintf("%s_%s.mp4", jobID, resolution))
}

// PosterFile returns the poster image path for a job.
func (l *Layout) PosterFile(jobID models.ULID) string {
	return filepath.Join(l.storage.PosterPath(), jobID.String()+".jpg")
}

// ThumbnailFile returns the path of the nth gallery thumbnail for a job.
func (l *Layout) ThumbnailFile(jobID models.ULID, index int) string {
	return filepath.Join(l.storage.PosterPath(),
		fmt.Sprintf("%s_thumb_%02d.jpg", jobID, index))
}

// PreviewFile returns the preview clip path for a job.
func (l *Layout) PreviewFile(jobID models.ULID) string {
	return filepath.Join(l.storage.PreviewPath(), jobID.String()+".mp4")
}

// StreamDir returns the packaging output directory for one protocol and
// resolution, e.g. <base>/streams/hls/<job>/720p.
func (l *Layout) StreamDir(jobID models.ULID, protocol models.StreamProtocol, resolution string) string {
	return filepath.Join(l.storage.StreamPath(), string(protocol), jobID.String(), resolution)
}

// MasterManifest returns the master manifest path for one protocol.
func (l *Layout) MasterManifest(jobID models.ULID, protocol models.StreamProtocol) string {
	name := "master.m3u8"
	if protocol == models.ProtocolDASH {
		name = "master.mpd"
	}
	return filepath.Join(l.storage.StreamPath(), string(protocol), jobID.String(), name)
}

// TempDir returns a job-scoped scratch directory.
func (l *Layout) TempDir(jobID models.ULID) string {
	return filepath.Join(l.storage.TempPath(), jobID.String())
}

// EnsureDir creates the directory for the given file path.
func EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FileSize returns the size of path in bytes, 0 when unreadable.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// RemoveQuietly removes a file or directory tree, ignoring errors. Used
// during cleanup where the original failure matters more than the sweep.
func RemoveQuietly(path string) {
	if path == "" {
		return
	}
	_ = os.RemoveAll(path)
}
