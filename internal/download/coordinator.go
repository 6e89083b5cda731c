package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"video-studio/internal/models"
	"video-studio/internal/videoapi"
)

// DefaultFilename is used when neither the response nor the job names the file.
const DefaultFilename = "video.mp4"

// Fetcher retrieves a rendered artifact.
type Fetcher interface {
	DownloadVideo(ctx context.Context, id int64) (*videoapi.Artifact, error)
}

// Saver hands the artifact to the user and returns where it ended up.
type Saver interface {
	Save(name string, r io.Reader) (string, error)
}

// Coordinator runs at most one download at a time.
type Coordinator struct {
	fetcher  Fetcher
	saver    Saver
	logger   zerolog.Logger
	inFlight atomic.Bool
}

func NewCoordinator(fetcher Fetcher, saver Saver, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		fetcher: fetcher,
		saver:   saver,
		logger:  logger,
	}
}

// Download fetches the artifact for id and saves it. fallbackName is the
// job's output filename, used when the response does not name the file.
func (c *Coordinator) Download(ctx context.Context, id int64, fallbackName string) (string, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return "", fmt.Errorf("%w: a download is already in progress", models.ErrDownload)
	}
	defer c.inFlight.Store(false)

	artifact, err := c.fetcher.DownloadVideo(ctx, id)
	if err != nil {
		c.logger.Error().Err(err).Int64("video_id", id).Msg("download failed")
		return "", fmt.Errorf("%w: %v", models.ErrDownload, err)
	}
	if artifact == nil || len(artifact.Data) == 0 {
		return "", fmt.Errorf("%w: empty response body", models.ErrDownload)
	}

	name := FilenameFromDisposition(artifact.ContentDisposition)
	if name == "" {
		name = safeName(fallbackName)
	}
	if name == "" {
		name = DefaultFilename
	}

	path, err := c.saver.Save(name, bytes.NewReader(artifact.Data))
	if err != nil {
		c.logger.Error().Err(err).Int64("video_id", id).Msg("failed to save download")
		return "", fmt.Errorf("%w: %v", models.ErrDownload, err)
	}

	c.logger.Info().Int64("video_id", id).Str("path", path).Int("bytes", len(artifact.Data)).Msg("video downloaded")
	return path, nil
}

// InFlight reports whether a download is running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// FilenameFromDisposition extracts the filename parameter of a
// Content-Disposition header, or "" when absent.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return safeName(params["filename"])
}

func safeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// DirSaver writes downloads into a directory.
type DirSaver struct {
	Dir string
}

// Save streams r to a temporary file and renames it into place. The
// temporary file is removed whether or not the save succeeds.
func (d DirSaver) Save(name string, r io.Reader) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close download: %w", err)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}
	return dest, nil
}
