package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// File is a user supplied input for a video job.
type File struct {
	Name        string
	ContentType string
	Size        int64

	open func() (io.ReadCloser, error)
}

// Open returns a reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

// ReadAll returns the complete file content.
func (f File) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

// FromPath loads a file from disk. The content type is sniffed from the
// file content rather than trusted from the extension.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to detect content type of %s: %w", path, err)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: mtype.String(),
		Size:        info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes wraps in-memory content. An empty contentType is sniffed.
func FromBytes(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromMultipart wraps an uploaded form file. A missing or generic declared
// content type is replaced by the sniffed one.
func FromMultipart(fh *multipart.FileHeader) (File, error) {
	contentType := fh.Header.Get("Content-Type")
	if mediaType(contentType) == "" || mediaType(contentType) == "application/octet-stream" {
		src, err := fh.Open()
		if err != nil {
			return File{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		mtype, err := mimetype.DetectReader(src)
		src.Close()
		if err != nil {
			return File{}, fmt.Errorf("failed to detect content type of %s: %w", fh.Filename, err)
		}
		contentType = mtype.String()
	}

	return File{
		Name:        filepath.Base(fh.Filename),
		ContentType: contentType,
		Size:        fh.Size,
		open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}, nil
}

func mediaType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}
