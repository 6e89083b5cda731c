package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the processing state of a video job as reported by the backend.
type Status string

const (
	StatusSubmitting Status = "SUBMITTING"
	StatusInProgress Status = "EN_PROCESO"
	StatusCompleted  Status = "COMPLETADO"
	StatusError      Status = "ERROR"
)

// ParseStatus maps a wire value to a Status. The English spellings are
// accepted as aliases. Unknown values are returned verbatim.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "EN_PROCESO", "IN_PROGRESS", "PROCESSING":
		return StatusInProgress
	case "COMPLETADO", "COMPLETED":
		return StatusCompleted
	case "ERROR", "FAILED":
		return StatusError
	case "SUBMITTING":
		return StatusSubmitting
	}
	return Status(raw)
}

// Known reports whether s is one of the statuses the workflow understands.
func (s Status) Known() bool {
	switch s {
	case StatusSubmitting, StatusInProgress, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

// Format is the requested container format of the rendered video.
type Format string

const (
	FormatMP4  Format = "MP4"
	FormatAVI  Format = "AVI"
	FormatMOV  Format = "MOV"
	FormatMKV  Format = "MKV"
	FormatWEBM Format = "WEBM"
)

// ParseFormat normalizes a user supplied format name. An empty value yields MP4.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(raw), ".")))
	switch f {
	case "":
		return FormatMP4, nil
	case FormatMP4, FormatAVI, FormatMOV, FormatMKV, FormatWEBM:
		return f, nil
	}
	return "", NewValidationError("formato", fmt.Sprintf("unsupported video format %q", raw))
}

// Extension returns the lower-case file extension for f without the dot.
func (f Format) Extension() string {
	if f == "" {
		return "mp4"
	}
	return strings.ToLower(string(f))
}

// UserRef identifies the owner of a video or credit record.
type UserRef struct {
	ID    int64  `json:"id,omitempty"`
	Login string `json:"login,omitempty"`
}

// Video is the job snapshot exchanged with the backend.
type Video struct {
	ID                int64      `json:"id,omitempty"`
	Title             string     `json:"titulo,omitempty"`
	AudioFilename     string     `json:"audioFilename,omitempty"`
	HasAudio          bool       `json:"tieneAudio"`
	TransitionSeconds *int       `json:"duracionTransicion,omitempty"`
	Status            Status     `json:"estado,omitempty"`
	Format            Format     `json:"formato,omitempty"`
	CreatedAt         *time.Time `json:"fechaCreacion,omitempty"`
	DownloadedAt      *time.Time `json:"fechaDescarga,omitempty"`
	User              *UserRef   `json:"user,omitempty"`
	DownloadURL       string     `json:"downloadUrl,omitempty"`
	OutputFilename    string     `json:"outputFilename,omitempty"`
}

// DownloadPath is the backend-relative artifact location for a video id.
func DownloadPath(id int64) string {
	return fmt.Sprintf("/api/videos/%d/download", id)
}

// ContentType returns the MIME type of a video in format f.
func (f Format) ContentType() string {
	switch f {
	case FormatAVI:
		return "video/x-msvideo"
	case FormatMOV:
		return "video/quicktime"
	case FormatMKV:
		return "video/x-matroska"
	case FormatWEBM:
		return "video/webm"
	}
	return "video/mp4"
}
