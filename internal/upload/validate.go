package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"video-studio/internal/models"
)

const (
	MaxImages    = 10
	MaxAudioSize = 50 << 20
)

var audioContentTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/wav",
	"audio/ogg",
	"audio/mp4",
	"audio/x-m4a",
}

var audioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a"}

// IsImage reports whether f declares an image/* content type.
func IsImage(f File) bool {
	return strings.HasPrefix(mediaType(f.ContentType), "image/")
}

// ValidateAudio accepts files of a known audio type or extension up to 50MB.
func ValidateAudio(f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !contains(audioContentTypes, mediaType(f.ContentType)) && !contains(audioExtensions, ext) {
		return models.NewValidationError("audio", "unsupported audio format; use MP3, WAV, OGG or M4A")
	}
	if f.Size > MaxAudioSize {
		return models.NewValidationError("audio", fmt.Sprintf("audio file must not exceed %dMB", MaxAudioSize>>20))
	}
	return nil
}

// ValidateImages checks a complete image list as received by the backend.
func ValidateImages(files []File) error {
	if len(files) == 0 {
		return models.NewValidationError("images", "at least one image is required")
	}
	if len(files) > MaxImages {
		return models.NewValidationError("images", fmt.Sprintf("at most %d images are allowed", MaxImages))
	}
	for _, f := range files {
		if !IsImage(f) {
			return models.NewValidationError("images", fmt.Sprintf("%s is not an image", f.Name))
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
