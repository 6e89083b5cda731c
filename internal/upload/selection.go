package upload

import (
	"fmt"

	"video-studio/internal/models"
)

// DefaultTransitionSeconds applies when no-audio mode is declared without
// an explicit per-image duration.
const DefaultTransitionSeconds = 5

// ImageSet is an ordered image selection capped at MaxImages. Reason holds
// the message of the last rejected change, if any.
type ImageSet struct {
	files  []File
	reason string
}

// Add appends files. A batch containing a non-image is rejected as a whole.
// When the batch does not fit, the leading files that do fit are kept and
// the rest are rejected. It returns the number of files accepted.
func (s *ImageSet) Add(files ...File) (int, error) {
	for _, f := range files {
		if !IsImage(f) {
			s.reason = "only image files are allowed"
			return 0, models.NewValidationError("images", s.reason)
		}
	}

	room := MaxImages - len(s.files)
	if len(files) > room {
		if room < 0 {
			room = 0
		}
		s.files = append(s.files, files[:room]...)
		s.reason = fmt.Sprintf("only %d more images can be added; at most %d are allowed", room, MaxImages)
		return room, models.NewValidationError("images", s.reason)
	}

	s.files = append(s.files, files...)
	s.reason = ""
	return len(files), nil
}

// Remove drops the image at index i.
func (s *ImageSet) Remove(i int) error {
	if i < 0 || i >= len(s.files) {
		return fmt.Errorf("image index %d out of range", i)
	}
	s.files = append(s.files[:i], s.files[i+1:]...)
	if len(s.files) == 0 {
		s.reason = "at least one image is required"
	} else {
		s.reason = ""
	}
	return nil
}

func (s *ImageSet) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

func (s *ImageSet) Len() int {
	return len(s.files)
}

func (s *ImageSet) Reason() string {
	return s.reason
}

// Validate reports whether the selection may be submitted.
func (s *ImageSet) Validate() error {
	return ValidateImages(s.files)
}

// Selection is the complete set of inputs for one job: images plus either
// an audio track or an explicit no-audio declaration.
type Selection struct {
	Images ImageSet

	audio      *File
	noAudio    bool
	transition *int
}

// SelectAudio replaces the audio track and clears the no-audio declaration.
func (s *Selection) SelectAudio(f File) error {
	if err := ValidateAudio(f); err != nil {
		return err
	}
	s.audio = &f
	s.DeclareNoAudio(false)
	return nil
}

func (s *Selection) RemoveAudio() {
	s.audio = nil
}

// DeclareNoAudio toggles no-audio mode. Turning it on defaults the
// transition duration, turning it off clears it.
func (s *Selection) DeclareNoAudio(on bool) {
	s.noAudio = on
	if !on {
		s.transition = nil
		return
	}
	if s.transition == nil {
		secs := DefaultTransitionSeconds
		s.transition = &secs
	}
}

// SetTransition sets the per-image duration used in no-audio mode.
func (s *Selection) SetTransition(seconds int) error {
	if seconds < 1 {
		return models.NewValidationError("duracionTransicion", "transition duration must be at least 1 second")
	}
	s.transition = &seconds
	return nil
}

func (s *Selection) Audio() *File {
	return s.audio
}

func (s *Selection) NoAudio() bool {
	return s.noAudio
}

func (s *Selection) Transition() *int {
	if s.transition == nil {
		return nil
	}
	secs := *s.transition
	return &secs
}

// Validate checks the image list and that exactly one of an audio track or
// the no-audio declaration is present.
func (s *Selection) Validate() error {
	if err := s.Images.Validate(); err != nil {
		return err
	}
	switch {
	case s.audio == nil && !s.noAudio:
		return models.NewValidationError("audio", "select an audio file or declare the video has no audio")
	case s.audio != nil && s.noAudio:
		return models.NewValidationError("audio", "an audio file cannot be combined with the no-audio declaration")
	}
	return nil
}
