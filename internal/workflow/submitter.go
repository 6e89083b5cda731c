package workflow

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"video-studio/internal/models"
	"video-studio/internal/upload"
	"video-studio/internal/videoapi"
)

// VideoService is the backend surface used to save jobs.
type VideoService interface {
	CreateVideo(ctx context.Context, req videoapi.SaveRequest) (*videoapi.SaveResult, error)
	UpdateVideo(ctx context.Context, id int64, req videoapi.SaveRequest) (*videoapi.SaveResult, error)
}

// Submission is the outcome of a save. Accepted is true only for a new job
// the backend took for asynchronous processing.
type Submission struct {
	Video    *models.Video
	Accepted bool
}

// Submitter sends a job's fields and files to the backend.
type Submitter struct {
	api    VideoService
	logger zerolog.Logger
}

func NewSubmitter(api VideoService, logger zerolog.Logger) *Submitter {
	return &Submitter{api: api, logger: logger}
}

// Submit creates a job when existingID is zero, otherwise updates it. A
// create must be answered with 202 and a body carrying the new id.
func (s *Submitter) Submit(ctx context.Context, existingID int64, fields models.Video, images []upload.File, audio *upload.File) (*Submission, error) {
	req := videoapi.SaveRequest{Video: fields, Images: images, Audio: audio}

	if existingID != 0 {
		result, err := s.api.UpdateVideo(ctx, existingID, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrSubmission, err)
		}
		s.logger.Info().Int64("video_id", existingID).Int("status", result.StatusCode).Msg("video updated")
		return &Submission{Video: result.Video}, nil
	}

	req.Video.ID = 0
	result, err := s.api.CreateVideo(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSubmission, err)
	}
	if result.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("%w: unexpected response status %d", models.ErrSubmission, result.StatusCode)
	}
	if result.Video == nil || result.Video.ID == 0 {
		return nil, fmt.Errorf("%w: response carried no video id", models.ErrSubmission)
	}

	s.logger.Info().Int64("video_id", result.Video.ID).Int("images", len(images)).Bool("audio", audio != nil).Msg("video accepted")
	return &Submission{Video: result.Video, Accepted: true}, nil
}
