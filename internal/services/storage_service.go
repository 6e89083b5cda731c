package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"video-studio/internal/models"
	"video-studio/internal/storage"
	"video-studio/internal/supabase"
)

// VideoStore is the persistence the publish step needs.
type VideoStore interface {
	MarkVideoCompleted(ctx context.Context, id int64, outputKey, outputFilename string) error
	MarkVideoFailed(ctx context.Context, id int64, errorMsg string) error
	ReleaseCredit(ctx context.Context, login string) error
}

// EventPublisher appends job events to the event feed.
type EventPublisher interface {
	Publish(ctx context.Context, videoID int64, event string, payload map[string]interface{}) error
}

// Output is a finished render ready to be published.
type Output struct {
	VideoID  int64
	Login    string
	Key      string
	Filename string
	Format   models.Format
	Data     []byte
}

// StorageService moves rendered videos into the artifact store and records
// the outcome of each job.
type StorageService struct {
	artifacts storage.Artifacts
	videos    VideoStore
	events    EventPublisher
	logger    zerolog.Logger
}

// NewStorageService wires the publish step. events may be nil.
func NewStorageService(artifacts storage.Artifacts, videos VideoStore, events EventPublisher, logger zerolog.Logger) *StorageService {
	return &StorageService{
		artifacts: artifacts,
		videos:    videos,
		events:    events,
		logger:    logger,
	}
}

func (s *StorageService) HandleRenderStarted(ctx context.Context, videoID int64, imageCount int) {
	s.publish(ctx, videoID, supabase.EventProcessingStarted,
		supabase.ProcessingStartedPayload(videoID, imageCount))
}

// HandleRenderCompleted uploads the output and marks the job completed. The
// owner's credit was reserved when the job was accepted.
func (s *StorageService) HandleRenderCompleted(ctx context.Context, out Output) error {
	key, err := s.artifacts.Put(ctx, out.Key, out.Data, out.Format.ContentType())
	if err != nil {
		return fmt.Errorf("failed to upload video %d: %w", out.VideoID, err)
	}

	if err := s.videos.MarkVideoCompleted(ctx, out.VideoID, key, out.Filename); err != nil {
		return fmt.Errorf("failed to mark video %d completed: %w", out.VideoID, err)
	}

	s.logger.Info().
		Int64("video_id", out.VideoID).
		Str("key", key).
		Int("size", len(out.Data)).
		Msg("video published")

	s.publish(ctx, out.VideoID, supabase.EventProcessingCompleted,
		supabase.ProcessingCompletedPayload(out.VideoID, out.Filename))
	return nil
}

// HandleRenderFailed marks the job failed, refunds the owner's reserved
// credit and emits the failure event.
func (s *StorageService) HandleRenderFailed(ctx context.Context, videoID int64, login, errorMsg string) {
	if err := s.videos.MarkVideoFailed(ctx, videoID, errorMsg); err != nil {
		s.logger.Error().Err(err).Int64("video_id", videoID).Msg("failed to mark video failed")
	}
	if err := s.videos.ReleaseCredit(ctx, login); err != nil {
		s.logger.Error().Err(err).Int64("video_id", videoID).Str("login", login).Msg("failed to release credit")
	}
	s.publish(ctx, videoID, supabase.EventProcessingFailed,
		supabase.ProcessingFailedPayload(videoID, errorMsg))
}

func (s *StorageService) publish(ctx context.Context, videoID int64, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, videoID, event, payload); err != nil {
		s.logger.Warn().Err(err).Int64("video_id", videoID).Str("event", event).Msg("failed to publish event")
	}
}
