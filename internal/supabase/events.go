package supabase

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

const (
	EventProcessingStarted   = "processing_started"
	EventProcessingCompleted = "processing_completed"
	EventProcessingFailed    = "processing_failed"

	eventsTable = "video_events"
)

// EventFeed appends job events to the video_events table. Subscribers pick
// them up through Supabase Realtime.
type EventFeed struct {
	client *supabase.Client
}

func NewEventFeed(client *supabase.Client) *EventFeed {
	return &EventFeed{client: client}
}

type eventRow struct {
	VideoID int64                  `json:"video_id"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

func (f *EventFeed) Publish(ctx context.Context, videoID int64, event string, payload map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := eventRow{VideoID: videoID, Event: event, Payload: payload}
	if _, _, err := f.client.From(eventsTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to publish %s for video %d: %w", event, videoID, err)
	}
	return nil
}

// Event payloads
func ProcessingStartedPayload(videoID int64, imageCount int) map[string]interface{} {
	return map[string]interface{}{
		"video_id":    videoID,
		"status":      "EN_PROCESO",
		"image_count": imageCount,
	}
}

func ProcessingCompletedPayload(videoID int64, outputFilename string) map[string]interface{} {
	return map[string]interface{}{
		"video_id":        videoID,
		"status":          "COMPLETADO",
		"output_filename": outputFilename,
	}
}

func ProcessingFailedPayload(videoID int64, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"video_id": videoID,
		"status":   "ERROR",
		"error":    errorMsg,
	}
}
