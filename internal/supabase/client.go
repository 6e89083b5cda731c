package supabase

import (
	"errors"
	"fmt"

	"github.com/supabase-community/supabase-go"
	"video-studio/internal/config"
)

// ConnectEventFeed opens a PostgREST client with the publishable key and
// returns the job event feed backed by it.
func ConnectEventFeed(cfg *config.Config) (*EventFeed, error) {
	if cfg.SupabaseURL == "" || cfg.SupabasePublishableKey == "" {
		return nil, errors.New("supabase url and publishable key are required for the event feed")
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return NewEventFeed(client), nil
}
