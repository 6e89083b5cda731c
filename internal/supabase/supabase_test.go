package supabase_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-studio/internal/config"
	"video-studio/internal/storage"
	"video-studio/internal/supabase"
)

var _ storage.Artifacts = (*supabase.StorageClient)(nil)

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://project.supabase.co/", "key", "videos")
	require.NoError(t, err)

	assert.Equal(t,
		"https://project.supabase.co/storage/v1/object/public/videos/videos/3/clip.mp4",
		client.GetPublicURL("videos/3/clip.mp4"))
}

func TestStorageClient_RequiresURL(t *testing.T) {
	_, err := supabase.NewStorageClient("", "key", "videos")
	assert.Error(t, err)
}

func TestConnectEventFeed_RequiresCredentials(t *testing.T) {
	_, err := supabase.ConnectEventFeed(&config.Config{})
	assert.Error(t, err)

	_, err = supabase.ConnectEventFeed(&config.Config{SupabaseURL: "https://project.supabase.co"})
	assert.ErrorContains(t, err, "publishable key")
}

func TestEventFeed_PublishInsertsRow(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/video_events", r.URL.Path)
		assert.Equal(t, "publishable-key", r.Header.Get("apikey"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	feed, err := supabase.ConnectEventFeed(&config.Config{SupabaseURL: server.URL, SupabasePublishableKey: "publishable-key"})
	require.NoError(t, err)

	err = feed.Publish(context.Background(), 12, supabase.EventProcessingCompleted, supabase.ProcessingCompletedPayload(12, "clip.mp4"))
	require.NoError(t, err)

	assert.Equal(t, float64(12), got["video_id"])
	assert.Equal(t, "processing_completed", got["event"])
	payload := got["payload"].(map[string]interface{})
	assert.Equal(t, "COMPLETADO", payload["status"])
	assert.Equal(t, "clip.mp4", payload["output_filename"])
}

func TestEventFeed_PublishError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"42P01","message":"relation does not exist"}`))
	}))
	defer server.Close()

	feed, err := supabase.ConnectEventFeed(&config.Config{SupabaseURL: server.URL, SupabasePublishableKey: "k"})
	require.NoError(t, err)

	err = feed.Publish(context.Background(), 1, supabase.EventProcessingFailed, supabase.ProcessingFailedPayload(1, "boom"))
	assert.ErrorContains(t, err, "relation does not exist")
}

func TestPayloads(t *testing.T) {
	assert.Equal(t, 3, supabase.ProcessingStartedPayload(7, 3)["image_count"])
	assert.Equal(t, "boom", supabase.ProcessingFailedPayload(7, "boom")["error"])
}
