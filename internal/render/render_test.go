package render_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-studio/internal/models"
	"video-studio/internal/render"
	"video-studio/internal/services"
	"video-studio/internal/storage"
)

func TestClient_GenerateWithAudio(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate_video/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","video_path":"/out/a.mp4","metadata":{"filename":"a.mp4","images_used":2}}`))
	}))
	defer server.Close()

	client := render.NewClient(server.URL+"/", time.Second)
	resp, err := client.Generate(context.Background(), render.Request{
		ImagesPath:        "/in/images",
		AudioPath:         "/in/audio/song.mp3",
		VideoPath:         "/out/a.mp4",
		TransitionSeconds: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", resp.Metadata.Filename)
	assert.Equal(t, "/out/a.mp4", resp.OutputPath())
	assert.Equal(t, "mp4", got["format"])
	assert.Equal(t, "/in/audio/song.mp3", got["audio_path"])
	assert.NotContains(t, got, "transicion_segundos")
}

func TestClient_GenerateWithoutAudio(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate_video_whitout/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","video_path":"/out/b.webm","metadata":{"full_path":"/out/b.webm"}}`))
	}))
	defer server.Close()

	client := render.NewClient(server.URL, time.Second)
	_, err := client.Generate(context.Background(), render.Request{
		ImagesPath: "/in/images",
		VideoPath:  "/out/b.webm",
		Format:     "webm",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(render.DefaultTransitionSeconds), got["transicion_segundos"])
	assert.Equal(t, "webm", got["format"])
	assert.NotContains(t, got, "audio_path")
}

func TestClient_GenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"ffmpeg crashed"}`))
	}))
	defer server.Close()

	client := render.NewClient(server.URL, time.Second)
	_, err := client.Generate(context.Background(), render.Request{ImagesPath: "/in", VideoPath: "/out/c.mp4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "ffmpeg crashed")
}

type fakeRenderer struct {
	mu       sync.Mutex
	requests []render.Request
	err      error
	block    chan struct{}
	running  atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRenderer) Generate(ctx context.Context, req render.Request) (*render.Response, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(req.VideoPath, []byte("rendered"), 0o644); err != nil {
		return nil, err
	}
	return &render.Response{
		Status:    "success",
		VideoPath: req.VideoPath,
		Metadata:  render.Metadata{Filename: filepath.Base(req.VideoPath)},
	}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	started   []int64
	completed []services.Output
	failed    map[int64]string
	refunded  []string
}

func (p *fakePublisher) HandleRenderStarted(ctx context.Context, videoID int64, imageCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, videoID)
}

func (p *fakePublisher) HandleRenderCompleted(ctx context.Context, out services.Output) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, out)
	return nil
}

func (p *fakePublisher) HandleRenderFailed(ctx context.Context, videoID int64, login, errorMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed == nil {
		p.failed = make(map[int64]string)
	}
	p.failed[videoID] = errorMsg
	p.refunded = append(p.refunded, login)
}

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleJob(id int64) render.Job {
	return render.Job{
		VideoID: id,
		Login:   "alice",
		Title:   "my holiday",
		Format:  models.FormatMP4,
		Images: []render.Input{
			{Name: "b.jpg", Data: []byte("b")},
			{Name: "../a.png", Data: []byte("a")},
		},
		Audio: &render.Input{Name: "song.mp3", Data: []byte("audio")},
	}
}

func TestWorker_RendersAndPublishes(t *testing.T) {
	store := newStore(t)
	renderer := &fakeRenderer{}
	publisher := &fakePublisher{}
	worker := render.NewWorker(renderer, store, publisher, 2, time.Minute, zerolog.Nop())

	require.NoError(t, worker.Enqueue(sampleJob(7)))
	worker.Wait()

	require.Len(t, publisher.completed, 1)
	out := publisher.completed[0]
	assert.Equal(t, int64(7), out.VideoID)
	assert.Equal(t, "alice", out.Login)
	assert.Equal(t, "my_holiday.mp4", out.Filename)
	assert.Equal(t, "outputs/7/my_holiday.mp4", out.Key)
	assert.Equal(t, []byte("rendered"), out.Data)
	assert.Equal(t, []int64{7}, publisher.started)
	assert.Empty(t, publisher.failed)

	require.Len(t, renderer.requests, 1)
	req := renderer.requests[0]
	assert.NotEmpty(t, req.AudioPath)
	assert.Equal(t, "mp4", req.Format)

	// staged inputs are removed once the job settles
	_, err := os.Stat(filepath.Join(store.BasePath(), "staging", "7"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorker_StagesInputsInOrder(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	renderer := &fakeRenderer{block: release}
	worker := render.NewWorker(renderer, store, &fakePublisher{}, 1, time.Minute, zerolog.Nop())

	job := sampleJob(3)
	job.Audio = nil
	job.TransitionSeconds = 4
	require.NoError(t, worker.Enqueue(job))

	require.Eventually(t, func() bool { return renderer.running.Load() == 1 }, time.Second, 5*time.Millisecond)
	entries, err := os.ReadDir(filepath.Join(store.BasePath(), "staging", "3", "images"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00-b.jpg", entries[0].Name())
	assert.Equal(t, "01-a.png", entries[1].Name())

	close(release)
	worker.Wait()

	require.Len(t, renderer.requests, 1)
	assert.Empty(t, renderer.requests[0].AudioPath)
	assert.Equal(t, 4, renderer.requests[0].TransitionSeconds)
}

func TestWorker_RendererFailureMarksJobFailed(t *testing.T) {
	store := newStore(t)
	publisher := &fakePublisher{}
	worker := render.NewWorker(&fakeRenderer{err: errors.New("failed to generate video: status 500")}, store, publisher, 1, time.Minute, zerolog.Nop())

	require.NoError(t, worker.Enqueue(sampleJob(9)))
	worker.Wait()

	assert.Empty(t, publisher.completed)
	assert.Contains(t, publisher.failed[9], "status 500")
	assert.Equal(t, []string{"alice"}, publisher.refunded)
	_, err := os.Stat(filepath.Join(store.BasePath(), "staging", "9"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorker_Timeout(t *testing.T) {
	publisher := &fakePublisher{}
	renderer := &fakeRenderer{block: make(chan struct{})}
	worker := render.NewWorker(renderer, newStore(t), publisher, 1, 20*time.Millisecond, zerolog.Nop())

	require.NoError(t, worker.Enqueue(sampleJob(4)))
	worker.Wait()

	assert.Contains(t, publisher.failed[4], "timed out")
}

func TestWorker_BoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	renderer := &fakeRenderer{block: release}
	publisher := &fakePublisher{}
	worker := render.NewWorker(renderer, newStore(t), publisher, 2, time.Minute, zerolog.Nop())

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, worker.Enqueue(sampleJob(id)))
	}
	require.Eventually(t, func() bool { return renderer.running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	worker.Wait()

	assert.Equal(t, int32(2), renderer.peak.Load())
	assert.Len(t, publisher.completed, 5)
}

func TestWorker_RejectsAfterClose(t *testing.T) {
	worker := render.NewWorker(&fakeRenderer{}, newStore(t), &fakePublisher{}, 1, time.Minute, zerolog.Nop())
	worker.Close()

	err := worker.Enqueue(sampleJob(1))
	assert.ErrorIs(t, err, models.ErrClosed)
}

func TestWorker_RejectsEmptyJob(t *testing.T) {
	worker := render.NewWorker(&fakeRenderer{}, newStore(t), &fakePublisher{}, 1, time.Minute, zerolog.Nop())

	err := worker.Enqueue(render.Job{VideoID: 1})
	assert.ErrorIs(t, err, models.ErrValidation)
}
