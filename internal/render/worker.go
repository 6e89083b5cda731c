package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"video-studio/internal/models"
	"video-studio/internal/services"
	"video-studio/internal/storage"
)

// Renderer produces a video from staged inputs.
type Renderer interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Publisher records the outcome of a render.
type Publisher interface {
	HandleRenderStarted(ctx context.Context, videoID int64, imageCount int)
	HandleRenderCompleted(ctx context.Context, out services.Output) error
	HandleRenderFailed(ctx context.Context, videoID int64, login, errorMsg string)
}

// Input is an uploaded file carried by a job.
type Input struct {
	Name string
	Data []byte
}

// Job is one queued render.
type Job struct {
	VideoID           int64
	Login             string
	Title             string
	Format            models.Format
	TransitionSeconds int
	Images            []Input
	Audio             *Input
}

// Worker renders queued jobs with bounded concurrency.
type Worker struct {
	renderer  Renderer
	staging   *storage.FileStore
	publisher Publisher
	timeout   time.Duration
	logger    zerolog.Logger

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewWorker(renderer Renderer, staging *storage.FileStore, publisher Publisher, workers int, timeout time.Duration, logger zerolog.Logger) *Worker {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		renderer:  renderer,
		staging:   staging,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		sem:       make(chan struct{}, workers),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue schedules job. It returns models.ErrClosed after Close.
func (w *Worker) Enqueue(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return models.ErrClosed
	}
	if len(job.Images) == 0 {
		return models.NewValidationError("images", "at least one image is required")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case w.sem <- struct{}{}:
		case <-w.ctx.Done():
			w.publisher.HandleRenderFailed(context.Background(), job.VideoID, job.Login, "render worker stopped")
			return
		}
		defer func() { <-w.sem }()
		w.process(w.ctx, job)
	}()
	return nil
}

// Wait blocks until every queued job has finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Close stops accepting jobs, aborts running renders and waits for them.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, job Job) {
	log := w.logger.With().Int64("video_id", job.VideoID).Logger()
	prefix := stagingPrefix(job.VideoID)
	defer func() {
		if err := w.staging.RemoveAll(prefix); err != nil {
			log.Warn().Err(err).Msg("failed to clean staged inputs")
		}
	}()

	w.publisher.HandleRenderStarted(ctx, job.VideoID, len(job.Images))
	log.Info().Int("images", len(job.Images)).Bool("audio", job.Audio != nil).Msg("render started")

	out, err := w.render(ctx, job)
	if err == nil {
		err = w.publisher.HandleRenderCompleted(ctx, *out)
	}
	if err != nil {
		log.Error().Err(err).Msg("render failed")
		w.publisher.HandleRenderFailed(context.WithoutCancel(ctx), job.VideoID, job.Login, err.Error())
		return
	}
	log.Info().Str("filename", out.Filename).Msg("render completed")
}

func (w *Worker) render(ctx context.Context, job Job) (*services.Output, error) {
	req, outputKey, err := w.stage(ctx, job)
	if err != nil {
		return nil, err
	}

	renderCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	resp, err := w.renderer.Generate(renderCtx, req)
	if err != nil {
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("render timed out after %s: %w", w.timeout, err)
		}
		return nil, err
	}

	data, err := w.staging.Get(ctx, outputKey)
	if errors.Is(err, models.ErrNotFound) && resp.OutputPath() != req.VideoPath {
		data, err = os.ReadFile(resp.OutputPath())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered video: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("renderer produced an empty video")
	}

	filename := resp.Metadata.Filename
	if filename == "" {
		filename = path.Base(outputKey)
	}
	return &services.Output{
		VideoID:  job.VideoID,
		Login:    job.Login,
		Key:      OutputKey(job.VideoID, filename),
		Filename: filename,
		Format:   job.Format,
		Data:     data,
	}, nil
}

// stage writes the job inputs to the staging store in parallel and
// builds the renderer request.
func (w *Worker) stage(ctx context.Context, job Job) (Request, string, error) {
	prefix := stagingPrefix(job.VideoID)
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range job.Images {
		i, img := i, img
		key := fmt.Sprintf("%s/images/%02d-%s", prefix, i, safeName(img.Name, fmt.Sprintf("image-%02d", i)))
		g.Go(func() error {
			if _, err := w.staging.Write(gctx, key, img.Data); err != nil {
				return fmt.Errorf("failed to stage image %d: %w", i, err)
			}
			return nil
		})
	}
	var audioKey string
	if job.Audio != nil {
		audioKey = fmt.Sprintf("%s/audio/%s", prefix, safeName(job.Audio.Name, "audio"))
		g.Go(func() error {
			if _, err := w.staging.Write(gctx, audioKey, job.Audio.Data); err != nil {
				return fmt.Errorf("failed to stage audio: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Request{}, "", err
	}

	outputKey := fmt.Sprintf("%s/output/%s.%s", prefix, safeName(job.Title, fmt.Sprintf("video-%d", job.VideoID)), job.Format.Extension())

	var req Request
	var err error
	if req.ImagesPath, err = w.staging.Path(prefix + "/images"); err != nil {
		return Request{}, "", err
	}
	if req.VideoPath, err = w.staging.Path(outputKey); err != nil {
		return Request{}, "", err
	}
	if err := os.MkdirAll(filepath.Dir(req.VideoPath), 0o755); err != nil {
		return Request{}, "", fmt.Errorf("failed to prepare output directory: %w", err)
	}
	if audioKey != "" {
		if req.AudioPath, err = w.staging.Path(audioKey); err != nil {
			return Request{}, "", err
		}
	} else {
		req.TransitionSeconds = job.TransitionSeconds
	}
	req.Format = job.Format.Extension()
	return req, outputKey, nil
}

func stagingPrefix(videoID int64) string {
	return fmt.Sprintf("staging/%d", videoID)
}

// OutputKey is the artifact store key of a rendered video.
func OutputKey(videoID int64, filename string) string {
	return fmt.Sprintf("outputs/%d/%s", videoID, safeName(filename, "video"))
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return fallback
	}
	return name
}
