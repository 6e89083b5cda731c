package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-studio/internal/middleware"
	"video-studio/internal/models"
	"video-studio/internal/render"
	"video-studio/internal/storage"
	"video-studio/internal/upload"
)

const maxMultipartMemory = 32 << 20

// VideoStore is the persistence used by the video endpoints.
type VideoStore interface {
	CreateVideo(ctx context.Context, rec *models.VideoRecord) error
	GetVideo(ctx context.Context, id int64, login string) (*models.VideoRecord, error)
	UpdateVideo(ctx context.Context, rec *models.VideoRecord) error
	MarkVideoProcessing(ctx context.Context, id int64) error
	MarkVideoFailed(ctx context.Context, id int64, errorMsg string) error
	MarkVideoDownloaded(ctx context.Context, id int64, at time.Time) error
}

// CreditStore reads and reserves user quotas. ReserveCredit charges one
// video up front and fails with models.ErrNoCredits when the quota is used
// up; ReleaseCredit refunds a reservation whose render never started.
type CreditStore interface {
	GetCredits(ctx context.Context, login string) (*models.CreditRecord, error)
	ReserveCredit(ctx context.Context, login string) error
	ReleaseCredit(ctx context.Context, login string) error
}

// RenderQueue accepts render jobs.
type RenderQueue interface {
	Enqueue(job render.Job) error
}

type VideosHandler struct {
	videos    VideoStore
	credits   CreditStore
	queue     RenderQueue
	artifacts storage.Artifacts
	logger    zerolog.Logger
}

func NewVideosHandler(videos VideoStore, credits CreditStore, queue RenderQueue, artifacts storage.Artifacts, logger zerolog.Logger) *VideosHandler {
	return &VideosHandler{
		videos:    videos,
		credits:   credits,
		queue:     queue,
		artifacts: artifacts,
		logger:    logger,
	}
}

// CreateVideo godoc
// @Summary     Create a video
// @Description Accepts 1 to 10 images and an optional audio track and queues the render.
// @Description Without audio, duracionTransicion sets the seconds shown per image.
// @Tags        videos
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       video  formData string true  "Video JSON (titulo, formato, duracionTransicion)"
// @Param       images formData file   true  "Images (1 to 10)"
// @Param       audio  formData file   false "Audio track (MP3, WAV, OGG, M4A; 50MB max)"
// @Success     202 {object} models.Video
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /api/videos [post]
func (h *VideosHandler) CreateVideo(c *gin.Context) {
	login := middleware.UserLogin(c)
	ctx := c.Request.Context()

	body, form, ok := h.parseForm(c)
	if !ok {
		return
	}
	if body.ID != 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "id exists",
			Message: "a new video cannot already have an id",
		})
		return
	}

	inputs, ok := h.readInputs(c, form)
	if !ok {
		return
	}
	if inputs.images == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Message: "at least one image is required"})
		return
	}

	format, err := models.ParseFormat(string(body.Format))
	if err != nil {
		badRequest(c, err)
		return
	}

	rec := &models.VideoRecord{
		Title:      "video-" + uuid.New().String()[:8],
		HasAudio:   inputs.audio != nil,
		Status:     models.StatusInProgress,
		Format:     format,
		OwnerLogin: login,
	}
	if inputs.audio != nil {
		rec.AudioFilename.String, rec.AudioFilename.Valid = inputs.audio.Name, true
	} else if body.TransitionSeconds != nil {
		if *body.TransitionSeconds < 1 {
			badRequest(c, models.NewValidationError("duracionTransicion", "transition must be at least 1 second"))
			return
		}
		rec.TransitionSeconds.Int64, rec.TransitionSeconds.Valid = int64(*body.TransitionSeconds), true
	}

	if !h.reserveCredit(c, login) {
		return
	}
	if err := h.videos.CreateVideo(ctx, rec); err != nil {
		h.releaseCredit(c, login)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create video", Message: err.Error()})
		return
	}

	if !h.enqueue(c, rec, inputs) {
		return
	}

	h.logger.Info().Int64("video_id", rec.ID).Str("login", login).Int("images", len(inputs.images)).Msg("video accepted")
	c.JSON(http.StatusAccepted, rec.Snapshot())
}

// UpdateVideo godoc
// @Summary     Update a video
// @Description Updates title, format and transition. Sending images replaces the inputs and renders the video again.
// @Tags        videos
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       id     path     int    true  "Video ID"
// @Param       video  formData string true  "Video JSON"
// @Param       images formData file   false "Replacement images (1 to 10)"
// @Param       audio  formData file   false "Replacement audio track"
// @Success     200 {object} models.Video
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /api/videos/{id} [put]
func (h *VideosHandler) UpdateVideo(c *gin.Context) {
	login := middleware.UserLogin(c)
	ctx := c.Request.Context()

	id, ok := videoID(c)
	if !ok {
		return
	}
	body, form, ok := h.parseForm(c)
	if !ok {
		return
	}
	if body.ID != 0 && body.ID != id {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid id", Message: "body id does not match path id"})
		return
	}

	rec, ok := h.loadVideo(c, id, login)
	if !ok {
		return
	}

	if body.Title != "" {
		rec.Title = body.Title
	}
	if body.Format != "" {
		format, err := models.ParseFormat(string(body.Format))
		if err != nil {
			badRequest(c, err)
			return
		}
		rec.Format = format
	}
	if body.TransitionSeconds != nil {
		if *body.TransitionSeconds < 1 {
			badRequest(c, models.NewValidationError("duracionTransicion", "transition must be at least 1 second"))
			return
		}
		rec.TransitionSeconds.Int64, rec.TransitionSeconds.Valid = int64(*body.TransitionSeconds), true
	}

	inputs, ok := h.readInputs(c, form)
	if !ok {
		return
	}
	rerender := inputs.images != nil
	if !rerender && inputs.audio != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Message: "images are required to replace the audio track"})
		return
	}
	if rerender {
		if rec.Status == models.StatusInProgress {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "video is being rendered"})
			return
		}
		rec.HasAudio = inputs.audio != nil
		rec.AudioFilename.Valid = inputs.audio != nil
		rec.AudioFilename.String = ""
		if inputs.audio != nil {
			rec.AudioFilename.String = inputs.audio.Name
		}
	}

	if rerender && !h.reserveCredit(c, login) {
		return
	}
	if err := h.videos.UpdateVideo(ctx, rec); err != nil {
		if rerender {
			h.releaseCredit(c, login)
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update video", Message: err.Error()})
		return
	}

	if rerender {
		if err := h.videos.MarkVideoProcessing(ctx, rec.ID); err != nil {
			h.releaseCredit(c, login)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update video", Message: err.Error()})
			return
		}
		rec.Status = models.StatusInProgress
		rec.OutputKey.Valid, rec.OutputFilename.Valid = false, false
		if !h.enqueue(c, rec, inputs) {
			return
		}
	}

	c.JSON(http.StatusOK, rec.Snapshot())
}

// GetVideoStatus godoc
// @Summary     Get video status
// @Description Returns the current snapshot. downloadUrl is set once the video is COMPLETADO.
// @Tags        videos
// @Produce     json
// @Security    Bearer
// @Param       id path int true "Video ID"
// @Success     200 {object} models.Video
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/videos/{id}/status [get]
func (h *VideosHandler) GetVideoStatus(c *gin.Context) {
	id, ok := videoID(c)
	if !ok {
		return
	}
	rec, ok := h.loadVideo(c, id, middleware.UserLogin(c))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec.Snapshot())
}

// DownloadVideo godoc
// @Summary     Download a rendered video
// @Description Streams the rendered file as an attachment and records the download time.
// @Tags        videos
// @Produce     octet-stream
// @Security    Bearer
// @Param       id path int true "Video ID"
// @Success     200 {file} binary
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /api/videos/{id}/download [get]
func (h *VideosHandler) DownloadVideo(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := videoID(c)
	if !ok {
		return
	}
	rec, ok := h.loadVideo(c, id, middleware.UserLogin(c))
	if !ok {
		return
	}
	if rec.Status != models.StatusCompleted || !rec.OutputKey.Valid {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "video not ready",
			Message: fmt.Sprintf("video %d is %s", id, rec.Status),
		})
		return
	}

	data, err := h.artifacts.Get(ctx, rec.OutputKey.String)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "video file not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to read video", Message: err.Error()})
		return
	}

	if err := h.videos.MarkVideoDownloaded(ctx, id, time.Now().UTC()); err != nil {
		h.logger.Warn().Err(err).Int64("video_id", id).Msg("failed to record download")
	}

	filename := rec.OutputFilename.String
	if filename == "" {
		filename = fmt.Sprintf("%s.%s", rec.Title, rec.Format.Extension())
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, rec.Format.ContentType(), data)
}

type videoInputs struct {
	images []render.Input
	audio  *render.Input
}

func (h *VideosHandler) parseForm(c *gin.Context) (*models.Video, *multipart.Form, bool) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return nil, nil, false
	}
	form := c.Request.MultipartForm

	var body models.Video
	if raw := form.Value["video"]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), &body); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid video payload", Message: err.Error()})
			return nil, nil, false
		}
	}
	return &body, form, true
}

// readInputs validates and loads the uploaded files. images is nil when
// none were sent.
func (h *VideosHandler) readInputs(c *gin.Context, form *multipart.Form) (videoInputs, bool) {
	var in videoInputs

	if headers := form.File["images"]; len(headers) > 0 {
		files := make([]upload.File, 0, len(headers))
		for _, fh := range headers {
			f, err := upload.FromMultipart(fh)
			if err != nil {
				badRequest(c, err)
				return in, false
			}
			files = append(files, f)
		}
		if err := upload.ValidateImages(files); err != nil {
			badRequest(c, err)
			return in, false
		}
		for _, f := range files {
			data, err := f.ReadAll()
			if err != nil {
				badRequest(c, err)
				return in, false
			}
			in.images = append(in.images, render.Input{Name: f.Name, Data: data})
		}
	}

	if headers := form.File["audio"]; len(headers) > 0 {
		f, err := upload.FromMultipart(headers[0])
		if err != nil {
			badRequest(c, err)
			return in, false
		}
		if err := upload.ValidateAudio(f); err != nil {
			badRequest(c, err)
			return in, false
		}
		data, err := f.ReadAll()
		if err != nil {
			badRequest(c, err)
			return in, false
		}
		in.audio = &render.Input{Name: f.Name, Data: data}
	}
	return in, true
}

// reserveCredit charges the caller one video before a render is queued, so
// renders still in flight count against the quota.
func (h *VideosHandler) reserveCredit(c *gin.Context, login string) bool {
	err := h.credits.ReserveCredit(c.Request.Context(), login)
	if errors.Is(err, models.ErrNoCredits) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "no credits", Message: "video credits exhausted"})
		return false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to reserve credit", Message: err.Error()})
		return false
	}
	return true
}

func (h *VideosHandler) releaseCredit(c *gin.Context, login string) {
	if err := h.credits.ReleaseCredit(context.WithoutCancel(c.Request.Context()), login); err != nil {
		h.logger.Error().Err(err).Str("login", login).Msg("failed to release credit")
	}
}

func (h *VideosHandler) enqueue(c *gin.Context, rec *models.VideoRecord, in videoInputs) bool {
	job := render.Job{
		VideoID: rec.ID,
		Login:   rec.OwnerLogin,
		Title:   rec.Title,
		Format:  rec.Format,
		Images:  in.images,
		Audio:   in.audio,
	}
	if rec.TransitionSeconds.Valid {
		job.TransitionSeconds = int(rec.TransitionSeconds.Int64)
	}
	if err := h.queue.Enqueue(job); err != nil {
		if markErr := h.videos.MarkVideoFailed(context.WithoutCancel(c.Request.Context()), rec.ID, err.Error()); markErr != nil {
			h.logger.Error().Err(markErr).Int64("video_id", rec.ID).Msg("failed to mark video failed")
		}
		h.releaseCredit(c, rec.OwnerLogin)
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "render queue unavailable", Message: err.Error()})
		return false
	}
	return true
}

func (h *VideosHandler) loadVideo(c *gin.Context, id int64, login string) (*models.VideoRecord, bool) {
	rec, err := h.videos.GetVideo(c.Request.Context(), id, login)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "video not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get video", Message: err.Error()})
		return nil, false
	}
	return rec, true
}

func videoID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid video id"})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Message: verr.Reason})
		return
	}
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid upload", Message: err.Error()})
}
