package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"video-studio/internal/credits"
	"video-studio/internal/models"
	"video-studio/internal/upload"
)

// Phase is the lifecycle state of the controller.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseValidating Phase = "VALIDATING"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseProcessing Phase = "PROCESSING"
	PhaseDone       Phase = "DONE"
	PhaseFailed     Phase = "FAILED"
)

const MessageSaving = "Saving video..."

// CreditLoader is satisfied by *credits.Gate.
type CreditLoader interface {
	Load(ctx context.Context) credits.Result
}

// SessionStarter is satisfied by *Poller.
type SessionStarter interface {
	Start(ctx context.Context, videoID int64, hooks SessionHooks) *Session
}

// Downloader is satisfied by *download.Coordinator.
type Downloader interface {
	Download(ctx context.Context, id int64, fallbackName string) (string, error)
}

// Hooks are invoked outside the controller lock. OnProgress fires on every
// observed status while processing.
type Hooks struct {
	OnProgress func(State)
	OnSuccess  func(State)
	OnError    func(State)
}

// State is a point-in-time view of the controller.
type State struct {
	Phase          Phase
	FormEnabled    bool
	Processing     bool
	Message        string
	Credits        credits.Result
	VideoID        int64
	Video          *models.Video
	DownloadURL    string
	OutputFilename string
	Err            error
}

// Controller drives one video through credit check, validation,
// submission, polling and download.
type Controller struct {
	credits    CreditLoader
	submitter  *Submitter
	poller     SessionStarter
	downloader Downloader
	logger     zerolog.Logger
	hooks      Hooks

	mu             sync.Mutex
	phase          Phase
	formEnabled    bool
	processing     bool
	message        string
	creditResult   credits.Result
	existingID     int64
	fields         models.Video
	selection      upload.Selection
	session        *Session
	sessionSeq     int
	settled        chan struct{}
	video          *models.Video
	videoID        int64
	downloadURL    string
	outputFilename string
	lastErr        error
	closed         bool
}

func NewController(loader CreditLoader, submitter *Submitter, poller SessionStarter, downloader Downloader, logger zerolog.Logger, hooks Hooks) *Controller {
	return &Controller{
		credits:    loader,
		submitter:  submitter,
		poller:     poller,
		downloader: downloader,
		logger:     logger,
		hooks:      hooks,
		phase:      PhaseIdle,
		fields:     models.Video{Format: models.FormatMP4},
	}
}

// Activate loads the caller's credits. The form is enabled only when the
// caller has capacity. It is meant to run once per activation.
func (c *Controller) Activate(ctx context.Context) credits.Result {
	result := c.credits.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.creditResult = result
	c.formEnabled = result.HasCapacity() && !c.processing
	if err := result.Error(); err != nil {
		c.lastErr = err
	}
	return result
}

// Edit switches the controller to the update path for an existing video.
func (c *Controller) Edit(existing models.Video) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.existingID = existing.ID
	c.fields = existing
	c.selection = upload.Selection{}
	if existing.TransitionSeconds != nil && !existing.HasAudio {
		c.selection.DeclareNoAudio(true)
		if err := c.selection.SetTransition(*existing.TransitionSeconds); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) SetTitle(title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.fields.Title = title
	return nil
}

func (c *Controller) SetFormat(format models.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.fields.Format = format
	return nil
}

// AddImages appends images and returns how many were accepted.
func (c *Controller) AddImages(files ...upload.File) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return 0, err
	}
	return c.selection.Images.Add(files...)
}

func (c *Controller) RemoveImage(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	return c.selection.Images.Remove(i)
}

func (c *Controller) SelectAudio(f upload.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	return c.selection.SelectAudio(f)
}

func (c *Controller) RemoveAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.selection.RemoveAudio()
	return nil
}

func (c *Controller) DeclareNoAudio(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.selection.DeclareNoAudio(on)
	return nil
}

func (c *Controller) SetTransition(seconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	return c.selection.SetTransition(seconds)
}

// Submit validates the selection and saves the job. On the create path it
// returns once the backend accepted the job and polling has started; use
// Wait to block until the job settles.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	if c.processing {
		c.mu.Unlock()
		return models.ErrBusy
	}
	if err := c.creditResult.Error(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.phase = PhaseValidating
	c.lastErr = nil
	if err := c.selection.Validate(); err != nil {
		c.failLocked(err)
		state := c.stateLocked()
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("video validation failed")
		c.emit(c.hooks.OnError, state)
		return err
	}

	fields := c.fields
	fields.HasAudio = c.selection.Audio() != nil
	fields.TransitionSeconds = c.selection.Transition()
	if fields.HasAudio {
		fields.AudioFilename = c.selection.Audio().Name
	}
	images := c.selection.Images.Files()
	audio := c.selection.Audio()
	existingID := c.existingID

	c.phase = PhaseSubmitting
	c.formEnabled = false
	c.processing = true
	c.message = MessageSaving
	c.settled = make(chan struct{})
	c.mu.Unlock()

	submission, err := c.submitter.Submit(ctx, existingID, fields, images, audio)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	if err != nil {
		c.failLocked(err)
		state := c.stateLocked()
		c.mu.Unlock()
		c.logger.Error().Err(err).Int64("video_id", existingID).Msg("video submission failed")
		c.emit(c.hooks.OnError, state)
		return err
	}

	c.video = submission.Video
	if !submission.Accepted {
		c.phase = PhaseDone
		c.message = ""
		c.finalizeLocked()
		state := c.stateLocked()
		c.mu.Unlock()
		c.emit(c.hooks.OnSuccess, state)
		return nil
	}

	id := submission.Video.ID
	c.videoID = id
	c.downloadURL = ""
	c.outputFilename = ""
	c.phase = PhaseProcessing
	c.message = MessageGenerating
	c.sessionSeq++
	seq := c.sessionSeq
	c.session = c.poller.Start(context.WithoutCancel(ctx), id, SessionHooks{
		OnProgress: func(r PollResult) { c.onPollProgress(seq, r) },
		OnTerminal: func(r PollResult) { c.onPollTerminal(seq, r) },
	})
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(c.hooks.OnProgress, state)
	return nil
}

// Wait blocks until the current job settles in DONE or FAILED, the
// controller is torn down, or ctx ends.
func (c *Controller) Wait(ctx context.Context) (State, error) {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()

	if settled != nil {
		select {
		case <-settled:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.stateLocked(), models.ErrClosed
	}
	return c.stateLocked(), c.lastErr
}

// Download saves the artifact of the completed job.
func (c *Controller) Download(ctx context.Context) (string, error) {
	c.mu.Lock()
	id, name, ready := c.videoID, c.outputFilename, c.phase == PhaseDone && c.downloadURL != ""
	c.mu.Unlock()

	if !ready || id == 0 {
		return "", fmt.Errorf("%w: no completed video to download", models.ErrDownload)
	}
	return c.downloader.Download(ctx, id, name)
}

// Teardown stops any polling session without invoking hooks. It is safe to
// call more than once.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopSessionLocked()
	c.settleLocked()
	c.logger.Debug().Str("phase", string(c.phase)).Msg("controller torn down")
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) onPollProgress(seq int, r PollResult) {
	c.mu.Lock()
	if c.closed || seq != c.sessionSeq || c.phase != PhaseProcessing {
		c.mu.Unlock()
		return
	}
	c.video = r.Video
	c.message = r.Message
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(c.hooks.OnProgress, state)
}

func (c *Controller) onPollTerminal(seq int, r PollResult) {
	c.mu.Lock()
	if c.closed || seq != c.sessionSeq || c.phase != PhaseProcessing {
		c.mu.Unlock()
		return
	}
	if r.Video != nil {
		c.video = r.Video
	}
	c.message = r.Message

	hook := c.hooks.OnError
	if r.State == PollCompleted {
		c.phase = PhaseDone
		c.downloadURL = r.DownloadURL
		c.outputFilename = r.OutputFilename
		hook = c.hooks.OnSuccess
		c.finalizeLocked()
		c.logger.Info().Int64("video_id", r.VideoID).Str("download_url", r.DownloadURL).Msg("video ready")
	} else {
		c.failLocked(r.Err)
		c.logger.Error().Err(r.Err).Int64("video_id", r.VideoID).Str("state", string(r.State)).Msg("video generation failed")
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(hook, state)
}

func (c *Controller) failLocked(err error) {
	c.phase = PhaseFailed
	c.lastErr = err
	c.finalizeLocked()
}

// finalizeLocked restores the form after DONE or FAILED. Idempotent.
func (c *Controller) finalizeLocked() {
	c.formEnabled = true
	c.processing = false
	c.stopSessionLocked()
	c.settleLocked()
}

func (c *Controller) stopSessionLocked() {
	if c.session != nil {
		c.session.Stop()
		c.session = nil
	}
}

func (c *Controller) settleLocked() {
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

// editableLocked rejects form changes while the form is disabled.
func (c *Controller) editableLocked() error {
	switch {
	case c.closed:
		return models.ErrClosed
	case c.processing:
		return models.ErrBusy
	case !c.formEnabled:
		if err := c.creditResult.Error(); err != nil {
			return err
		}
		return models.ErrCreditsUnavailable
	}
	return nil
}

func (c *Controller) stateLocked() State {
	return State{
		Phase:          c.phase,
		FormEnabled:    c.formEnabled,
		Processing:     c.processing,
		Message:        c.message,
		Credits:        c.creditResult,
		VideoID:        c.videoID,
		Video:          c.video,
		DownloadURL:    c.downloadURL,
		OutputFilename: c.outputFilename,
		Err:            c.lastErr,
	}
}

func (c *Controller) emit(hook func(State), state State) {
	if hook != nil {
		hook(state)
	}
}
