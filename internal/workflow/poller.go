package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
	"video-studio/internal/models"
)

const (
	DefaultPollInterval = 3 * time.Second

	MessageGenerating = "Generating video... this may take several minutes"
	MessageCompleted  = "Video generated successfully!"
	MessageFailed     = "Error generating the video"
)

// PollState is the state of a polling session.
type PollState string

const (
	PollPolling   PollState = "POLLING"
	PollCompleted PollState = "COMPLETED"
	PollError     PollState = "ERROR"
	PollCancelled PollState = "CANCELLED"
)

// StatusSource answers status queries. A nil video with a nil error means
// the response carried no body.
type StatusSource interface {
	GetVideoStatus(ctx context.Context, id int64) (*models.Video, error)
}

// PollResult is what a session has observed so far.
type PollResult struct {
	VideoID        int64
	State          PollState
	Video          *models.Video
	Message        string
	DownloadURL    string
	OutputFilename string
	Attempts       int
	Err            error
}

// SessionHooks receive session events on the polling goroutine.
// OnTerminal fires exactly once unless the session is stopped first.
type SessionHooks struct {
	OnProgress func(PollResult)
	OnTerminal func(PollResult)
}

// Poller starts polling sessions.
type Poller struct {
	source      StatusSource
	clock       clock.Clock
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

type PollerOption func(*Poller)

func WithClock(c clock.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts bounds the number of status queries that may return a
// non-terminal status. Zero means unbounded.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) { p.maxAttempts = n }
}

func WithLogger(l zerolog.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

func NewPoller(source StatusSource, opts ...PollerOption) *Poller {
	p := &Poller{
		source:   source,
		clock:    clock.RealClock{},
		interval: DefaultPollInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Session polls one job until a terminal status or Stop.
type Session struct {
	poller  *Poller
	videoID int64
	hooks   SessionHooks
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	result   PollResult
	stopped  bool
	finished bool
}

// Start begins polling videoID. The first query happens one interval after
// Start returns.
func (p *Poller) Start(ctx context.Context, videoID int64, hooks SessionHooks) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		poller:  p,
		videoID: videoID,
		hooks:   hooks,
		cancel:  cancel,
		done:    make(chan struct{}),
		result:  PollResult{VideoID: videoID, State: PollPolling, Message: MessageGenerating},
	}

	p.logger.Info().Int64("video_id", videoID).Dur("interval", p.interval).Msg("polling started")
	go s.run(ctx)
	return s
}

// Stop ends the session without invoking hooks. It does not wait for an
// in-flight query; any late response is discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.finished {
		s.stopped = true
	}
	s.mu.Unlock()
	s.cancel()
}

// Done is closed when the polling goroutine exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the latest observation.
func (s *Session) Snapshot() PollResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	p := s.poller
	for {
		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}

		video, err := p.source.GetVideoStatus(ctx, s.videoID)

		s.mu.Lock()
		if s.stopped || ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		result, terminal := s.observe(video, err)
		if terminal {
			s.finished = true
		}
		s.mu.Unlock()

		if terminal {
			p.logger.Info().
				Int64("video_id", result.VideoID).
				Str("state", string(result.State)).
				Int("attempts", result.Attempts).
				Msg("polling finished")
			if s.hooks.OnTerminal != nil {
				s.hooks.OnTerminal(result)
			}
			return
		}
		if s.hooks.OnProgress != nil {
			s.hooks.OnProgress(result)
		}
	}
}

// observe folds one status response into the session result. Callers hold mu.
func (s *Session) observe(video *models.Video, err error) (PollResult, bool) {
	r := &s.result
	r.Attempts++

	if err != nil {
		r.State = PollError
		r.Message = MessageFailed
		r.Err = fmt.Errorf("%w: %v", models.ErrPolling, err)
		return *r, true
	}
	if video == nil {
		r.State = PollCancelled
		r.Err = fmt.Errorf("%w: status response had no body", models.ErrPolling)
		return *r, true
	}

	r.Video = video
	switch video.Status {
	case models.StatusCompleted:
		id := video.ID
		if id == 0 {
			id = r.VideoID
		}
		r.State = PollCompleted
		r.Message = MessageCompleted
		r.DownloadURL = video.DownloadURL
		if r.DownloadURL == "" {
			r.DownloadURL = models.DownloadPath(id)
		}
		r.OutputFilename = video.OutputFilename
		return *r, true
	case models.StatusError:
		r.State = PollError
		r.Message = MessageFailed
		r.Err = fmt.Errorf("%w: rendering failed", models.ErrPolling)
		return *r, true
	case models.StatusInProgress:
		r.Message = MessageGenerating
	default:
		s.poller.logger.Debug().
			Int64("video_id", r.VideoID).
			Str("status", string(video.Status)).
			Msg("unrecognized status, still polling")
	}

	if limit := s.poller.maxAttempts; limit > 0 && r.Attempts >= limit {
		r.State = PollError
		r.Message = MessageFailed
		r.Err = fmt.Errorf("%w: no terminal status after %d queries", models.ErrPolling, r.Attempts)
		return *r, true
	}
	return *r, false
}
