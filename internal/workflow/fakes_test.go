package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
	"video-studio/internal/credits"
	"video-studio/internal/models"
	"video-studio/internal/videoapi"
	"video-studio/internal/workflow"
)

const interval = 3 * time.Second

type statusReply struct {
	video *models.Video
	err   error
}

// scriptedStatus replays replies in order and repeats the last one.
type scriptedStatus struct {
	mu      sync.Mutex
	replies []statusReply
	calls   int
	gate    chan struct{}
}

func (s *scriptedStatus) GetVideoStatus(ctx context.Context, id int64) (*models.Video, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i].video, s.replies[i].err
}

func (s *scriptedStatus) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func inProgress(id int64) statusReply {
	return statusReply{video: &models.Video{ID: id, Status: models.StatusInProgress}}
}

func completed(id int64) statusReply {
	return statusReply{video: &models.Video{ID: id, Status: models.StatusCompleted, OutputFilename: "video-out.mp4"}}
}

func failed(id int64) statusReply {
	return statusReply{video: &models.Video{ID: id, Status: models.StatusError}}
}

// tick waits until the session armed its timer, then fires it.
func tick(t *testing.T, fc *clocktesting.FakeClock) {
	t.Helper()
	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	fc.Step(interval)
}

// recordingPoller keeps the hooks of every session it starts so tests can
// replay callbacks out of order.
type recordingPoller struct {
	*workflow.Poller
	mu    sync.Mutex
	hooks []workflow.SessionHooks
}

func (p *recordingPoller) Start(ctx context.Context, videoID int64, hooks workflow.SessionHooks) *workflow.Session {
	p.mu.Lock()
	p.hooks = append(p.hooks, hooks)
	p.mu.Unlock()
	return p.Poller.Start(ctx, videoID, hooks)
}

func (p *recordingPoller) session(t *testing.T, i int) workflow.SessionHooks {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Greater(t, len(p.hooks), i)
	return p.hooks[i]
}

type fakeService struct {
	mu           sync.Mutex
	createResult *videoapi.SaveResult
	createErr    error
	updateResult *videoapi.SaveResult
	creates      int
	updates      int
	lastReq      videoapi.SaveRequest
}

func (f *fakeService) CreateVideo(ctx context.Context, req videoapi.SaveRequest) (*videoapi.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastReq = req
	return f.createResult, f.createErr
}

func (f *fakeService) UpdateVideo(ctx context.Context, id int64, req videoapi.SaveRequest) (*videoapi.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	req.Video.ID = id
	f.lastReq = req
	return f.updateResult, nil
}

func (f *fakeService) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.updates
}

type fixedCredits credits.Result

func (f fixedCredits) Load(ctx context.Context) credits.Result {
	return credits.Result(f)
}

var ready = fixedCredits{Condition: credits.ConditionReady, Balance: &models.CreditBalance{Consumed: 3, Available: 5}}

type stubDownloader struct {
	id   int64
	name string
}

func (s *stubDownloader) Download(ctx context.Context, id int64, fallbackName string) (string, error) {
	s.id = id
	s.name = fallbackName
	return "/tmp/" + fallbackName, nil
}
