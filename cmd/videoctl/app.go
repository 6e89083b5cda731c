package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"video-studio/internal/config"
	"video-studio/internal/credits"
	"video-studio/internal/download"
	"video-studio/internal/logging"
	"video-studio/internal/models"
	"video-studio/internal/upload"
	"video-studio/internal/videoapi"
	"video-studio/internal/workflow"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "videoctl",
		Usage: "generate slideshow videos from images and an audio track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML client configuration file",
				EnvVars: []string{"VIDEO_CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			return config.LoadDotEnv()
		},
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "create a video and download it once rendered",
				Flags:  jobFlags(false),
				Action: runJob,
			},
			{
				Name:   "update",
				Usage:  "update an existing video",
				Flags:  jobFlags(true),
				Action: runJob,
			},
			{
				Name:   "credits",
				Usage:  "show the remaining video credits",
				Action: runCredits,
			},
			{
				Name:  "status",
				Usage: "print the current snapshot of a video",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Required: true},
				},
				Action: runStatus,
			},
			{
				Name:  "download",
				Usage: "download a rendered video",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Required: true},
					&cli.StringFlag{Name: "out", Usage: "destination directory"},
				},
				Action: runDownload,
			},
			{
				Name:  "token",
				Usage: "mint a development bearer token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "login", Required: true},
					&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: runToken,
			},
		},
	}
}

func jobFlags(update bool) []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: "id", Usage: "video to update", Required: update},
		&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "image file (repeatable, up to 10)", Required: true},
		&cli.StringFlag{Name: "audio", Aliases: []string{"a"}, Usage: "audio track (MP3, WAV, OGG, M4A)"},
		&cli.BoolFlag{Name: "no-audio", Usage: "render without audio"},
		&cli.IntFlag{Name: "duration", Usage: "seconds per image when rendering without audio"},
		&cli.StringFlag{Name: "format", Usage: "MP4, AVI, MOV, MKV or WEBM"},
		&cli.StringFlag{Name: "title", Usage: "video title (update only)"},
		&cli.StringFlag{Name: "out", Usage: "download directory"},
	}
}

// runtime holds the clients shared by the commands.
type runtime struct {
	cfg    *config.ClientConfig
	logger zerolog.Logger
	api    *videoapi.Client
	out    io.Writer
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.LoadClient(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("out"); dir != "" {
		cfg.DownloadDir = dir
	}
	return &runtime{
		cfg:    cfg,
		logger: logging.New(cfg.Environment),
		api:    videoapi.NewClient(cfg.APIBaseURL, cfg.APIToken),
		out:    c.App.Writer,
	}, nil
}

func (rt *runtime) coordinator() *download.Coordinator {
	return download.NewCoordinator(rt.api, download.DirSaver{Dir: rt.cfg.DownloadDir}, rt.logger)
}

func (rt *runtime) controller(hooks workflow.Hooks) *workflow.Controller {
	gate := credits.NewGate(rt.api, rt.cfg.CreditsTimeout, rt.logger)
	poller := workflow.NewPoller(rt.api,
		workflow.WithInterval(rt.cfg.PollInterval),
		workflow.WithMaxAttempts(rt.cfg.PollMaxAttempts),
		workflow.WithLogger(rt.logger),
	)
	return workflow.NewController(gate, workflow.NewSubmitter(rt.api, rt.logger), poller, rt.coordinator(), rt.logger, hooks)
}

func runJob(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	ctrl := rt.controller(workflow.Hooks{
		OnProgress: func(s workflow.State) {
			fmt.Fprintf(rt.out, "[%s] %s\n", s.Phase, s.Message)
		},
		OnSuccess: func(s workflow.State) {
			fmt.Fprintf(rt.out, "[%s] %s\n", s.Phase, s.Message)
		},
		OnError: func(s workflow.State) {
			fmt.Fprintf(rt.out, "[%s] %v\n", s.Phase, s.Err)
		},
	})
	defer ctrl.Teardown()
	go func() {
		<-ctx.Done()
		ctrl.Teardown()
	}()

	result := ctrl.Activate(ctx)
	if err := result.Error(); err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "credits remaining: %d\n", result.Remaining())

	if err := fillForm(ctx, c, rt, ctrl); err != nil {
		return err
	}

	if err := ctrl.Submit(ctx); err != nil {
		return err
	}
	state, err := ctrl.Wait(ctx)
	if errors.Is(err, models.ErrClosed) || errors.Is(err, context.Canceled) {
		return errors.New("cancelled")
	}
	if err != nil {
		return err
	}
	if state.Phase != workflow.PhaseDone || state.DownloadURL == "" {
		if state.Video != nil {
			fmt.Fprintf(rt.out, "video %d saved\n", state.Video.ID)
		}
		return nil
	}

	path, err := ctrl.Download(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "saved %s\n", path)
	return nil
}

func fillForm(ctx context.Context, c *cli.Context, rt *runtime, ctrl *workflow.Controller) error {
	if id := c.Int64("id"); id > 0 {
		existing, err := rt.api.GetVideoStatus(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("video %d: %w", id, models.ErrNotFound)
		}
		if err := ctrl.Edit(*existing); err != nil {
			return err
		}
	}
	if title := c.String("title"); title != "" {
		if err := ctrl.SetTitle(title); err != nil {
			return err
		}
	}
	if raw := c.String("format"); raw != "" {
		format, err := models.ParseFormat(raw)
		if err != nil {
			return err
		}
		if err := ctrl.SetFormat(format); err != nil {
			return err
		}
	}

	paths := c.StringSlice("image")
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := upload.FromPath(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	n, err := ctrl.AddImages(files...)
	var verr *models.ValidationError
	if err != nil && (n == 0 || !errors.As(err, &verr)) {
		return err
	}
	if n < len(files) {
		fmt.Fprintf(rt.out, "only the first %d of %d images were added (limit %d): %v\n", n, len(files), upload.MaxImages, err)
	}

	if p := c.String("audio"); p != "" {
		f, err := upload.FromPath(p)
		if err != nil {
			return err
		}
		if err := ctrl.SelectAudio(f); err != nil {
			return err
		}
	}
	if c.Bool("no-audio") {
		if err := ctrl.DeclareNoAudio(true); err != nil {
			return err
		}
	}
	if d := c.Int("duration"); d > 0 {
		if err := ctrl.SetTransition(d); err != nil {
			return err
		}
	}
	return nil
}

func runCredits(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	result := credits.NewGate(rt.api, rt.cfg.CreditsTimeout, rt.logger).Load(c.Context)
	if result.Condition == credits.ConditionUnavailable {
		return result.Error()
	}
	consumed, available := 0, 0
	if result.Balance != nil {
		consumed, available = result.Balance.Consumed, result.Balance.Available
	}
	fmt.Fprintf(rt.out, "consumed: %d\navailable: %d\nremaining: %d\n", consumed, available, result.Remaining())
	return nil
}

func runStatus(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	video, err := rt.api.GetVideoStatus(c.Context, c.Int64("id"))
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("video %d: %w", c.Int64("id"), models.ErrNotFound)
	}
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(video)
}

func runDownload(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	path, err := rt.coordinator().Download(c.Context, c.Int64("id"), "")
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "saved %s\n", path)
	return nil
}

func runToken(c *cli.Context) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": c.String("login"),
		"iat": now.Unix(),
		"exp": now.Add(c.Duration("ttl")).Unix(),
	})
	signed, err := token.SignedString([]byte(c.String("secret")))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(c.App.Writer, signed)
	return nil
}
