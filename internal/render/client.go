package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("render-client")

// DefaultTransitionSeconds is the renderer's per-image duration when a
// no-audio job does not set one.
const DefaultTransitionSeconds = 3

// Client calls the external rendering service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Request describes one render. AudioPath empty selects the no-audio
// endpoint, which uses TransitionSeconds.
type Request struct {
	ImagesPath        string `json:"images_path"`
	AudioPath         string `json:"audio_path,omitempty"`
	VideoPath         string `json:"video_path"`
	Format            string `json:"format"`
	TransitionSeconds int    `json:"transicion_segundos,omitempty"`
}

type Metadata struct {
	Filename         string   `json:"filename"`
	FullPath         string   `json:"full_path"`
	CreatedAt        string   `json:"created_at"`
	ImagesUsed       int      `json:"images_used"`
	Duration         float64  `json:"duration"`
	AudioFile        string   `json:"audio_file"`
	Resolution       string   `json:"resolution"`
	FPS              int      `json:"fps"`
	FileSizeMB       float64  `json:"file_size_mb"`
	ImageOrder       []string `json:"image_order"`
	DurationPerImage float64  `json:"duration_per_image"`
}

type Response struct {
	Status    string   `json:"status"`
	VideoPath string   `json:"video_path"`
	Metadata  Metadata `json:"metadata"`
}

// OutputPath returns where the renderer wrote the video.
func (r *Response) OutputPath() string {
	if r.Metadata.FullPath != "" {
		return r.Metadata.FullPath
	}
	return r.VideoPath
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate renders a video from the staged inputs.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "render_generate")
	defer span.End()

	endpoint := "/generate_video/"
	if req.AudioPath == "" {
		endpoint = "/generate_video_whitout/"
		if req.TransitionSeconds <= 0 {
			req.TransitionSeconds = DefaultTransitionSeconds
		}
	} else {
		req.TransitionSeconds = 0
	}
	if req.Format == "" {
		req.Format = "mp4"
	}
	span.SetAttributes(
		attribute.String("render.endpoint", endpoint),
		attribute.String("render.format", req.Format),
	)

	jsonData, err := json.Marshal(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to generate video: status %d, body: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		return nil, err
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	if result.OutputPath() == "" {
		return nil, fmt.Errorf("renderer returned no output path, body: %s", string(body))
	}

	span.SetAttributes(
		attribute.Int("render.images_used", result.Metadata.ImagesUsed),
		attribute.Float64("render.duration", result.Metadata.Duration),
	)
	return &result, nil
}
