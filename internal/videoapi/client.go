package videoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"video-studio/internal/models"
	"video-studio/internal/upload"
)

var tracer = otel.Tracer("videoapi-client")

// Client talks to the video backend REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// SaveRequest carries the fields and files of a create or update call.
type SaveRequest struct {
	Video  models.Video
	Images []upload.File
	Audio  *upload.File
}

// SaveResult is the backend answer to a create or update call.
type SaveResult struct {
	StatusCode int
	Video      *models.Video
}

// Artifact is a downloaded video.
type Artifact struct {
	Data               []byte
	ContentType        string
	ContentDisposition string
}

// NewClient creates a client. Requests carry no client-side timeout; callers
// bound them through the context.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// CreateVideo submits a new job. Any 2xx answer is returned to the caller,
// which decides whether the status code is acceptable.
func (c *Client) CreateVideo(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	ctx, span := tracer.Start(ctx, "videoapi_create")
	defer span.End()
	span.SetAttributes(attribute.Int("video.images", len(req.Images)))

	result, err := c.save(ctx, http.MethodPost, c.baseURL+"/api/videos", req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create video: %w", err)
	}
	if result.Video != nil {
		span.SetAttributes(attribute.Int64("video.id", result.Video.ID))
	}
	span.SetAttributes(attribute.Int("http.status_code", result.StatusCode))
	return result, nil
}

// UpdateVideo replaces the fields of an existing job.
func (c *Client) UpdateVideo(ctx context.Context, id int64, req SaveRequest) (*SaveResult, error) {
	ctx, span := tracer.Start(ctx, "videoapi_update")
	defer span.End()
	span.SetAttributes(attribute.Int64("video.id", id))

	req.Video.ID = id
	result, err := c.save(ctx, http.MethodPut, fmt.Sprintf("%s/api/videos/%d", c.baseURL, id), req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update video: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", result.StatusCode))
	return result, nil
}

// GetVideoStatus fetches the current job snapshot. A response without a
// body yields a nil video and no error.
func (c *Client) GetVideoStatus(ctx context.Context, id int64) (*models.Video, error) {
	ctx, span := tracer.Start(ctx, "videoapi_status")
	defer span.End()
	span.SetAttributes(attribute.Int64("video.id", id))

	body, status, err := c.get(ctx, fmt.Sprintf("%s/api/videos/%d/status", c.baseURL, id), "application/json")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get video status: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to get video status: status %d, body: %s", status, string(body))
	}
	if isEmptyJSON(body) {
		return nil, nil
	}

	var video models.Video
	if err := json.Unmarshal(body, &video); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	span.SetAttributes(attribute.String("video.status", string(video.Status)))
	return &video, nil
}

// DownloadVideo fetches the rendered artifact.
func (c *Client) DownloadVideo(ctx context.Context, id int64) (*Artifact, error) {
	ctx, span := tracer.Start(ctx, "videoapi_download")
	defer span.End()
	span.SetAttributes(attribute.Int64("video.id", id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/videos/%d/download", c.baseURL, id), nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download video: status %d, body: %s", resp.StatusCode, string(data))
	}

	span.SetAttributes(attribute.Int("video.bytes", len(data)))
	return &Artifact{
		Data:               data,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

// GetCurrentUserCredits fetches the caller's balance. A missing record
// (404 or empty body) yields a nil balance and no error.
func (c *Client) GetCurrentUserCredits(ctx context.Context) (*models.CreditBalance, error) {
	ctx, span := tracer.Start(ctx, "videoapi_credits")
	defer span.End()

	body, status, err := c.get(ctx, c.baseURL+"/api/video-credits/current-user", "application/json")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get credits: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to get credits: status %d, body: %s", status, string(body))
	}
	if isEmptyJSON(body) {
		return nil, nil
	}

	var balance models.CreditBalance
	if err := json.Unmarshal(body, &balance); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	span.SetAttributes(attribute.Int("credits.remaining", balance.Remaining()))
	return &balance, nil
}

func (c *Client) save(ctx context.Context, method, url string, req SaveRequest) (*SaveResult, error) {
	payload, contentType, err := encodeSaveRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(httpReq)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}

	result := &SaveResult{StatusCode: resp.StatusCode}
	if !isEmptyJSON(body) {
		var video models.Video
		if err := json.Unmarshal(body, &video); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
		}
		result.Video = &video
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// encodeSaveRequest builds the multipart body: a JSON "video" part, one
// "images" part per image and an optional "audio" part.
func encodeSaveRequest(req SaveRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	videoJSON, err := json.Marshal(req.Video)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal video: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="video"`)
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create video part: %w", err)
	}
	if _, err := part.Write(videoJSON); err != nil {
		return nil, "", fmt.Errorf("failed to write video part: %w", err)
	}

	for _, img := range req.Images {
		if err := writeFilePart(w, "images", img); err != nil {
			return nil, "", err
		}
	}
	if req.Audio != nil {
		if err := writeFilePart(w, "audio", *req.Audio); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field string, f upload.File) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(f.Name)))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer src.Close()

	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func isEmptyJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
