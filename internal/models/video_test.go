package models_test

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-studio/internal/models"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, models.StatusInProgress, models.ParseStatus("EN_PROCESO"))
	assert.Equal(t, models.StatusInProgress, models.ParseStatus("in_progress"))
	assert.Equal(t, models.StatusCompleted, models.ParseStatus("COMPLETED"))
	assert.Equal(t, models.StatusError, models.ParseStatus("ERROR"))
	assert.Equal(t, models.Status("PAUSADO"), models.ParseStatus("PAUSADO"))
	assert.False(t, models.ParseStatus("PAUSADO").Known())
}

func TestVideo_DecodesWireNames(t *testing.T) {
	body := `{"id":7,"titulo":"video-1a2b3c4d","tieneAudio":false,"duracionTransicion":5,
		"estado":"COMPLETADO","formato":"MP4","downloadUrl":"/files/7.mp4","outputFilename":"out.mp4",
		"user":{"id":3,"login":"ana"}}`

	var v models.Video
	require.NoError(t, json.Unmarshal([]byte(body), &v))

	assert.Equal(t, int64(7), v.ID)
	assert.Equal(t, "video-1a2b3c4d", v.Title)
	require.NotNil(t, v.TransitionSeconds)
	assert.Equal(t, 5, *v.TransitionSeconds)
	assert.Equal(t, models.StatusCompleted, v.Status)
	assert.Equal(t, "/files/7.mp4", v.DownloadURL)
	assert.Equal(t, "ana", v.User.Login)
}

func TestVideo_NewJobOmitsID(t *testing.T) {
	data, err := json.Marshal(models.Video{Format: models.FormatMP4})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id"`)
	assert.Contains(t, string(data), `"tieneAudio":false`)
}

func TestParseFormat(t *testing.T) {
	f, err := models.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, models.FormatMP4, f)

	f, err = models.ParseFormat(".webm")
	require.NoError(t, err)
	assert.Equal(t, "webm", f.Extension())

	_, err = models.ParseFormat("gif")
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestCreditBalance_Remaining(t *testing.T) {
	assert.Equal(t, 3, models.CreditBalance{Consumed: 2, Available: 5}.Remaining())
	assert.Equal(t, 0, models.CreditBalance{Consumed: 6, Available: 5}.Remaining())
	assert.False(t, models.CreditBalance{Consumed: 5, Available: 5}.HasCapacity())
	assert.True(t, models.CreditBalance{Available: 1}.HasCapacity())
}

func TestCreditBalance_NullCountsDecodeAsZero(t *testing.T) {
	var b models.CreditBalance
	require.NoError(t, json.Unmarshal([]byte(`{"videosConsumidos":null,"videosDisponibles":null}`), &b))
	assert.Equal(t, 0, b.Remaining())
}

func TestVideoRecord_Snapshot(t *testing.T) {
	rec := &models.VideoRecord{
		ID:                12,
		Title:             "video-abc",
		Status:            models.StatusCompleted,
		Format:            models.FormatMP4,
		OwnerLogin:        "ana",
		TransitionSeconds: sql.NullInt64{Int64: 4, Valid: true},
		OutputFilename:    sql.NullString{String: "video-abc.mp4", Valid: true},
		CreatedAt:         time.Now(),
	}

	v := rec.Snapshot()
	assert.Equal(t, "/api/videos/12/download", v.DownloadURL)
	assert.Equal(t, "video-abc.mp4", v.OutputFilename)
	require.NotNil(t, v.TransitionSeconds)
	assert.Equal(t, 4, *v.TransitionSeconds)

	rec.Status = models.StatusInProgress
	assert.Empty(t, rec.Snapshot().DownloadURL)
}

func TestValidationError_IsValidation(t *testing.T) {
	err := models.NewValidationError("images", "at least one image is required")
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Equal(t, "images: at least one image is required", err.Error())
}
