package logging_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"video-studio/internal/logging"
)

func TestNewWithWriter_ProductionIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("production", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Int64("video_id", 4).Msg("visible")

	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"video_id":4`)
}

func TestNewWithWriter_DevelopmentIsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("development", &buf)

	logger.Debug().Msg("shown")

	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "shown")
}
