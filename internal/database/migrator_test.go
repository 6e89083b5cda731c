package database_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-studio/internal/database"
)

func TestMigrations_Ordered(t *testing.T) {
	names, err := database.Migrations()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_video_events.sql"}, names)
}

func TestQueries_TargetVideoTables(t *testing.T) {
	assert.True(t, strings.Contains(database.InsertVideo, "INSERT INTO videos"))
	assert.True(t, strings.Contains(database.SelectVideoByOwner, "user_login = $2"))
	assert.True(t, strings.Contains(database.ReserveCredit, "videos_consumidos < videos_disponibles"))
	assert.True(t, strings.Contains(database.ReleaseCredit, "videos_consumidos > 0"))
}

func TestNewMigrator_BadURL(t *testing.T) {
	_, err := database.NewMigrator("postgres://127.0.0.1:1/none?sslmode=disable&connect_timeout=1", zerolog.Nop())
	assert.ErrorContains(t, err, "failed to ping database")
}
