package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"video-studio/internal/database"
	"video-studio/internal/models"
)

// DatabaseClient persists videos and credits in Postgres.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) CreateVideo(ctx context.Context, rec *models.VideoRecord) error {
	err := d.db.QueryRowContext(ctx, database.InsertVideo,
		rec.Title, rec.AudioFilename, rec.HasAudio, rec.TransitionSeconds,
		string(rec.Status), string(rec.Format), rec.OwnerLogin,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetVideo loads a video owned by login.
func (d *DatabaseClient) GetVideo(ctx context.Context, id int64, login string) (*models.VideoRecord, error) {
	rec, err := scanVideo(d.db.QueryRowContext(ctx, database.SelectVideoByOwner, id, login))
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return rec, nil
}

func (d *DatabaseClient) UpdateVideo(ctx context.Context, rec *models.VideoRecord) error {
	res, err := d.db.ExecContext(ctx, database.UpdateVideoFields,
		rec.Title, rec.AudioFilename, rec.HasAudio, rec.TransitionSeconds,
		string(rec.Format), rec.ID, rec.OwnerLogin,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return requireRow(res, "video")
}

func (d *DatabaseClient) MarkVideoCompleted(ctx context.Context, id int64, outputKey, outputFilename string) error {
	res, err := d.db.ExecContext(ctx, database.MarkVideoCompleted, outputKey, outputFilename, id)
	if err != nil {
		return fmt.Errorf("failed to mark video completed: %w", err)
	}
	return requireRow(res, "video")
}

// MarkVideoProcessing resets a job before it is rendered again.
func (d *DatabaseClient) MarkVideoProcessing(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, database.MarkVideoProcessing, id)
	if err != nil {
		return fmt.Errorf("failed to mark video processing: %w", err)
	}
	return requireRow(res, "video")
}

func (d *DatabaseClient) MarkVideoFailed(ctx context.Context, id int64, errorMsg string) error {
	_, err := d.db.ExecContext(ctx, database.MarkVideoFailed, errorMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark video failed: %w", err)
	}
	return nil
}

func (d *DatabaseClient) MarkVideoDownloaded(ctx context.Context, id int64, at time.Time) error {
	_, err := d.db.ExecContext(ctx, database.MarkVideoDownloaded, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark video downloaded: %w", err)
	}
	return nil
}

// GetCredits loads the quota of login, models.ErrNotFound when absent.
func (d *DatabaseClient) GetCredits(ctx context.Context, login string) (*models.CreditRecord, error) {
	var rec models.CreditRecord
	err := d.db.QueryRowContext(ctx, database.SelectCredits, login).Scan(
		&rec.ID, &rec.OwnerLogin, &rec.Consumed, &rec.Available,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get credits: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credits: %w", err)
	}
	return &rec, nil
}

// ReserveCredit charges one video against the quota. The ceiling is checked
// in the same statement, so concurrent submissions cannot overcommit.
func (d *DatabaseClient) ReserveCredit(ctx context.Context, login string) error {
	res, err := d.db.ExecContext(ctx, database.ReserveCredit, login)
	if err != nil {
		return fmt.Errorf("failed to reserve credit: %w", err)
	}
	if err := requireRow(res, "credit record"); errors.Is(err, models.ErrNotFound) {
		return models.ErrNoCredits
	} else if err != nil {
		return err
	}
	return nil
}

func (d *DatabaseClient) ReleaseCredit(ctx context.Context, login string) error {
	res, err := d.db.ExecContext(ctx, database.ReleaseCredit, login)
	if err != nil {
		return fmt.Errorf("failed to release credit: %w", err)
	}
	return requireRow(res, "credit record")
}

// Ping checks that the database still answers.
func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*models.VideoRecord, error) {
	var rec models.VideoRecord
	var status, format string
	err := row.Scan(
		&rec.ID, &rec.Title, &rec.AudioFilename, &rec.HasAudio, &rec.TransitionSeconds,
		&status, &format, &rec.OwnerLogin, &rec.OutputKey, &rec.OutputFilename,
		&rec.ErrorMessage, &rec.CreatedAt, &rec.DownloadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = models.ParseStatus(status)
	rec.Format = models.Format(format)
	return &rec, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}
