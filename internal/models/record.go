package models

import (
	"database/sql"
	"time"
)

// VideoRecord is the persisted form of a video job.
type VideoRecord struct {
	ID                int64
	Title             string
	AudioFilename     sql.NullString
	HasAudio          bool
	TransitionSeconds sql.NullInt64
	Status            Status
	Format            Format
	OwnerLogin        string
	OutputKey         sql.NullString
	OutputFilename    sql.NullString
	ErrorMessage      sql.NullString
	CreatedAt         time.Time
	DownloadedAt      sql.NullTime
}

// Snapshot converts the record into the wire representation.
func (r *VideoRecord) Snapshot() *Video {
	v := &Video{
		ID:             r.ID,
		Title:          r.Title,
		AudioFilename:  r.AudioFilename.String,
		HasAudio:       r.HasAudio,
		Status:         r.Status,
		Format:         r.Format,
		User:           &UserRef{Login: r.OwnerLogin},
		OutputFilename: r.OutputFilename.String,
	}
	if r.TransitionSeconds.Valid {
		secs := int(r.TransitionSeconds.Int64)
		v.TransitionSeconds = &secs
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt
		v.CreatedAt = &created
	}
	if r.DownloadedAt.Valid {
		downloaded := r.DownloadedAt.Time
		v.DownloadedAt = &downloaded
	}
	if r.Status == StatusCompleted {
		v.DownloadURL = DownloadPath(r.ID)
	}
	return v
}

// CreditRecord is the persisted form of a user's quota.
type CreditRecord struct {
	ID         int64
	OwnerLogin string
	Consumed   int
	Available  int
}

func (r *CreditRecord) Balance() *CreditBalance {
	return &CreditBalance{
		ID:        r.ID,
		Consumed:  r.Consumed,
		Available: r.Available,
		User:      &UserRef{Login: r.OwnerLogin},
	}
}
