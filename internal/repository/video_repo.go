package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

type CreateVideoInput struct {
	UserID    int64
	SessionID *int64
	URL       string
	Filename  string
	Size      int64
	Duration  *int
}

type VideoListFilter struct {
	ActorID   int64
	Role      models.Role
	SessionID *int64
}

type UpsertFeedbackInput struct {
	VideoID      int64
	CoachID      int64
	Rating       *int
	Comments     *string
	Improvements []string
}

const videoSelect = `
	SELECT v.id, v.user_id, v.session_id, v.url, v.filename, v.size, v.duration, v.created_at,
		f.id, f.coach_id, f.rating, f.comments, f.improvements, f.created_at, f.updated_at
	FROM videos v
	LEFT JOIN video_feedback f ON f.video_id = v.id
`

const feedbackColumns = `id, video_id, coach_id, rating, comments, improvements, created_at, updated_at`

type VideoRepository struct {
	db DBTX
}

func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var (
		video        models.Video
		feedbackID   *int64
		coachID      *int64
		rating       *int
		comments     *string
		improvements []string
		createdAt    *time.Time
		updatedAt    *time.Time
	)
	err := row.Scan(
		&video.ID,
		&video.UserID,
		&video.SessionID,
		&video.URL,
		&video.Filename,
		&video.Size,
		&video.Duration,
		&video.CreatedAt,
		&feedbackID,
		&coachID,
		&rating,
		&comments,
		&improvements,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if feedbackID != nil {
		video.Feedback = &models.VideoFeedback{
			ID:           *feedbackID,
			VideoID:      video.ID,
			Rating:       rating,
			Comments:     comments,
			Improvements: improvements,
		}
		if coachID != nil {
			video.Feedback.CoachID = *coachID
		}
		if createdAt != nil {
			video.Feedback.CreatedAt = *createdAt
		}
		if updatedAt != nil {
			video.Feedback.UpdatedAt = *updatedAt
		}
		if video.Feedback.Improvements == nil {
			video.Feedback.Improvements = []string{}
		}
	}
	return &video, nil
}

func scanFeedback(row rowScanner) (*models.VideoFeedback, error) {
	var feedback models.VideoFeedback
	err := row.Scan(
		&feedback.ID,
		&feedback.VideoID,
		&feedback.CoachID,
		&feedback.Rating,
		&feedback.Comments,
		&feedback.Improvements,
		&feedback.CreatedAt,
		&feedback.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}

func (r *VideoRepository) Create(ctx context.Context, input CreateVideoInput) (*models.Video, error) {
	query := `
		INSERT INTO videos (user_id, session_id, url, filename, size, duration)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, session_id, url, filename, size, duration, created_at
	`
	var video models.Video
	err := r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.SessionID,
		input.URL,
		input.Filename,
		input.Size,
		input.Duration,
	).Scan(
		&video.ID,
		&video.UserID,
		&video.SessionID,
		&video.URL,
		&video.Filename,
		&video.Size,
		&video.Duration,
		&video.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *VideoRepository) GetByID(ctx context.Context, videoID int64) (*models.Video, error) {
	return scanVideo(r.db.QueryRow(ctx, videoSelect+" WHERE v.id = $1", videoID))
}

// List scopes students to their own uploads and coaches to videos attached to their sessions.
func (r *VideoRepository) List(ctx context.Context, filter VideoListFilter) ([]models.Video, error) {
	args := []any{filter.ActorID}
	var whereParts []string

	switch filter.Role {
	case models.RoleCoach:
		whereParts = append(whereParts, "EXISTS (SELECT 1 FROM sessions s WHERE s.id = v.session_id AND s.coach_id = $1)")
	default:
		whereParts = append(whereParts, "v.user_id = $1")
	}
	if filter.SessionID != nil {
		args = append(args, *filter.SessionID)
		whereParts = append(whereParts, fmt.Sprintf("v.session_id = $%d", len(args)))
	}

	query := videoSelect + " WHERE " + strings.Join(whereParts, " AND ") + " ORDER BY v.created_at DESC, v.id DESC"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := make([]models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *video)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *VideoRepository) GetFeedback(ctx context.Context, videoID int64) (*models.VideoFeedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM video_feedback WHERE video_id = $1`
	return scanFeedback(r.db.QueryRow(ctx, query, videoID))
}

// UpsertFeedback keeps at most one feedback row per video; a second call overwrites it.
func (r *VideoRepository) UpsertFeedback(ctx context.Context, input UpsertFeedbackInput) (*models.VideoFeedback, error) {
	improvements := input.Improvements
	if improvements == nil {
		improvements = []string{}
	}
	query := `
		INSERT INTO video_feedback (video_id, coach_id, rating, comments, improvements)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_id) DO UPDATE
		SET coach_id = EXCLUDED.coach_id,
			rating = EXCLUDED.rating,
			comments = EXCLUDED.comments,
			improvements = EXCLUDED.improvements,
			updated_at = NOW()
		RETURNING ` + feedbackColumns
	return scanFeedback(r.db.QueryRow(
		ctx,
		query,
		input.VideoID,
		input.CoachID,
		input.Rating,
		input.Comments,
		improvements,
	))
}
