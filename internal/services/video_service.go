package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/events"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
)

const maxImprovements = 20

var allowedVideoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".m4v":  {},
	".webm": {},
	".avi":  {},
}

type videoStore interface {
	Create(ctx context.Context, input repository.CreateVideoInput) (*models.Video, error)
	GetByID(ctx context.Context, videoID int64) (*models.Video, error)
	List(ctx context.Context, filter repository.VideoListFilter) ([]models.Video, error)
	UpsertFeedback(ctx context.Context, input repository.UpsertFeedbackInput) (*models.VideoFeedback, error)
}

type VideoService struct {
	videos   videoStore
	sessions sessionMembership
	storage  VideoStorage
	events   events.Publisher
}

func NewVideoService(
	videos videoStore,
	sessions sessionMembership,
	storage VideoStorage,
	publisher events.Publisher,
) *VideoService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &VideoService{
		videos:   videos,
		sessions: sessions,
		storage:  storage,
		events:   publisher,
	}
}

type UploadVideoInput struct {
	Content     io.Reader
	Filename    string
	Size        int64
	ContentType string
	SessionID   *int64
	Duration    *int
}

func (s *VideoService) Upload(
	ctx context.Context,
	identity *auth.Identity,
	input UploadVideoInput,
) (*models.Video, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if input.Content == nil {
		return nil, apperr.Validation("No video file uploaded", map[string][]string{
			"video": {"Video file is required"},
		})
	}

	if input.Duration != nil && (*input.Duration < 0 || *input.Duration > models.MaxVideoSeconds) {
		return nil, apperr.Validation("Validation failed", map[string][]string{
			"duration": {"Duration must be between 0 and 86400 seconds"},
		})
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(input.Filename)))
	if _, ok := allowedVideoExtensions[ext]; !ok {
		return nil, apperr.Validation("Validation failed", map[string][]string{
			"video": {"Unsupported video format"},
		})
	}

	if input.SessionID != nil {
		session, err := s.sessions.GetByID(ctx, *input.SessionID)
		if err != nil {
			if isNoRows(err) {
				return nil, apperr.NotFound("Session")
			}
			return nil, err
		}
		related, err := sessionRelated(ctx, s.sessions, identity, session)
		if err != nil {
			return nil, err
		}
		if !related {
			return nil, apperr.Authorization(auth.MessageInsufficientPermission)
		}
	}

	objectName := fmt.Sprintf("%d/%s%s", identity.UserID, uuid.NewString(), ext)
	fileURL, err := s.storage.Upload(ctx, input.Content, objectName, input.ContentType)
	if err != nil {
		return nil, err
	}

	video, err := s.videos.Create(ctx, repository.CreateVideoInput{
		UserID:    identity.UserID,
		SessionID: input.SessionID,
		URL:       fileURL,
		Filename:  filepath.Base(input.Filename),
		Size:      input.Size,
		Duration:  input.Duration,
	})
	if err != nil {
		if cleanupErr := s.storage.Delete(ctx, fileURL); cleanupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
		}
		return nil, err
	}
	return video, nil
}

func (s *VideoService) List(ctx context.Context, identity *auth.Identity, sessionID *int64) ([]models.Video, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}
	return s.videos.List(ctx, repository.VideoListFilter{
		ActorID:   identity.UserID,
		Role:      identity.Role,
		SessionID: sessionID,
	})
}

// GetFeedback returns nil feedback when the coach has not reviewed the video yet.
func (s *VideoService) GetFeedback(ctx context.Context, identity *auth.Identity, videoID int64) (*models.VideoFeedback, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}
	video, err := s.getVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, identity, video); err != nil {
		return nil, err
	}
	return video.Feedback, nil
}

type FeedbackInput struct {
	Rating       *int
	Comments     *string
	Improvements []string
}

// UpsertFeedback creates or replaces the single feedback record of a video.
// Only the coach of the video's session may write it.
func (s *VideoService) UpsertFeedback(
	ctx context.Context,
	identity *auth.Identity,
	videoID int64,
	input FeedbackInput,
) (*models.VideoFeedback, error) {
	if err := auth.Authorize(identity, models.RoleCoach); err != nil {
		return nil, err
	}

	fields := map[string][]string{}
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		fields["rating"] = []string{"Rating must be between 1 and 5"}
	}
	if len(input.Improvements) > maxImprovements {
		fields["improvements"] = []string{"Too many improvements"}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields)
	}

	video, err := s.getVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.SessionID == nil {
		return nil, apperr.Authorization("Video is not linked to one of your sessions")
	}
	session, err := s.sessions.GetByID(ctx, *video.SessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.Authorization("Video is not linked to one of your sessions")
		}
		return nil, err
	}
	if session.CoachID != identity.UserID {
		return nil, apperr.Authorization("Video is not linked to one of your sessions")
	}

	improvements := make([]string, 0, len(input.Improvements))
	for _, item := range input.Improvements {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			improvements = append(improvements, trimmed)
		}
	}

	feedback, err := s.videos.UpsertFeedback(ctx, repository.UpsertFeedbackInput{
		VideoID:      video.ID,
		CoachID:      identity.UserID,
		Rating:       input.Rating,
		Comments:     trimmedOrNil(input.Comments),
		Improvements: improvements,
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, events.Event{
		Type:       events.TopicVideoFeedback,
		ActorID:    identity.UserID,
		Recipients: []int64{video.UserID},
		SessionID:  video.SessionID,
		VideoID:    int64Ptr(video.ID),
		Data:       feedback,
	})
	return feedback, nil
}

func (s *VideoService) getVideo(ctx context.Context, videoID int64) (*models.Video, error) {
	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Video")
		}
		return nil, err
	}
	return video, nil
}

// canView admits the uploader and the coach of the linked session.
func (s *VideoService) canView(ctx context.Context, identity *auth.Identity, video *models.Video) error {
	if video.UserID == identity.UserID {
		return nil
	}
	if video.SessionID != nil && identity.Is(models.RoleCoach) {
		session, err := s.sessions.GetByID(ctx, *video.SessionID)
		if err != nil && !isNoRows(err) {
			return err
		}
		if err == nil && session.CoachID == identity.UserID {
			return nil
		}
	}
	return apperr.Authorization(auth.MessageInsufficientPermission)
}

func sessionRelated(
	ctx context.Context,
	sessions sessionMembership,
	identity *auth.Identity,
	session *models.Session,
) (bool, error) {
	if session.CoachID == identity.UserID || session.IsBoundStudent(identity.UserID) {
		return true, nil
	}
	if session.Type != models.SessionTypeGroup {
		return false, nil
	}
	return sessions.IsParticipant(ctx, session.ID, identity.UserID)
}
