package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
)

const maxVideoUploadSize = 100 << 20

type videoApplicationService interface {
	Upload(ctx context.Context, identity *auth.Identity, input services.UploadVideoInput) (*models.Video, error)
	List(ctx context.Context, identity *auth.Identity, sessionID *int64) ([]models.Video, error)
	GetFeedback(ctx context.Context, identity *auth.Identity, videoID int64) (*models.VideoFeedback, error)
	UpsertFeedback(ctx context.Context, identity *auth.Identity, videoID int64, input services.FeedbackInput) (*models.VideoFeedback, error)
}

type VideoHandler struct {
	service videoApplicationService
}

func NewVideoHandler(service videoApplicationService) *VideoHandler {
	return &VideoHandler{service: service}
}

type feedbackRequest struct {
	Rating       *int     `json:"rating" validate:"omitempty,min=1,max=5"`
	Comments     *string  `json:"comments" validate:"omitempty,max=5000"`
	Improvements []string `json:"improvements" validate:"omitempty,max=20"`
}

func (h *VideoHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		return writeError(c, apperr.Validation("No video file uploaded", map[string][]string{
			"video": {"Video file is required"},
		}))
	}
	if fileHeader.Size > maxVideoUploadSize {
		return writeError(c, apperr.Validation("Validation failed", map[string][]string{
			"video": {"Video must be 100MB or smaller"},
		}))
	}

	sessionID, err := optionalID(c.FormValue("sessionId"), "sessionId")
	if err != nil {
		return writeError(c, err)
	}
	var duration *int
	if raw := strings.TrimSpace(c.FormValue("duration")); raw != "" {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil || seconds < 0 || seconds > models.MaxVideoSeconds {
			return writeError(c, apperr.Validation("Validation failed", map[string][]string{
				"duration": {"Must be an integer between 0 and 86400"},
			}))
		}
		duration = &seconds
	}

	file, err := fileHeader.Open()
	if err != nil {
		return writeError(c, err)
	}
	defer file.Close()

	video, err := h.service.Upload(c.UserContext(), middleware.IdentityFrom(c), services.UploadVideoInput{
		Content:     file,
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		SessionID:   sessionID,
		Duration:    duration,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondCreated(c, fiber.Map{
		"message": "Video uploaded successfully",
		"video":   video,
		"videoId": video.ID,
	})
}

func (h *VideoHandler) List(c *fiber.Ctx) error {
	sessionID, err := optionalID(c.Query("sessionId"), "sessionId")
	if err != nil {
		return writeError(c, err)
	}
	videos, err := h.service.List(c.UserContext(), middleware.IdentityFrom(c), sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"videos": videos})
}

func (h *VideoHandler) GetFeedback(c *fiber.Ctx) error {
	videoID, err := parseIDParam(c, "id", "video")
	if err != nil {
		return writeError(c, err)
	}
	feedback, err := h.service.GetFeedback(c.UserContext(), middleware.IdentityFrom(c), videoID)
	if err != nil {
		return writeError(c, err)
	}
	if feedback == nil {
		return respondOK(c, fiber.Map{"feedback": nil, "message": "Feedback not available yet"})
	}
	return respondOK(c, fiber.Map{"feedback": feedback})
}

func (h *VideoHandler) UpsertFeedback(c *fiber.Ctx) error {
	videoID, err := parseIDParam(c, "id", "video")
	if err != nil {
		return writeError(c, err)
	}
	var req feedbackRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	feedback, err := h.service.UpsertFeedback(c.UserContext(), middleware.IdentityFrom(c), videoID, services.FeedbackInput{
		Rating:       req.Rating,
		Comments:     req.Comments,
		Improvements: req.Improvements,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"feedback": feedback})
}

func optionalID(raw, field string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Validation("Validation failed", map[string][]string{
			field: {"Must be a positive integer"},
		})
	}
	return &id, nil
}
