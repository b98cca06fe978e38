package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type sessionApplicationService interface {
	Create(ctx context.Context, identity *auth.Identity, input services.CreateSessionInput) (*models.Session, error)
	List(ctx context.Context, identity *auth.Identity, filter services.SessionListFilter) ([]models.SessionDetail, error)
	Get(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.SessionDetail, error)
	Participants(ctx context.Context, identity *auth.Identity, sessionID int64) ([]models.SessionParticipant, error)
	Join(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error)
	Cancel(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error)
	Confirm(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error)
	Complete(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error)
	Dashboard(ctx context.Context, identity *auth.Identity) (*models.CoachDashboard, error)
	ExportSessions(ctx context.Context, identity *auth.Identity) ([]byte, error)
}

type SessionHandler struct {
	service sessionApplicationService
	now     func() time.Time
}

func NewSessionHandler(service sessionApplicationService) *SessionHandler {
	return &SessionHandler{service: service, now: time.Now}
}

type createSessionRequest struct {
	MentorID        int64   `json:"mentorId" validate:"required,gt=0"`
	Type            string  `json:"type" validate:"omitempty,oneof=individual group"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string  `json:"time" validate:"required,datetime=15:04"`
	Duration        *int    `json:"duration" validate:"omitempty,min=15,max=1440"`
	MaxParticipants *int    `json:"maxParticipants" validate:"omitempty,min=2,max=500"`
	Location        *string `json:"location"`
	Notes           *string `json:"notes"`
}

func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	session, err := h.service.Create(c.UserContext(), middleware.IdentityFrom(c), services.CreateSessionInput{
		MentorID:        req.MentorID,
		Type:            req.Type,
		Date:            req.Date,
		Time:            req.Time,
		Duration:        req.Duration,
		MaxParticipants: req.MaxParticipants,
		Location:        req.Location,
		Notes:           req.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondCreated(c, fiber.Map{"session": session})
}

func (h *SessionHandler) List(c *fiber.Ctx) error {
	sessions, err := h.service.List(c.UserContext(), middleware.IdentityFrom(c), services.SessionListFilter{
		Type:   strings.TrimSpace(c.Query("type")),
		Status: strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sessionID, err := parseIDParam(c, "id", "session")
	if err != nil {
		return writeError(c, err)
	}
	session, err := h.service.Get(c.UserContext(), middleware.IdentityFrom(c), sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"session": session})
}

func (h *SessionHandler) Participants(c *fiber.Ctx) error {
	sessionID, err := parseIDParam(c, "id", "session")
	if err != nil {
		return writeError(c, err)
	}
	participants, err := h.service.Participants(c.UserContext(), middleware.IdentityFrom(c), sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"participants": participants})
}

func (h *SessionHandler) Join(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Join, "Successfully joined session")
}

func (h *SessionHandler) Cancel(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Cancel, "Session cancelled successfully")
}

func (h *SessionHandler) Confirm(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Confirm, "Session confirmed")
}

func (h *SessionHandler) Complete(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Complete, "Session completed")
}

type sessionMutation func(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error)

func (h *SessionHandler) mutate(c *fiber.Ctx, action sessionMutation, message string) error {
	sessionID, err := parseIDParam(c, "id", "session")
	if err != nil {
		return writeError(c, err)
	}
	session, err := action(c.UserContext(), middleware.IdentityFrom(c), sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"message": message, "session": session})
}

func (h *SessionHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.service.Dashboard(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"dashboard": dashboard})
}

func (h *SessionHandler) Export(c *fiber.Ctx) error {
	data, err := h.service.ExportSessions(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return writeError(c, err)
	}

	filename := fmt.Sprintf("sessions-%s.xlsx", h.now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Status(fiber.StatusOK).Send(data)
}
