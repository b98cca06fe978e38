package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
)

type profileApplicationService interface {
	GetProfile(ctx context.Context, identity *auth.Identity) (*models.User, error)
	GetUser(ctx context.Context, identity *auth.Identity, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, identity *auth.Identity, input repository.UpdateProfileInput) (*models.User, error)
	UpdateCoachProfile(ctx context.Context, identity *auth.Identity, input repository.UpdateCoachProfileInput) (*models.User, error)
	ListMentors(ctx context.Context, filter repository.MentorFilter) ([]models.Mentor, error)
	GetMentor(ctx context.Context, mentorID int64) (*models.Mentor, error)
	ListStudents(ctx context.Context, identity *auth.Identity, search string) ([]models.User, error)
}

// ProfileHandler serves /users, /coach profile and the public /mentors directory.
type ProfileHandler struct {
	service profileApplicationService
}

func NewProfileHandler(service profileApplicationService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type updateProfileRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1"`
	Phone  *string `json:"phone"`
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar" validate:"omitempty,url"`
}

type updateCoachProfileRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1"`
	Bio         *string   `json:"bio"`
	Phone       *string   `json:"phone"`
	Specialties *[]string `json:"specialties" validate:"omitempty,max=20"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0,lte=99999999.99"`
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.service.GetProfile(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"user": user})
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := h.service.UpdateProfile(c.UserContext(), middleware.IdentityFrom(c), repository.UpdateProfileInput{
		Name:   req.Name,
		Phone:  trimmed(req.Phone),
		Bio:    trimmed(req.Bio),
		Avatar: req.Avatar,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"user": user})
}

func (h *ProfileHandler) GetUser(c *fiber.Ctx) error {
	userID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return writeError(c, err)
	}
	user, err := h.service.GetUser(c.UserContext(), middleware.IdentityFrom(c), userID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"user": user})
}

func (h *ProfileHandler) UpdateCoachProfile(c *fiber.Ctx) error {
	var req updateCoachProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := h.service.UpdateCoachProfile(c.UserContext(), middleware.IdentityFrom(c), repository.UpdateCoachProfileInput{
		Name:        req.Name,
		Bio:         trimmed(req.Bio),
		Phone:       trimmed(req.Phone),
		Specialties: req.Specialties,
		Price:       req.Price,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"user": user})
}

func (h *ProfileHandler) ListStudents(c *fiber.Ctx) error {
	users, err := h.service.ListStudents(c.UserContext(), middleware.IdentityFrom(c), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"users": users})
}

func (h *ProfileHandler) ListMentors(c *fiber.Ctx) error {
	mentors, err := h.service.ListMentors(c.UserContext(), repository.MentorFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Specialty: strings.TrimSpace(c.Query("specialty")),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"mentors": mentors})
}

func (h *ProfileHandler) GetMentor(c *fiber.Ctx) error {
	mentorID, err := parseIDParam(c, "id", "mentor")
	if err != nil {
		return writeError(c, err)
	}
	mentor, err := h.service.GetMentor(c.UserContext(), mentorID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"mentor": mentor})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
