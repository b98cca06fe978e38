package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
)

type authApplicationService interface {
	Register(ctx context.Context, input services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string)
	LogoutAll(ctx context.Context, userID int64) error
	Me(ctx context.Context, userID int64) (*models.User, error)
	SocialLogin(ctx context.Context, input services.SocialLoginInput) (*services.AuthResult, error)
}

type AuthHandler struct {
	service authApplicationService
}

func NewAuthHandler(service authApplicationService) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
	Name     string  `json:"name" validate:"required"`
	Role     string  `json:"role" validate:"omitempty,oneof=student coach"`
	Avatar   *string `json:"avatar"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type socialUserInfo struct {
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	ID     string  `json:"id"`
	Avatar *string `json:"avatar"`
}

type socialLoginRequest struct {
	Provider string          `json:"provider" validate:"required,oneof=google facebook apple"`
	Token    string          `json:"token" validate:"required"`
	UserInfo *socialUserInfo `json:"userInfo"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	result, err := h.service.Register(c.UserContext(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		Avatar:   req.Avatar,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondCreated(c, authPayload(result))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	result, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, authPayload(result))
}

func (h *AuthHandler) SocialLogin(c *fiber.Ctx) error {
	var req socialLoginRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	input := services.SocialLoginInput{Provider: req.Provider, Token: req.Token}
	if req.UserInfo != nil {
		input.Email = req.UserInfo.Email
		input.Name = req.UserInfo.Name
		input.ProviderUserID = req.UserInfo.ID
		input.Avatar = req.UserInfo.Avatar
	}

	result, err := h.service.SocialLogin(c.UserContext(), input)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, authPayload(result))
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	result, err := h.service.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, authPayload(result))
}

// Logout succeeds even without a body; clients drop their tokens regardless.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req logoutRequest
	_ = c.BodyParser(&req)
	if req.RefreshToken != "" {
		h.service.Logout(c.UserContext(), req.RefreshToken)
	}
	return respondOK(c, fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		return writeError(c, apperr.Authentication(auth.MessageAuthenticationRequired))
	}
	if err := h.service.LogoutAll(c.UserContext(), identity.UserID); err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"message": "Logged out from all devices"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		return writeError(c, apperr.Authentication(auth.MessageAuthenticationRequired))
	}
	user, err := h.service.Me(c.UserContext(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"user": user})
}

func authPayload(result *services.AuthResult) fiber.Map {
	return fiber.Map{
		"user":         result.User,
		"token":        result.Tokens.Token,
		"refreshToken": result.Tokens.RefreshToken,
	}
}
