package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
)

type paymentApplicationService interface {
	Create(ctx context.Context, identity *auth.Identity, input services.CreatePaymentInput) (*models.Payment, error)
	Get(ctx context.Context, identity *auth.Identity, paymentID int64) (*models.Payment, error)
}

type PaymentHandler struct {
	service paymentApplicationService
}

func NewPaymentHandler(service paymentApplicationService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type createPaymentRequest struct {
	SessionID int64    `json:"sessionId" validate:"required,gt=0"`
	Amount    *float64 `json:"amount" validate:"omitempty,gte=0,lte=99999999.99"`
	Currency  string   `json:"currency" validate:"omitempty,oneof=USD EUR GBP"`
}

func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	var req createPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	payment, err := h.service.Create(c.UserContext(), middleware.IdentityFrom(c), services.CreatePaymentInput{
		SessionID: req.SessionID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondCreated(c, fiber.Map{"payment": payment})
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	paymentID, err := parseIDParam(c, "id", "payment")
	if err != nil {
		return writeError(c, err)
	}
	payment, err := h.service.Get(c.UserContext(), middleware.IdentityFrom(c), paymentID)
	if err != nil {
		return writeError(c, err)
	}
	return respondOK(c, fiber.Map{"payment": payment})
}
