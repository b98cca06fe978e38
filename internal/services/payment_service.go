package services

import (
	"context"
	"strings"

	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
)

const defaultCurrency = "USD"

var supportedCurrencies = map[string]struct{}{
	"USD": {},
	"EUR": {},
	"GBP": {},
}

type paymentStore interface {
	Create(ctx context.Context, input repository.CreatePaymentInput) (*models.Payment, error)
	GetByID(ctx context.Context, paymentID int64) (*models.Payment, error)
}

type sessionMembership interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	IsParticipant(ctx context.Context, sessionID, studentID int64) (bool, error)
}

type PaymentService struct {
	payments paymentStore
	sessions sessionMembership
}

func NewPaymentService(payments paymentStore, sessions sessionMembership) *PaymentService {
	return &PaymentService{payments: payments, sessions: sessions}
}

type CreatePaymentInput struct {
	SessionID int64
	Amount    *float64
	Currency  string
}

// Create records a completed payment; there is no gateway behind it.
func (s *PaymentService) Create(
	ctx context.Context,
	identity *auth.Identity,
	input CreatePaymentInput,
) (*models.Payment, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}

	fields := map[string][]string{}
	if input.SessionID <= 0 {
		fields["sessionId"] = []string{"Session ID is required"}
	}
	if input.Amount != nil && (*input.Amount < 0 || *input.Amount > models.MaxMoneyAmount) {
		fields["amount"] = []string{"Amount must be between 0 and 99999999.99"}
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if _, ok := supportedCurrencies[currency]; !ok {
		fields["currency"] = []string{"Invalid currency"}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields)
	}

	session, err := s.sessions.GetByID(ctx, input.SessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Session")
		}
		return nil, err
	}
	if !session.IsBoundStudent(identity.UserID) {
		participant, err := s.sessions.IsParticipant(ctx, session.ID, identity.UserID)
		if err != nil {
			return nil, err
		}
		if !participant {
			return nil, apperr.Authorization("Only a student of this session can pay for it")
		}
	}

	amount := session.Price
	if input.Amount != nil {
		amount = *input.Amount
	}

	return s.payments.Create(ctx, repository.CreatePaymentInput{
		SessionID: session.ID,
		UserID:    identity.UserID,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentStatusCompleted,
	})
}

func (s *PaymentService) Get(ctx context.Context, identity *auth.Identity, paymentID int64) (*models.Payment, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Payment")
		}
		return nil, err
	}
	if err := auth.CanAccessOwned(identity, payment.UserID); err != nil {
		return nil, err
	}
	return payment, nil
}
