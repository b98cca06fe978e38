package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
	"github.com/saeid-a/SoccerCoachBack/pkg/utils"
)

const (
	msgInvalidCredentials    = "Invalid email or password"
	msgInvalidRefreshToken   = "Invalid or expired refresh token"
	msgEmailTaken            = "User with this email already exists"
	msgSocialEmailRequired   = "Email is required for social login"
	msgSocialTokenInvalid    = "Invalid social login token"
	msgSocialTokenUnverified = "Social login token could not be verified"
	minPasswordLength        = 6

	// bcrypt rejects longer inputs
	maxPasswordBytes = 72
)

type authUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	FindBySocialIdentity(ctx context.Context, email, provider, externalID string) (*models.User, error)
	BackfillProviderID(ctx context.Context, userID int64, provider, externalID string) (*models.User, error)
}

// RefreshTokenStore is implemented by the Postgres and Redis token stores.
type RefreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Consume(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteByUserID(ctx context.Context, userID int64) error
}

type AuthConfig struct {
	JWTSecret             string
	JWTRefreshSecret      string
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	BcryptCost            int
	AllowUnverifiedSocial bool
}

type AuthService struct {
	users    authUserStore
	tokens   RefreshTokenStore
	verifier SocialVerifier
	cfg      AuthConfig
	now      func() time.Time
	newID    func() string

	dummyHashOnce sync.Once
	dummyHash     string
}

func NewAuthService(users authUserStore, tokens RefreshTokenStore, verifier SocialVerifier, cfg AuthConfig) *AuthService {
	if cfg.BcryptCost < utils.MinPasswordCost {
		cfg.BcryptCost = utils.MinPasswordCost
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = time.Hour
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		verifier: verifier,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type AuthResult struct {
	User   *models.User
	Tokens models.TokenPair
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
	Avatar   *string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	fields := map[string][]string{}
	if len(input.Password) < minPasswordLength {
		fields["password"] = append(fields["password"], "Password must be at least 6 characters")
	}
	if len(input.Password) > maxPasswordBytes {
		fields["password"] = append(fields["password"], "Password must be at most 72 bytes")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		fields["name"] = append(fields["name"], "Name is required")
	}
	role := models.RoleStudent
	if input.Role != "" {
		parsed, ok := models.ParseRole(input.Role)
		if !ok {
			fields["role"] = append(fields["role"], "Role must be student or coach")
		}
		role = parsed
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict(msgEmailTaken)
	} else if !isNoRows(err) {
		return nil, err
	}

	hashed, err := utils.HashPasswordWithCost(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: &hashed,
		Name:         name,
		Role:         role,
		Avatar:       input.Avatar,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict(msgEmailTaken)
		}
		return nil, err
	}

	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !isNoRows(err) {
			return nil, err
		}
		// spend the same bcrypt time as a real comparison
		utils.CheckPassword(password, s.placeholderHash())
		return nil, apperr.Authentication(msgInvalidCredentials)
	}
	if !user.HasLocalCredential() {
		utils.CheckPassword(password, s.placeholderHash())
		return nil, apperr.Authentication(msgInvalidCredentials)
	}
	if !utils.CheckPassword(password, *user.PasswordHash) {
		return nil, apperr.Authentication(msgInvalidCredentials)
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token. The stored record is consumed before the
// new pair is issued, so a token can be exchanged at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := utils.ValidateRefreshToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return nil, apperr.Authentication(msgInvalidRefreshToken)
	}

	record, err := s.tokens.Consume(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, apperr.Authentication(msgInvalidRefreshToken)
		}
		return nil, err
	}
	if record.Expired(s.now()) || strconv.FormatInt(record.UserID, 10) != claims.UserID {
		return nil, apperr.Authentication(msgInvalidRefreshToken)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.Authentication(msgInvalidRefreshToken)
		}
		return nil, err
	}
	return s.issue(ctx, user)
}

// Logout reports success for any input; clearing tokens client-side is what logs the user out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	claims, err := utils.ValidateRefreshToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return
	}
	if err := s.tokens.Delete(ctx, claims.ID); err != nil {
		slog.WarnContext(ctx, "delete refresh token on logout", "error", err)
	}
}

func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	return s.tokens.DeleteByUserID(ctx, userID)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, err
	}
	return user, nil
}

type SocialLoginInput struct {
	Provider       string
	Token          string
	Email          string
	Name           string
	ProviderUserID string
	Avatar         *string
}

func (s *AuthService) SocialLogin(ctx context.Context, input SocialLoginInput) (*AuthResult, error) {
	provider := strings.ToLower(strings.TrimSpace(input.Provider))
	if !isSupportedProvider(provider) {
		return nil, apperr.Validation("Validation failed", map[string][]string{
			"provider": {"Provider must be google, facebook or apple"},
		})
	}

	identity, err := s.resolveSocialIdentity(ctx, provider, input)
	if err != nil {
		return nil, err
	}
	if identity.Email == "" {
		return nil, apperr.Authentication(msgSocialEmailRequired)
	}

	user, err := s.users.FindBySocialIdentity(ctx, identity.Email, provider, identity.ExternalID)
	switch {
	case err == nil:
		if identity.ExternalID != "" && providerID(user, provider) == nil {
			updated, err := s.users.BackfillProviderID(ctx, user.ID, provider, identity.ExternalID)
			if err != nil && !isNoRows(err) {
				return nil, err
			}
			if updated != nil {
				user = updated
			}
		}
	case isNoRows(err):
		user, err = s.createSocialUser(ctx, provider, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.issue(ctx, user)
}

func (s *AuthService) resolveSocialIdentity(ctx context.Context, provider string, input SocialLoginInput) (*SocialIdentity, error) {
	if s.verifier != nil && s.verifier.Supports(provider) {
		verified, err := s.verifier.Verify(ctx, provider, input.Token)
		if err != nil {
			return nil, apperr.Authentication(msgSocialTokenInvalid)
		}
		if verified.Name == "" {
			verified.Name = strings.TrimSpace(input.Name)
		}
		if verified.Avatar == nil {
			verified.Avatar = input.Avatar
		}
		verified.Email = strings.ToLower(strings.TrimSpace(verified.Email))
		return verified, nil
	}

	if !s.cfg.AllowUnverifiedSocial {
		return nil, apperr.Authentication(msgSocialTokenUnverified)
	}
	return &SocialIdentity{
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Name:       strings.TrimSpace(input.Name),
		ExternalID: strings.TrimSpace(input.ProviderUserID),
		Avatar:     input.Avatar,
	}, nil
}

func (s *AuthService) createSocialUser(ctx context.Context, provider string, identity *SocialIdentity) (*models.User, error) {
	name := identity.Name
	if name == "" {
		name = strings.Split(identity.Email, "@")[0]
	}
	user := &models.User{
		Email:  identity.Email,
		Name:   name,
		Role:   models.RoleStudent,
		Avatar: identity.Avatar,
	}
	if identity.ExternalID != "" {
		externalID := identity.ExternalID
		switch provider {
		case "google":
			user.GoogleID = &externalID
		case "facebook":
			user.FacebookID = &externalID
		case "apple":
			user.AppleID = &externalID
		}
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// lost a race with a concurrent social login for the same account
		return s.users.FindBySocialIdentity(ctx, identity.Email, provider, identity.ExternalID)
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	userID := strconv.FormatInt(user.ID, 10)
	access, err := utils.GenerateAccessToken(utils.AccessTokenInput{
		UserID: userID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		ID:        s.newID(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenTTL),
	}
	refresh, err := utils.GenerateRefreshToken(userID, record.ID, s.cfg.JWTRefreshSecret, record.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:   user,
		Tokens: models.TokenPair{Token: access, RefreshToken: refresh},
	}, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyHashOnce.Do(func() {
		hashed, err := utils.HashPasswordWithCost(uuid.NewString(), s.cfg.BcryptCost)
		if err == nil {
			s.dummyHash = hashed
		}
	})
	return s.dummyHash
}

func normalizeEmail(value string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil || parsed.Address != strings.TrimSpace(value) {
		return "", apperr.Validation("Validation failed", map[string][]string{
			"email": {"Invalid email format"},
		})
	}
	return strings.ToLower(parsed.Address), nil
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "google", "facebook", "apple":
		return true
	default:
		return false
	}
}

func providerID(user *models.User, provider string) *string {
	switch provider {
	case "google":
		return user.GoogleID
	case "facebook":
		return user.FacebookID
	case "apple":
		return user.AppleID
	default:
		return nil
	}
}
