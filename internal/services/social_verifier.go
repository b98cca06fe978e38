package services

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

type SocialIdentity struct {
	Email      string
	Name       string
	ExternalID string
	Avatar     *string
}

// SocialVerifier checks a provider-issued identity token and returns the
// claims it vouches for.
type SocialVerifier interface {
	Supports(provider string) bool
	Verify(ctx context.Context, provider, token string) (*SocialIdentity, error)
}

type idTokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates Google ID tokens against the OAuth client id.
type GoogleVerifier struct {
	clientID string
	validate idTokenValidator
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

func (v *GoogleVerifier) Supports(provider string) bool {
	return v != nil && v.clientID != "" && provider == "google"
}

func (v *GoogleVerifier) Verify(ctx context.Context, provider, token string) (*SocialIdentity, error) {
	if !v.Supports(provider) {
		return nil, fmt.Errorf("provider %q is not verifiable", provider)
	}
	if token == "" {
		return nil, errors.New("id token is required")
	}

	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		email = ""
	}
	name, _ := payload.Claims["name"].(string)

	identity := &SocialIdentity{
		Email:      email,
		Name:       name,
		ExternalID: payload.Subject,
	}
	if picture, ok := payload.Claims["picture"].(string); ok && picture != "" {
		identity.Avatar = &picture
	}
	return identity, nil
}
