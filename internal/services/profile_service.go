package services

import (
	"context"
	"strings"

	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
)

type profileStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, input repository.UpdateProfileInput) (*models.User, error)
	UpdateCoachProfile(ctx context.Context, coachID int64, input repository.UpdateCoachProfileInput) (*models.User, error)
	ListMentors(ctx context.Context, filter repository.MentorFilter) ([]models.Mentor, error)
	GetMentor(ctx context.Context, id int64) (*models.Mentor, error)
	ListStudentsForCoach(ctx context.Context, coachID int64, search string) ([]models.User, error)
}

// ProfileService serves user profiles, coach profiles and the mentor directory.
type ProfileService struct {
	users profileStore
}

func NewProfileService(users profileStore) *ProfileService {
	return &ProfileService{users: users}
}

func (s *ProfileService) GetProfile(ctx context.Context, identity *auth.Identity) (*models.User, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}
	return s.getUser(ctx, identity.UserID)
}

// GetUser lets coaches read any profile and everyone else only their own.
func (s *ProfileService) GetUser(ctx context.Context, identity *auth.Identity, userID int64) (*models.User, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := auth.CanAccessOwned(identity, user.ID, models.RoleCoach); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProfileService) UpdateProfile(
	ctx context.Context,
	identity *auth.Identity,
	input repository.UpdateProfileInput,
) (*models.User, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperr.Validation("Validation failed", map[string][]string{
				"name": {"Name cannot be empty"},
			})
		}
		input.Name = &name
	}

	user, err := s.users.UpdateProfile(ctx, identity.UserID, input)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, err
	}
	return user, nil
}

// UpdateCoachProfile changes the listed price for future bookings only.
func (s *ProfileService) UpdateCoachProfile(
	ctx context.Context,
	identity *auth.Identity,
	input repository.UpdateCoachProfileInput,
) (*models.User, error) {
	if err := auth.Authorize(identity, models.RoleCoach); err != nil {
		return nil, err
	}

	fields := map[string][]string{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			fields["name"] = []string{"Name cannot be empty"}
		}
		input.Name = &name
	}
	if input.Price != nil && (*input.Price < 0 || *input.Price > models.MaxMoneyAmount) {
		fields["price"] = []string{"Price must be between 0 and 99999999.99"}
	}
	if input.Specialties != nil {
		cleaned := make([]string, 0, len(*input.Specialties))
		for _, specialty := range *input.Specialties {
			if trimmed := strings.TrimSpace(specialty); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		input.Specialties = &cleaned
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields)
	}

	coach, err := s.users.UpdateCoachProfile(ctx, identity.UserID, input)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Coach")
		}
		return nil, err
	}
	return coach, nil
}

func (s *ProfileService) ListMentors(ctx context.Context, filter repository.MentorFilter) ([]models.Mentor, error) {
	return s.users.ListMentors(ctx, filter)
}

func (s *ProfileService) GetMentor(ctx context.Context, mentorID int64) (*models.Mentor, error) {
	mentor, err := s.users.GetMentor(ctx, mentorID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Mentor")
		}
		return nil, err
	}
	return mentor, nil
}

func (s *ProfileService) ListStudents(ctx context.Context, identity *auth.Identity, search string) ([]models.User, error) {
	if err := auth.Authorize(identity, models.RoleCoach); err != nil {
		return nil, err
	}
	return s.users.ListStudentsForCoach(ctx, identity.UserID, search)
}

func (s *ProfileService) getUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, err
	}
	return user, nil
}
