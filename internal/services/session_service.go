package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/events"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
)

const (
	msgOnlyGroupJoinable = "Only group sessions can be joined"
	msgNotJoinable       = "Session is not available for joining"
	msgAlreadyJoined     = "Already joined this session"
	msgSessionFull       = "Session is full"
	msgCancelForbidden   = "You do not have permission to cancel this session"
	msgNotCancellable    = "Session can no longer be cancelled"

	defaultDurationMinutes = 60
	minDurationMinutes     = 15
	recentSessionsLimit    = 10
)

type sessionStore interface {
	Create(ctx context.Context, input repository.CreateSessionInput) (*models.Session, error)
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	GetDetailByID(ctx context.Context, sessionID int64) (*models.SessionDetail, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.SessionDetail, error)
	ConditionalIncrementParticipants(ctx context.Context, sessionID, studentID int64) (*models.Session, error)
	UpdateStatusIfCurrent(ctx context.Context, sessionID int64, current, next models.SessionStatus) (*models.Session, error)
	IsParticipant(ctx context.Context, sessionID, studentID int64) (bool, error)
	ListParticipants(ctx context.Context, sessionID int64) ([]models.SessionParticipant, error)
	CoachStats(ctx context.Context, coachID int64, today time.Time) (*repository.CoachStats, error)
	RecentByCoach(ctx context.Context, coachID int64, limit int) ([]models.SessionDetail, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type SessionService struct {
	sessions     sessionStore
	users        userReader
	events       events.Publisher
	defaultPrice float64
	now          func() time.Time
}

func NewSessionService(
	sessions sessionStore,
	users userReader,
	publisher events.Publisher,
	defaultPrice float64,
) *SessionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SessionService{
		sessions:     sessions,
		users:        users,
		events:       publisher,
		defaultPrice: defaultPrice,
		now:          time.Now,
	}
}

type CreateSessionInput struct {
	MentorID        int64
	Type            string
	Date            string
	Time            string
	Duration        *int
	MaxParticipants *int
	Location        *string
	Notes           *string
}

func (s *SessionService) Create(
	ctx context.Context,
	identity *auth.Identity,
	input CreateSessionInput,
) (*models.Session, error) {
	if err := auth.Authorize(identity, models.RoleStudent); err != nil {
		return nil, err
	}

	params, err := s.validateCreate(input)
	if err != nil {
		return nil, err
	}

	coach, err := s.users.GetByID(ctx, input.MentorID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Mentor")
		}
		return nil, err
	}
	if coach.Role != models.RoleCoach {
		return nil, apperr.NotFound("Mentor")
	}

	// price is copied now; later coach price changes never touch this row
	params.Price = s.defaultPrice
	if coach.Price != nil {
		params.Price = *coach.Price
	}
	params.CoachID = coach.ID
	params.StudentID = identity.UserID

	session, err := s.sessions.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, events.Event{
		Type:       events.TopicSessionCreated,
		ActorID:    identity.UserID,
		Recipients: []int64{session.CoachID},
		SessionID:  int64Ptr(session.ID),
		Data:       session,
	})
	return session, nil
}

func (s *SessionService) validateCreate(input CreateSessionInput) (repository.CreateSessionInput, error) {
	fields := map[string][]string{}
	params := repository.CreateSessionInput{
		Location: trimmedOrNil(input.Location),
		Notes:    trimmedOrNil(input.Notes),
	}

	if input.MentorID <= 0 {
		fields["mentorId"] = append(fields["mentorId"], "Mentor is required")
	}

	sessionType := models.SessionType(strings.ToLower(strings.TrimSpace(input.Type)))
	switch sessionType {
	case "":
		sessionType = models.SessionTypeIndividual
	case models.SessionTypeIndividual, models.SessionTypeGroup:
	default:
		fields["type"] = append(fields["type"], "Type must be individual or group")
	}
	params.Type = sessionType

	date, err := time.Parse(time.DateOnly, strings.TrimSpace(input.Date))
	if err != nil {
		fields["date"] = append(fields["date"], "Date must be formatted as YYYY-MM-DD")
	}
	params.Date = date

	clock, err := time.Parse("15:04", strings.TrimSpace(input.Time))
	if err != nil {
		fields["time"] = append(fields["time"], "Time must be formatted as HH:MM")
	} else {
		params.Time = clock.Format("15:04")
	}

	params.DurationMinutes = defaultDurationMinutes
	if input.Duration != nil {
		if *input.Duration < minDurationMinutes || *input.Duration > models.MaxSessionMinutes {
			fields["duration"] = append(fields["duration"], "Duration must be between 15 and 1440 minutes")
		}
		params.DurationMinutes = *input.Duration
	}

	if sessionType == models.SessionTypeGroup {
		if input.MaxParticipants == nil || *input.MaxParticipants < 2 {
			fields["maxParticipants"] = append(fields["maxParticipants"], "Group sessions need at least 2 participants")
		} else if *input.MaxParticipants > models.MaxSessionParticipants {
			fields["maxParticipants"] = append(fields["maxParticipants"], "Group sessions allow at most 500 participants")
		} else {
			maxParticipants := *input.MaxParticipants
			params.MaxParticipants = &maxParticipants
		}
	}

	if len(fields) > 0 {
		return params, apperr.Validation("Validation failed", fields)
	}
	return params, nil
}

// Join adds the student to a confirmed group session. Capacity is enforced by
// the store's conditional increment, never by the checks below.
func (s *SessionService) Join(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	if err := auth.Authorize(identity, models.RoleStudent); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := joinPrecondition(session); err != nil {
		return nil, err
	}

	joined, err := s.sessions.IsParticipant(ctx, sessionID, identity.UserID)
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, apperr.Conflict(msgAlreadyJoined)
	}

	updated, err := s.sessions.ConditionalIncrementParticipants(ctx, sessionID, identity.UserID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, apperr.Conflict(msgAlreadyJoined)
		case isNoRows(err):
			return nil, s.explainRejectedJoin(ctx, sessionID)
		default:
			return nil, err
		}
	}

	publish(ctx, s.events, events.Event{
		Type:       events.TopicSessionJoined,
		ActorID:    identity.UserID,
		Recipients: []int64{updated.CoachID},
		SessionID:  int64Ptr(updated.ID),
		Data:       updated,
	})
	return updated, nil
}

func joinPrecondition(session *models.Session) error {
	if session.Type != models.SessionTypeGroup {
		return apperr.Conflict(msgOnlyGroupJoinable)
	}
	if session.Status != models.SessionStatusConfirmed {
		return apperr.Conflict(msgNotJoinable)
	}
	if session.MaxParticipants != nil && session.CurrentParticipants >= *session.MaxParticipants {
		return apperr.CapacityExceeded(msgSessionFull)
	}
	return nil
}

// explainRejectedJoin re-reads the row after the conditional update matched
// nothing, to report why.
func (s *SessionService) explainRejectedJoin(ctx context.Context, sessionID int64) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := joinPrecondition(session); err != nil {
		return err
	}
	return apperr.CapacityExceeded(msgSessionFull)
}

func (s *SessionService) Confirm(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	return s.coachTransition(ctx, identity, sessionID,
		models.SessionStatusPending, models.SessionStatusConfirmed, events.TopicSessionConfirmed)
}

func (s *SessionService) Complete(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	return s.coachTransition(ctx, identity, sessionID,
		models.SessionStatusConfirmed, models.SessionStatusCompleted, events.TopicSessionCompleted)
}

func (s *SessionService) coachTransition(
	ctx context.Context,
	identity *auth.Identity,
	sessionID int64,
	from models.SessionStatus,
	to models.SessionStatus,
	topic string,
) (*models.Session, error) {
	if err := auth.Authorize(identity, models.RoleCoach); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CoachID != identity.UserID {
		return nil, apperr.Authorization("Only the session's coach can change its status")
	}
	if session.Status != from {
		return nil, invalidTransition(session.Status, to)
	}

	updated, err := s.sessions.UpdateStatusIfCurrent(ctx, sessionID, from, to)
	if err != nil {
		if isNoRows(err) {
			return nil, invalidTransition(session.Status, to)
		}
		return nil, err
	}

	s.publishToAudience(ctx, topic, identity.UserID, updated)
	return updated, nil
}

func invalidTransition(from, to models.SessionStatus) error {
	return apperr.Conflict(fmt.Sprintf("Session cannot move from %s to %s", from, to))
}

// Cancel is open to the coach and the bound student only. Other group
// participants cannot cancel the session for everyone.
func (s *SessionService) Cancel(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.CoachID != identity.UserID && !session.IsBoundStudent(identity.UserID) {
		return nil, apperr.Conflict(msgCancelForbidden)
	}
	if session.Status.Terminal() {
		return nil, apperr.Conflict(msgNotCancellable)
	}

	updated, err := s.sessions.UpdateStatusIfCurrent(ctx, sessionID, session.Status, models.SessionStatusCancelled)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.Conflict(msgNotCancellable)
		}
		return nil, err
	}

	s.publishToAudience(ctx, events.TopicSessionCancelled, identity.UserID, updated)
	return updated, nil
}

type SessionListFilter struct {
	Type   string
	Status string
}

func (s *SessionService) List(
	ctx context.Context,
	identity *auth.Identity,
	filter SessionListFilter,
) ([]models.SessionDetail, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}

	fields := map[string][]string{}
	if filter.Type != "" && filter.Type != string(models.SessionTypeIndividual) && filter.Type != string(models.SessionTypeGroup) {
		fields["type"] = []string{"Type must be individual or group"}
	}
	switch models.SessionStatus(filter.Status) {
	case "", models.SessionStatusPending, models.SessionStatusConfirmed,
		models.SessionStatusCompleted, models.SessionStatusCancelled:
	default:
		fields["status"] = []string{"Unknown session status"}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields)
	}

	return s.sessions.List(ctx, repository.SessionListFilter{
		ActorID: identity.UserID,
		Role:    identity.Role,
		Type:    filter.Type,
		Status:  filter.Status,
	})
}

func (s *SessionService) Get(ctx context.Context, identity *auth.Identity, sessionID int64) (*models.SessionDetail, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}

	detail, err := s.sessions.GetDetailByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Session")
		}
		return nil, err
	}

	related, err := s.isRelated(ctx, identity, &detail.Session)
	if err != nil {
		return nil, err
	}
	if !related {
		return nil, apperr.Authorization(auth.MessageInsufficientPermission)
	}
	return detail, nil
}

func (s *SessionService) Participants(
	ctx context.Context,
	identity *auth.Identity,
	sessionID int64,
) ([]models.SessionParticipant, error) {
	if err := auth.Authorize(identity); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	related, err := s.isRelated(ctx, identity, session)
	if err != nil {
		return nil, err
	}
	if !related {
		return nil, apperr.Authorization(auth.MessageInsufficientPermission)
	}
	return s.sessions.ListParticipants(ctx, sessionID)
}

func (s *SessionService) Dashboard(ctx context.Context, identity *auth.Identity) (*models.CoachDashboard, error) {
	if err := auth.Authorize(identity, models.RoleCoach); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := s.sessions.CoachStats(ctx, identity.UserID, today)
	if err != nil {
		return nil, err
	}
	recent, err := s.sessions.RecentByCoach(ctx, identity.UserID, recentSessionsLimit)
	if err != nil {
		return nil, err
	}

	return &models.CoachDashboard{
		TotalStudents:    stats.TotalStudents,
		TotalSessions:    stats.TotalSessions,
		PendingVideos:    stats.PendingVideos,
		UpcomingSessions: stats.UpcomingSessions,
		RecentSessions:   recent,
	}, nil
}

func (s *SessionService) getSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("Session")
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) isRelated(ctx context.Context, identity *auth.Identity, session *models.Session) (bool, error) {
	return sessionRelated(ctx, s.sessions, identity, session)
}

// publishToAudience notifies everyone tied to the session except the actor.
func (s *SessionService) publishToAudience(ctx context.Context, topic string, actorID int64, session *models.Session) {
	recipients := []int64{session.CoachID}
	if session.StudentID != nil {
		recipients = append(recipients, *session.StudentID)
	}
	if session.Type == models.SessionTypeGroup {
		participants, err := s.sessions.ListParticipants(ctx, session.ID)
		if err == nil {
			for _, participant := range participants {
				recipients = append(recipients, participant.StudentID)
			}
		}
	}

	filtered := recipients[:0]
	for _, id := range recipients {
		if id != actorID {
			filtered = append(filtered, id)
		}
	}

	publish(ctx, s.events, events.Event{
		Type:       topic,
		ActorID:    actorID,
		Recipients: filtered,
		SessionID:  int64Ptr(session.ID),
		Data:       session,
	})
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
