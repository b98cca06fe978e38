package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/saeid-a/SoccerCoachBack/internal/events"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
)

// memSessionStore mirrors the SQL semantics of SessionRepository, including
// the single-step conditional increment.
type memSessionStore struct {
	mu           sync.Mutex
	nextID       int64
	sessions     map[int64]*models.Session
	participants map[int64]map[int64]time.Time
	lastCreate   repository.CreateSessionInput
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions:     make(map[int64]*models.Session),
		participants: make(map[int64]map[int64]time.Time),
	}
}

func (m *memSessionStore) put(session models.Session) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == 0 {
		m.nextID++
		session.ID = m.nextID
	} else if session.ID > m.nextID {
		m.nextID = session.ID
	}
	stored := session
	m.sessions[stored.ID] = &stored
	return &stored
}

func (m *memSessionStore) addParticipant(sessionID, studentID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[sessionID] == nil {
		m.participants[sessionID] = make(map[int64]time.Time)
	}
	m.participants[sessionID][studentID] = time.Now()
}

func (m *memSessionStore) snapshot(sessionID int64) models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sessions[sessionID]
}

func (m *memSessionStore) Create(_ context.Context, input repository.CreateSessionInput) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCreate = input
	m.nextID++
	studentID := input.StudentID
	session := &models.Session{
		ID:              m.nextID,
		CoachID:         input.CoachID,
		StudentID:       &studentID,
		Type:            input.Type,
		Date:            input.Date.Format(time.DateOnly),
		Time:            input.Time,
		DurationMinutes: input.DurationMinutes,
		Status:          models.SessionStatusPending,
		Price:           input.Price,
		MaxParticipants: input.MaxParticipants,
		Location:        input.Location,
		Notes:           input.Notes,
	}
	if input.Type == models.SessionTypeGroup {
		session.CurrentParticipants = 1
		m.participants[session.ID] = map[int64]time.Time{input.StudentID: time.Now()}
	}
	m.sessions[session.ID] = session
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) GetByID(_ context.Context, sessionID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) GetDetailByID(ctx context.Context, sessionID int64) (*models.SessionDetail, error) {
	session, err := m.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: *session}, nil
}

func (m *memSessionStore) List(_ context.Context, filter repository.SessionListFilter) ([]models.SessionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.SessionDetail, 0)
	for _, session := range m.sessions {
		var visible bool
		if filter.Role == models.RoleCoach {
			visible = session.CoachID == filter.ActorID
		} else {
			_, joined := m.participants[session.ID][filter.ActorID]
			visible = session.IsBoundStudent(filter.ActorID) || joined
		}
		if !visible {
			continue
		}
		if filter.Type != "" && string(session.Type) != filter.Type {
			continue
		}
		if filter.Status != "" && string(session.Status) != filter.Status {
			continue
		}
		result = append(result, models.SessionDetail{Session: *session})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memSessionStore) ConditionalIncrementParticipants(_ context.Context, sessionID, studentID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok || session.Type != models.SessionTypeGroup || session.Status != models.SessionStatusConfirmed ||
		session.MaxParticipants == nil || session.CurrentParticipants >= *session.MaxParticipants {
		return nil, pgx.ErrNoRows
	}
	if _, exists := m.participants[sessionID][studentID]; exists {
		return nil, &pgconn.PgError{Code: pgUniqueViolation}
	}
	if m.participants[sessionID] == nil {
		m.participants[sessionID] = make(map[int64]time.Time)
	}
	m.participants[sessionID][studentID] = time.Now()
	session.CurrentParticipants++
	joiner := studentID
	session.StudentID = &joiner
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) UpdateStatusIfCurrent(_ context.Context, sessionID int64, current, next models.SessionStatus) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok || session.Status != current {
		return nil, pgx.ErrNoRows
	}
	session.Status = next
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) IsParticipant(_ context.Context, sessionID, studentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.participants[sessionID][studentID]
	return ok, nil
}

func (m *memSessionStore) ListParticipants(_ context.Context, sessionID int64) ([]models.SessionParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.SessionParticipant, 0)
	for studentID, joinedAt := range m.participants[sessionID] {
		result = append(result, models.SessionParticipant{SessionID: sessionID, StudentID: studentID, JoinedAt: joinedAt})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *memSessionStore) CoachStats(_ context.Context, coachID int64, today time.Time) (*repository.CoachStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.CoachStats{}
	students := map[int64]struct{}{}
	for _, session := range m.sessions {
		if session.CoachID != coachID {
			continue
		}
		stats.TotalSessions++
		if session.StudentID != nil {
			students[*session.StudentID] = struct{}{}
		}
		for studentID := range m.participants[session.ID] {
			students[studentID] = struct{}{}
		}
		if session.Status == models.SessionStatusConfirmed && session.Date >= today.Format(time.DateOnly) {
			stats.UpcomingSessions++
		}
	}
	stats.TotalStudents = len(students)
	return stats, nil
}

func (m *memSessionStore) RecentByCoach(ctx context.Context, coachID int64, limit int) ([]models.SessionDetail, error) {
	all, err := m.List(ctx, repository.SessionListFilter{ActorID: coachID, Role: models.RoleCoach})
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type stubUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newStubUserStore(users ...*models.User) *stubUserStore {
	store := &stubUserStore{users: make(map[int64]*models.User)}
	for _, user := range users {
		store.users[user.ID] = user
		if user.ID > store.nextID {
			store.nextID = user.ID
		}
	}
	return store
}

func (s *stubUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return &pgconn.PgError{Code: pgUniqueViolation}
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *stubUserStore) FindBySocialIdentity(_ context.Context, email, provider, externalID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	if externalID != "" {
		for _, user := range s.users {
			if id := providerID(user, provider); id != nil && *id == externalID {
				copied := *user
				return &copied, nil
			}
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) BackfillProviderID(_ context.Context, userID int64, provider, externalID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || providerID(user, provider) != nil {
		return nil, pgx.ErrNoRows
	}
	id := externalID
	switch provider {
	case "google":
		user.GoogleID = &id
	case "facebook":
		user.FacebookID = &id
	case "apple":
		user.AppleID = &id
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]models.RefreshToken)}
}

func (m *memTokenStore) Create(_ context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = *token
	return nil
}

func (m *memTokenStore) Consume(_ context.Context, tokenID string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[tokenID]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	delete(m.tokens, tokenID)
	return &token, nil
}

func (m *memTokenStore) Delete(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, tokenID)
	return nil
}

func (m *memTokenStore) DeleteByUserID(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, token := range m.tokens {
		if token.UserID == userID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *memTokenStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func stringPtr(v string) *string { return &v }
