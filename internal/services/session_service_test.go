package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/events"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

func student(id int64) *auth.Identity {
	return &auth.Identity{UserID: id, Email: "student@example.com", Role: models.RoleStudent}
}

func coach(id int64) *auth.Identity {
	return &auth.Identity{UserID: id, Email: "coach@example.com", Role: models.RoleCoach}
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected app error with code %s, got %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

func newSessionFixture(t *testing.T) (*SessionService, *memSessionStore, *recordingPublisher) {
	t.Helper()
	store := newMemSessionStore()
	users := newStubUserStore(
		&models.User{ID: 1, Email: "coach@example.com", Name: "Coach", Role: models.RoleCoach, Price: floatPtr(60)},
		&models.User{ID: 2, Email: "free@example.com", Name: "No Price", Role: models.RoleCoach},
		&models.User{ID: 10, Email: "a@example.com", Name: "A", Role: models.RoleStudent},
	)
	publisher := &recordingPublisher{}
	service := NewSessionService(store, users, publisher, 50)
	return service, store, publisher
}

func TestSessionServiceCreateSnapshotsCoachPrice(t *testing.T) {
	service, store, publisher := newSessionFixture(t)

	session, err := service.Create(context.Background(), student(10), CreateSessionInput{
		MentorID: 1,
		Date:     "2026-11-02",
		Time:     "09:30",
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if session.Status != models.SessionStatusPending {
		t.Fatalf("expected pending status, got %s", session.Status)
	}
	if session.Type != models.SessionTypeIndividual {
		t.Fatalf("expected individual default, got %s", session.Type)
	}
	if session.Price != 60 {
		t.Fatalf("expected coach price 60, got %v", session.Price)
	}
	if session.DurationMinutes != 60 {
		t.Fatalf("expected default duration 60, got %d", session.DurationMinutes)
	}
	if !session.IsBoundStudent(10) {
		t.Fatalf("expected student 10 to be bound")
	}
	if got := publisher.types(); len(got) != 1 || got[0] != events.TopicSessionCreated {
		t.Fatalf("expected session.created event, got %v", got)
	}
	if store.lastCreate.Date.Format(time.DateOnly) != "2026-11-02" {
		t.Fatalf("unexpected date passed to store: %v", store.lastCreate.Date)
	}
}

func TestSessionServiceCreateFallsBackToDefaultPrice(t *testing.T) {
	service, _, _ := newSessionFixture(t)

	session, err := service.Create(context.Background(), student(10), CreateSessionInput{
		MentorID: 2,
		Date:     "2026-11-02",
		Time:     "09:30",
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if session.Price != 50 {
		t.Fatalf("expected default price 50, got %v", session.Price)
	}
}

func TestSessionServiceCreateValidatesInput(t *testing.T) {
	service, _, _ := newSessionFixture(t)

	_, err := service.Create(context.Background(), student(10), CreateSessionInput{
		MentorID:        1,
		Type:            "group",
		Date:            "02/11/2026",
		Time:            "9am",
		Duration:        intPtr(5),
		MaxParticipants: intPtr(1),
	})
	appErr := requireCode(t, err, apperr.CodeValidation)
	for _, field := range []string{"date", "time", "duration", "maxParticipants"} {
		if len(appErr.Fields[field]) == 0 {
			t.Fatalf("expected field error for %s, got %v", field, appErr.Fields)
		}
	}
}

func TestSessionServiceCreateRejectsOversizedValues(t *testing.T) {
	service, store, _ := newSessionFixture(t)

	_, err := service.Create(context.Background(), student(10), CreateSessionInput{
		MentorID:        1,
		Type:            "group",
		Date:            "2026-11-02",
		Time:            "09:30",
		Duration:        intPtr(100_000),
		MaxParticipants: intPtr(10_000),
	})
	appErr := requireCode(t, err, apperr.CodeValidation)
	for _, field := range []string{"duration", "maxParticipants"} {
		if len(appErr.Fields[field]) == 0 {
			t.Fatalf("expected field error for %s, got %v", field, appErr.Fields)
		}
	}
	if len(store.sessions) != 0 {
		t.Fatalf("expected no stored sessions, got %d", len(store.sessions))
	}
}

func TestSessionServiceCreateRejectsCoachesAndUnknownMentors(t *testing.T) {
	service, _, _ := newSessionFixture(t)
	input := CreateSessionInput{MentorID: 1, Date: "2026-11-02", Time: "10:00"}

	_, err := service.Create(context.Background(), coach(1), input)
	requireCode(t, err, apperr.CodeAuthorization)

	_, err = service.Create(context.Background(), nil, input)
	requireCode(t, err, apperr.CodeAuthentication)

	input.MentorID = 10
	_, err = service.Create(context.Background(), student(10), input)
	requireCode(t, err, apperr.CodeNotFound)

	input.MentorID = 999
	_, err = service.Create(context.Background(), student(10), input)
	requireCode(t, err, apperr.CodeNotFound)
}

func TestSessionServiceGroupSessionFillsUp(t *testing.T) {
	service, store, publisher := newSessionFixture(t)
	ctx := context.Background()

	created, err := service.Create(ctx, student(10), CreateSessionInput{
		MentorID:        1,
		Type:            "group",
		Date:            "2026-11-02",
		Time:            "18:00",
		MaxParticipants: intPtr(3),
	})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if created.CurrentParticipants != 1 {
		t.Fatalf("expected creator to count as first participant, got %d", created.CurrentParticipants)
	}

	_, err = service.Join(ctx, student(11), created.ID)
	requireCode(t, err, apperr.CodeConflict)

	if _, err := service.Confirm(ctx, coach(1), created.ID); err != nil {
		t.Fatalf("expected confirm to succeed, got %v", err)
	}

	joined, err := service.Join(ctx, student(11), created.ID)
	if err != nil {
		t.Fatalf("expected first join to succeed, got %v", err)
	}
	if joined.CurrentParticipants != 2 {
		t.Fatalf("expected 2 participants, got %d", joined.CurrentParticipants)
	}

	_, err = service.Join(ctx, student(11), created.ID)
	requireCode(t, err, apperr.CodeConflict)

	joined, err = service.Join(ctx, student(12), created.ID)
	if err != nil {
		t.Fatalf("expected second join to succeed, got %v", err)
	}
	if joined.CurrentParticipants != 3 {
		t.Fatalf("expected 3 participants, got %d", joined.CurrentParticipants)
	}

	_, err = service.Join(ctx, student(13), created.ID)
	requireCode(t, err, apperr.CodeCapacityExceeded)

	if got := store.snapshot(created.ID).CurrentParticipants; got != 3 {
		t.Fatalf("expected count to stay at 3, got %d", got)
	}

	joinedEvents := 0
	for _, topic := range publisher.types() {
		if topic == events.TopicSessionJoined {
			joinedEvents++
		}
	}
	if joinedEvents != 2 {
		t.Fatalf("expected 2 join events, got %d", joinedEvents)
	}
}

func TestSessionServiceConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	service, store, _ := newSessionFixture(t)
	session := store.put(models.Session{
		CoachID:         1,
		Type:            models.SessionTypeGroup,
		Date:            "2026-11-02",
		Time:            "18:00",
		DurationMinutes: 60,
		Status:          models.SessionStatusConfirmed,
		Price:           60,
		MaxParticipants: intPtr(2),
	})

	const attempts = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(studentID int64) {
			defer wg.Done()
			<-start
			_, err := service.Join(context.Background(), student(studentID), session.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(int64(100 + i))
	}
	close(start)
	wg.Wait()

	if successes != 2 {
		t.Fatalf("expected exactly 2 successful joins, got %d", successes)
	}
	for _, err := range failures {
		appErr, ok := apperr.As(err)
		if !ok || (appErr.Code != apperr.CodeCapacityExceeded && appErr.Code != apperr.CodeConflict) {
			t.Fatalf("expected capacity or conflict error, got %v", err)
		}
	}
	if got := store.snapshot(session.ID).CurrentParticipants; got != 2 {
		t.Fatalf("expected final count 2, got %d", got)
	}
	participants, _ := store.ListParticipants(context.Background(), session.ID)
	if len(participants) != 2 {
		t.Fatalf("expected 2 participant rows, got %d", len(participants))
	}
}

func TestSessionServiceJoinRejectsIndividualSessions(t *testing.T) {
	service, store, _ := newSessionFixture(t)
	for _, status := range []models.SessionStatus{
		models.SessionStatusPending,
		models.SessionStatusConfirmed,
		models.SessionStatusCompleted,
		models.SessionStatusCancelled,
	} {
		session := store.put(models.Session{
			CoachID: 1,
			Type:    models.SessionTypeIndividual,
			Status:  status,
		})
		_, err := service.Join(context.Background(), student(20), session.ID)
		appErr := requireCode(t, err, apperr.CodeConflict)
		if appErr.Message != msgOnlyGroupJoinable {
			t.Fatalf("unexpected message for %s session: %s", status, appErr.Message)
		}
	}
}

func TestSessionServiceJoinMissingSession(t *testing.T) {
	service, _, _ := newSessionFixture(t)
	_, err := service.Join(context.Background(), student(20), 404)
	requireCode(t, err, apperr.CodeNotFound)
}

func TestSessionServiceCancelRequiresRelation(t *testing.T) {
	service, store, _ := newSessionFixture(t)
	bound := int64(10)
	session := store.put(models.Session{
		CoachID:   1,
		StudentID: &bound,
		Type:      models.SessionTypeIndividual,
		Status:    models.SessionStatusConfirmed,
	})

	_, err := service.Cancel(context.Background(), student(77), session.ID)
	appErr := requireCode(t, err, apperr.CodeConflict)
	if appErr.Message != msgCancelForbidden {
		t.Fatalf("unexpected message: %s", appErr.Message)
	}
	_, err = service.Cancel(context.Background(), coach(2), session.ID)
	requireCode(t, err, apperr.CodeConflict)

	if got := store.snapshot(session.ID).Status; got != models.SessionStatusConfirmed {
		t.Fatalf("expected status to be untouched, got %s", got)
	}
}

func TestSessionServiceCancelRejectsUnboundGroupParticipant(t *testing.T) {
	service, store, publisher := newSessionFixture(t)
	ctx := context.Background()
	latest := int64(40)
	session := store.put(models.Session{
		CoachID:             1,
		StudentID:           &latest,
		Type:                models.SessionTypeGroup,
		Status:              models.SessionStatusConfirmed,
		MaxParticipants:     intPtr(4),
		CurrentParticipants: 3,
	})
	store.addParticipant(session.ID, 10)
	store.addParticipant(session.ID, 30)
	store.addParticipant(session.ID, 40)
	published := len(publisher.events)

	_, err := service.Cancel(ctx, student(30), session.ID)
	appErr := requireCode(t, err, apperr.CodeConflict)
	if appErr.Message != msgCancelForbidden {
		t.Fatalf("unexpected message: %s", appErr.Message)
	}
	if got := store.snapshot(session.ID).Status; got != models.SessionStatusConfirmed {
		t.Fatalf("participant must not cancel the group session, got %s", got)
	}
	if len(publisher.events) != published {
		t.Fatalf("rejected cancel must not publish events")
	}
}

func TestSessionServiceCancelByBoundStudentAndTerminalStates(t *testing.T) {
	service, store, publisher := newSessionFixture(t)
	ctx := context.Background()
	bound := int64(10)
	session := store.put(models.Session{
		CoachID:   1,
		StudentID: &bound,
		Type:      models.SessionTypeIndividual,
		Status:    models.SessionStatusConfirmed,
	})

	cancelled, err := service.Cancel(ctx, student(10), session.ID)
	if err != nil {
		t.Fatalf("expected bound student cancel to succeed, got %v", err)
	}
	if cancelled.Status != models.SessionStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	last := publisher.events[len(publisher.events)-1]
	if last.Type != events.TopicSessionCancelled {
		t.Fatalf("expected cancel event, got %s", last.Type)
	}
	for _, recipient := range last.Recipients {
		if recipient == 10 {
			t.Fatalf("actor should not be notified of own cancellation")
		}
	}

	_, err = service.Cancel(ctx, coach(1), session.ID)
	appErr := requireCode(t, err, apperr.CodeConflict)
	if appErr.Message != msgNotCancellable {
		t.Fatalf("unexpected message: %s", appErr.Message)
	}

	completed := store.put(models.Session{
		CoachID:   1,
		StudentID: &bound,
		Type:      models.SessionTypeIndividual,
		Status:    models.SessionStatusCompleted,
	})
	_, err = service.Cancel(ctx, student(10), completed.ID)
	requireCode(t, err, apperr.CodeConflict)
	if got := store.snapshot(completed.ID).Status; got != models.SessionStatusCompleted {
		t.Fatalf("completed session must stay completed, got %s", got)
	}
}

func TestSessionServiceCoachTransitions(t *testing.T) {
	service, store, _ := newSessionFixture(t)
	ctx := context.Background()
	bound := int64(10)
	session := store.put(models.Session{
		CoachID:   1,
		StudentID: &bound,
		Type:      models.SessionTypeIndividual,
		Status:    models.SessionStatusPending,
	})

	_, err := service.Complete(ctx, coach(1), session.ID)
	requireCode(t, err, apperr.CodeConflict)

	_, err = service.Confirm(ctx, coach(2), session.ID)
	requireCode(t, err, apperr.CodeAuthorization)

	_, err = service.Confirm(ctx, student(10), session.ID)
	requireCode(t, err, apperr.CodeAuthorization)

	confirmed, err := service.Confirm(ctx, coach(1), session.ID)
	if err != nil {
		t.Fatalf("expected confirm to succeed, got %v", err)
	}
	if confirmed.Status != models.SessionStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	_, err = service.Confirm(ctx, coach(1), session.ID)
	requireCode(t, err, apperr.CodeConflict)

	completed, err := service.Complete(ctx, coach(1), session.ID)
	if err != nil {
		t.Fatalf("expected complete to succeed, got %v", err)
	}
	if completed.Status != models.SessionStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
}

func TestSessionServiceGetAndListScopedToActor(t *testing.T) {
	service, store, _ := newSessionFixture(t)
	ctx := context.Background()
	bound := int64(10)
	own := store.put(models.Session{CoachID: 1, StudentID: &bound, Type: models.SessionTypeIndividual, Status: models.SessionStatusPending})
	other := int64(11)
	store.put(models.Session{CoachID: 2, StudentID: &other, Type: models.SessionTypeIndividual, Status: models.SessionStatusPending})

	if _, err := service.Get(ctx, student(10), own.ID); err != nil {
		t.Fatalf("expected bound student to read session, got %v", err)
	}
	_, err := service.Get(ctx, student(11), own.ID)
	requireCode(t, err, apperr.CodeAuthorization)

	_, err = service.Get(ctx, student(10), 999)
	requireCode(t, err, apperr.CodeNotFound)

	list, err := service.List(ctx, coach(1), SessionListFilter{})
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(list) != 1 || list[0].ID != own.ID {
		t.Fatalf("expected only the coach's session, got %+v", list)
	}

	_, err = service.List(ctx, coach(1), SessionListFilter{Status: "archived"})
	requireCode(t, err, apperr.CodeValidation)
}

func TestSessionServiceDashboardCountsCoachSessions(t *testing.T) {
	service, store, _ := newSessionFixture(t)
	service.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	first, second := int64(10), int64(11)
	store.put(models.Session{CoachID: 1, StudentID: &first, Type: models.SessionTypeIndividual, Status: models.SessionStatusConfirmed, Date: "2026-10-05"})
	store.put(models.Session{CoachID: 1, StudentID: &second, Type: models.SessionTypeIndividual, Status: models.SessionStatusConfirmed, Date: "2026-09-05"})
	store.put(models.Session{CoachID: 2, StudentID: &first, Type: models.SessionTypeIndividual, Status: models.SessionStatusConfirmed, Date: "2026-10-05"})

	dashboard, err := service.Dashboard(context.Background(), coach(1))
	if err != nil {
		t.Fatalf("expected dashboard, got %v", err)
	}
	if dashboard.TotalSessions != 2 || dashboard.TotalStudents != 2 || dashboard.UpcomingSessions != 1 {
		t.Fatalf("unexpected dashboard: %+v", dashboard)
	}
	if len(dashboard.RecentSessions) != 2 {
		t.Fatalf("expected 2 recent sessions, got %d", len(dashboard.RecentSessions))
	}

	_, err = service.Dashboard(context.Background(), student(10))
	requireCode(t, err, apperr.CodeAuthorization)
}
