package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
)

type stubSessionService struct {
	createResult  *models.Session
	createErr     error
	listResult    []models.SessionDetail
	mutateResult  *models.Session
	mutateErr     error
	exportData    []byte
	exportErr     error
	lastIdentity  *auth.Identity
	lastCreate    services.CreateSessionInput
	lastFilter    services.SessionListFilter
	lastSessionID int64
	lastMutation  string
	createCalls   int
}

func (s *stubSessionService) Create(_ context.Context, identity *auth.Identity, input services.CreateSessionInput) (*models.Session, error) {
	s.createCalls++
	s.lastIdentity = identity
	s.lastCreate = input
	return s.createResult, s.createErr
}

func (s *stubSessionService) List(_ context.Context, identity *auth.Identity, filter services.SessionListFilter) ([]models.SessionDetail, error) {
	s.lastIdentity = identity
	s.lastFilter = filter
	return s.listResult, nil
}

func (s *stubSessionService) Get(_ context.Context, identity *auth.Identity, sessionID int64) (*models.SessionDetail, error) {
	s.lastIdentity = identity
	s.lastSessionID = sessionID
	return nil, apperr.NotFound("Session")
}

func (s *stubSessionService) Participants(_ context.Context, _ *auth.Identity, sessionID int64) ([]models.SessionParticipant, error) {
	s.lastSessionID = sessionID
	return []models.SessionParticipant{}, nil
}

func (s *stubSessionService) mutation(name string, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	s.lastMutation = name
	s.lastIdentity = identity
	s.lastSessionID = sessionID
	return s.mutateResult, s.mutateErr
}

func (s *stubSessionService) Join(_ context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	return s.mutation("join", identity, sessionID)
}

func (s *stubSessionService) Cancel(_ context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	return s.mutation("cancel", identity, sessionID)
}

func (s *stubSessionService) Confirm(_ context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	return s.mutation("confirm", identity, sessionID)
}

func (s *stubSessionService) Complete(_ context.Context, identity *auth.Identity, sessionID int64) (*models.Session, error) {
	return s.mutation("complete", identity, sessionID)
}

func (s *stubSessionService) Dashboard(_ context.Context, _ *auth.Identity) (*models.CoachDashboard, error) {
	return &models.CoachDashboard{TotalStudents: 3}, nil
}

func (s *stubSessionService) ExportSessions(_ context.Context, identity *auth.Identity) ([]byte, error) {
	s.lastIdentity = identity
	return s.exportData, s.exportErr
}

func TestCreateSessionReturnsCreatedSession(t *testing.T) {
	service := &stubSessionService{
		createResult: &models.Session{ID: 91, CoachID: 7, Type: models.SessionTypeIndividual, Status: models.SessionStatusPending, Price: 60},
	}
	handler := &SessionHandler{service: service, now: time.Now}

	app := newTestApp(studentIdentity(42))
	app.Post("/api/sessions", handler.Create)

	resp, body := doRequest(t, app, jsonRequest(http.MethodPost, "/api/sessions", `{
		"mentorId": 7,
		"date": "2026-03-15",
		"time": "09:00",
		"duration": 60,
		"notes": "first touch drills"
	}`))

	expectStatus(t, resp, http.StatusCreated)
	if success, _ := body["success"].(bool); !success {
		t.Fatalf("expected success envelope, got %v", body)
	}
	if service.lastIdentity == nil || service.lastIdentity.UserID != 42 {
		t.Fatalf("expected identity 42 to reach the service, got %+v", service.lastIdentity)
	}
	if service.lastCreate.MentorID != 7 || service.lastCreate.Date != "2026-03-15" || service.lastCreate.Time != "09:00" {
		t.Fatalf("unexpected create input: %+v", service.lastCreate)
	}
	if service.lastCreate.Duration == nil || *service.lastCreate.Duration != 60 {
		t.Fatalf("expected duration 60, got %v", service.lastCreate.Duration)
	}
	session, ok := body["session"].(map[string]any)
	if !ok || session["price"] != float64(60) {
		t.Fatalf("expected session with price 60, got %v", body["session"])
	}
}

func TestCreateSessionRejectsMalformedDateBeforeService(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service, now: time.Now}

	app := newTestApp(studentIdentity(42))
	app.Post("/api/sessions", handler.Create)

	resp, body := doRequest(t, app, jsonRequest(http.MethodPost, "/api/sessions", `{
		"mentorId": 7,
		"date": "15/03/2026",
		"time": "9am",
		"maxParticipants": 1
	}`))

	expectStatus(t, resp, http.StatusBadRequest)
	expectErrorCode(t, body, apperr.CodeValidation)
	fields, _ := body["fields"].(map[string]any)
	for _, field := range []string{"date", "time", "maxParticipants"} {
		if _, ok := fields[field]; !ok {
			t.Fatalf("expected %s field error, got %v", field, fields)
		}
	}
	if service.createCalls != 0 {
		t.Fatalf("service must not be called on invalid input")
	}
}

func TestCreateSessionRejectsOversizedNumbers(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service, now: time.Now}

	app := newTestApp(studentIdentity(42))
	app.Post("/api/sessions", handler.Create)

	resp, body := doRequest(t, app, jsonRequest(http.MethodPost, "/api/sessions", `{
		"mentorId": 7,
		"type": "group",
		"date": "2026-03-15",
		"time": "09:00",
		"duration": 5000000000,
		"maxParticipants": 100000
	}`))

	expectStatus(t, resp, http.StatusBadRequest)
	expectErrorCode(t, body, apperr.CodeValidation)
	fields, _ := body["fields"].(map[string]any)
	for _, field := range []string{"duration", "maxParticipants"} {
		if _, ok := fields[field]; !ok {
			t.Fatalf("expected %s field error, got %v", field, fields)
		}
	}
	if service.createCalls != 0 {
		t.Fatalf("service must not be called on invalid input")
	}
}

func TestListSessionsPassesFilters(t *testing.T) {
	service := &stubSessionService{listResult: []models.SessionDetail{}}
	handler := &SessionHandler{service: service, now: time.Now}

	app := newTestApp(coachIdentity(7))
	app.Get("/api/sessions", handler.List)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions?type=group&status=%20confirmed%20", nil))
	expectStatus(t, resp, http.StatusOK)
	if service.lastFilter.Type != "group" || service.lastFilter.Status != "confirmed" {
		t.Fatalf("unexpected filter: %+v", service.lastFilter)
	}
	if _, ok := body["sessions"].([]any); !ok {
		t.Fatalf("expected sessions array, got %v", body["sessions"])
	}
}

func TestGetSessionRejectsBadID(t *testing.T) {
	handler := &SessionHandler{service: &stubSessionService{}, now: time.Now}

	app := newTestApp(studentIdentity(42))
	app.Get("/api/sessions/:id", handler.Get)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	expectStatus(t, resp, http.StatusBadRequest)
	expectErrorCode(t, body, apperr.CodeValidation)

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions/5", nil))
	expectStatus(t, resp, http.StatusNotFound)
	if body["message"] != "Session not found" {
		t.Fatalf("expected not found message, got %v", body["message"])
	}
}

func TestSessionMutationsRouteToService(t *testing.T) {
	tests := []struct {
		path     string
		mutation string
		message  string
	}{
		{path: "/join", mutation: "join", message: "Successfully joined session"},
		{path: "/cancel", mutation: "cancel", message: "Session cancelled successfully"},
		{path: "/confirm", mutation: "confirm", message: "Session confirmed"},
		{path: "/complete", mutation: "complete", message: "Session completed"},
	}

	for _, tc := range tests {
		t.Run(tc.mutation, func(t *testing.T) {
			service := &stubSessionService{mutateResult: &models.Session{ID: 12, Status: models.SessionStatusConfirmed}}
			handler := &SessionHandler{service: service, now: time.Now}

			app := newTestApp(coachIdentity(7))
			app.Post("/api/sessions/:id/join", handler.Join)
			app.Post("/api/sessions/:id/cancel", handler.Cancel)
			app.Post("/api/sessions/:id/confirm", handler.Confirm)
			app.Post("/api/sessions/:id/complete", handler.Complete)

			resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/sessions/12"+tc.path, nil))
			expectStatus(t, resp, http.StatusOK)
			if service.lastMutation != tc.mutation || service.lastSessionID != 12 {
				t.Fatalf("expected %s on session 12, got %s on %d", tc.mutation, service.lastMutation, service.lastSessionID)
			}
			if body["message"] != tc.message {
				t.Fatalf("expected message %q, got %v", tc.message, body["message"])
			}
		})
	}
}

func TestJoinFullSessionReturnsCapacityConflict(t *testing.T) {
	service := &stubSessionService{mutateErr: apperr.CapacityExceeded("Session is full or not available")}
	handler := &SessionHandler{service: service, now: time.Now}

	app := newTestApp(studentIdentity(42))
	app.Post("/api/sessions/:id/join", handler.Join)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/sessions/3/join", nil))
	expectStatus(t, resp, http.StatusConflict)
	expectErrorCode(t, body, apperr.CodeCapacityExceeded)
}

func TestExportSetsSpreadsheetHeaders(t *testing.T) {
	service := &stubSessionService{exportData: []byte("PK\x03\x04")}
	handler := &SessionHandler{
		service: service,
		now: func() time.Time {
			return time.Date(2026, 4, 2, 23, 30, 0, 0, time.UTC)
		},
	}

	app := newTestApp(coachIdentity(7))
	app.Get("/api/coach/sessions/export", handler.Export)

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/coach/sessions/export", nil))
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("expected xlsx content type, got %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="sessions-20260402.xlsx"` {
		t.Fatalf("unexpected content disposition %q", got)
	}
}

func TestExportForbiddenForStudents(t *testing.T) {
	service := &stubSessionService{exportErr: apperr.Authorization(auth.MessageInsufficientPermission)}
	handler := &SessionHandler{service: service, now: time.Now}

	app := newTestApp(studentIdentity(42))
	app.Get("/api/coach/sessions/export", handler.Export)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/coach/sessions/export", nil))
	expectStatus(t, resp, http.StatusForbidden)
	expectErrorCode(t, body, apperr.CodeAuthorization)
}
