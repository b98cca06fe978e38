package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

// newTestApp mirrors the production wiring: shared error handler and the
// identity local that AuthRequired would have set.
func newTestApp(identity *auth.Identity) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	if identity != nil {
		app.Use(func(c *fiber.Ctx) error {
			middleware.SetIdentity(c, identity)
			return c.Next()
		})
	}
	return app
}

func studentIdentity(id int64) *auth.Identity {
	return &auth.Identity{UserID: id, Email: "student@example.com", Role: models.RoleStudent}
}

func coachIdentity(id int64) *auth.Identity {
	return &auth.Identity{UserID: id, Email: "coach@example.com", Role: models.RoleCoach}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp, body
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func expectErrorCode(t *testing.T, body map[string]any, want string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %v", body)
	}
	if got, _ := body["code"].(string); got != want {
		t.Fatalf("expected code %q, got %q (%v)", want, got, body)
	}
}
