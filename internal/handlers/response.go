package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
)

const msgInternalError = "Internal server error"

func respond(c *fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for key, value := range payload {
		body[key] = value
	}
	return c.Status(status).JSON(body)
}

func respondOK(c *fiber.Ctx, payload fiber.Map) error {
	return respond(c, fiber.StatusOK, payload)
}

func respondCreated(c *fiber.Ctx, payload fiber.Map) error {
	return respond(c, fiber.StatusCreated, payload)
}

// writeError renders operational errors as-is; anything else is logged and
// hidden behind a generic 500.
func writeError(c *fiber.Ctx, err error) error {
	if appErr, ok := apperr.As(err); ok {
		body := fiber.Map{
			"success": false,
			"message": appErr.Message,
			"code":    appErr.Code,
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		return c.Status(appErr.Status).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"success": false,
			"message": fiberErr.Message,
			"code":    fiberCode(fiberErr.Code),
		})
	}

	slog.ErrorContext(c.UserContext(), "unhandled request error",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": msgInternalError,
		"code":    apperr.CodeInternal,
	})
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusUnauthorized:
		return apperr.CodeAuthentication
	case fiber.StatusForbidden:
		return apperr.CodeAuthorization
	case fiber.StatusConflict:
		return apperr.CodeConflict
	default:
		return apperr.CodeValidation
	}
}

// ErrorHandler plugs writeError into fiber so middleware errors share the envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}

func parseIDParam(c *fiber.Ctx, name, label string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid "+label+" id", map[string][]string{
			name: {"Must be a positive integer"},
		})
	}
	return id, nil
}
