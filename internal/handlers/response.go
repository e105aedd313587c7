package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

func validationFail(c *fiber.Ctx, errs utils.FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"code":    apperror.CodeValidation,
		"errors":  errs,
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "invalid body",
		"code":    apperror.CodeValidation,
	})
}

// fail writes err in the response envelope with the status its code maps to.
func fail(c *fiber.Ctx, err error) error {
	var verr *accounts.ValidationError
	if errors.As(err, &verr) {
		return validationFail(c, verr.Fields)
	}

	var ae *apperror.Error
	if !errors.As(err, &ae) {
		ae = apperror.Internal("internal server error", err)
	}
	body := fiber.Map{
		"success": false,
		"message": ae.Message,
		"code":    ae.Code,
	}
	if ae.Code == apperror.CodeInternal || ae.Code == apperror.CodeStoreFailed {
		body["message"] = "internal server error"
	}
	if ae.Retryable {
		body["retryable"] = true
	}
	if len(ae.Metadata) > 0 && ae.Code != apperror.CodeInternal {
		body["details"] = ae.Metadata
	}
	return c.Status(apperror.HTTPStatus(ae)).JSON(body)
}

func ok(c *fiber.Ctx, status int, message string, data interface{}) error {
	body := fiber.Map{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler renders errors returned by middleware and unmatched routes.
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
		}
		log.WithError(err).Error("unhandled error", map[string]interface{}{"path": c.Path()})
		return fail(c, err)
	}
}

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	switch t := c.Locals("userId").(type) {
	case uuid.UUID:
		return t, nil
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.Nil, apperror.Unauthorized("invalid session")
		}
		return id, nil
	default:
		return uuid.Nil, apperror.Unauthorized("unauthorized")
	}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + name)
	}
	return id, nil
}

// chain returns mw followed by h without aliasing mw.
func chain(mw []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}
