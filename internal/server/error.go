package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// errorHandler renders every error as an ErrorResponse. Anything that is not a *fiber.Error is
// unexpected, so it is logged and reported as a 500.
func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		} else {
			logger.Error().Err(err).Str("path", c.Path()).Msg("status request failed")
		}

		return c.Status(code).JSON(ErrorResponse{Error: Error{Code: code, Message: err.Error()}})
	}
}
