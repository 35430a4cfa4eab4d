package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func respond(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorResponse{Code: code, Error: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}

// parsePagination reads limit/offset query params with defaults. Negative
// offsets and out-of-range limits are coerced rather than rejected.
func parsePagination(c *fiber.Ctx) (int, int, error) {
	limit := defaultLimit
	offset := 0

	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid limit value: %w", err)
		}
		limit = parsed
	}
	if v := c.Query("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid offset value: %w", err)
		}
		offset = parsed
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}
