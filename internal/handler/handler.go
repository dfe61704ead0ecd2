// Package handler exposes the booking engine over HTTP. Handlers decode
// the request, call the core with the authenticated actor and translate
// core errors into status codes.
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// fail writes err as {"error": ...} with the status apperr maps it to.
// Server errors are logged and their detail hidden.
func fail(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("handler: request failed")
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error()}
	if apperr.Retryable(err) {
		body["retryable"] = true
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func actor(c echo.Context) (model.Actor, error) {
	a, ok := middleware.Actor(c)
	if !ok {
		return model.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return a, nil
}

func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", apperr.ErrValidation, c.Param("id"))
	}
	return id, nil
}

func queryUint(c echo.Context, name string) (uint64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", apperr.ErrValidation, name, v)
	}
	return n, nil
}

// page reads limit and offset, capping limit at 100.
func page(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseDate accepts YYYY-MM-DD.
func parseDate(field, v string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", apperr.ErrValidation, field)
	}
	return d, nil
}

// statuses parses a comma separated list of status names with unmarshal.
func statuses[T any](raw string, unmarshal func(*T, []byte) error) ([]T, error) {
	if raw == "" {
		return nil, nil
	}
	var out []T
	for _, name := range strings.Split(raw, ",") {
		var s T
		if err := unmarshal(&s, []byte(strings.TrimSpace(name))); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
		out = append(out, s)
	}
	return out, nil
}
