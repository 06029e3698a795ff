package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jo-ticketing/internal/media"
	"github.com/iliyamo/jo-ticketing/internal/service"
)

// Validator adapts go-playground/validator to echo.Validator so handlers can
// call c.Validate on bound DTOs.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator { return &Validator{v: validator.New()} }

func (cv *Validator) Validate(i any) error { return cv.v.Struct(i) }

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// fail writes the common error envelope {"error": msg, "code": code}.
func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// bindAndValidate decodes the JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns false on failure.
func bindAndValidate(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, fail(c, http.StatusBadRequest, "invalid_body", "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return false, fail(c, http.StatusBadRequest, "validation_failed", validationMessage(err))
	}
	return true, nil
}

// serviceError maps service sentinels to HTTP.  Anything unknown is logged
// and reported as a bare 500.
func serviceError(c echo.Context, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return fail(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, service.ErrInconsistentCart):
		return fail(c, http.StatusBadRequest, "inconsistent_cart", err.Error())
	case errors.Is(err, service.ErrMissingAccountKey):
		return fail(c, http.StatusBadRequest, "missing_account_key", err.Error())
	case errors.Is(err, service.ErrInvalidOffer):
		return fail(c, http.StatusBadRequest, "invalid_offer", err.Error())
	case errors.Is(err, service.ErrOfferExists):
		return fail(c, http.StatusConflict, "offer_exists", err.Error())
	}
	logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return fail(c, http.StatusInternalServerError, "internal", "internal error")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// URLs builds absolute media URLs.  When BaseURL is empty the scheme and
// host of the current request are used.
type URLs struct {
	BaseURL  string
	MediaURL string
}

func (u URLs) resolver(c echo.Context) func(string) string {
	base := u.BaseURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return media.Resolver{BaseURL: base, MediaURL: u.MediaURL}.Resolve
}
