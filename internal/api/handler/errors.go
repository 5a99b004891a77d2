package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxtooter/support-api/internal/core/domain"
)

var errorStatus = []struct {
	target error
	code   int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrUserExists, http.StatusBadRequest},
	{domain.ErrInvalidRole, http.StatusBadRequest},
	{domain.ErrInvalidConsultant, http.StatusBadRequest},
	{domain.ErrSelfModification, http.StatusBadRequest},
	{domain.ErrFileRequired, http.StatusBadRequest},
	{domain.ErrInvalidFileKey, http.StatusBadRequest},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrQueryNotFound, http.StatusNotFound},
	{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{domain.ErrInvalidTransition, http.StatusUnprocessableEntity},
}

// MapError translates domain errors into *echo.HTTPError. Anything it does not
// recognise is returned unchanged so the error handler can log it as a 500.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, m := range errorStatus {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.target.Error()
		// Transition errors name the current status, never the wrapping.
		var te *domain.TransitionError
		if errors.As(err, &te) {
			msg = te.Error()
		}
		return echo.NewHTTPError(m.code, msg).SetInternal(err)
	}
	return err
}
