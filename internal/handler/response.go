package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aslanbek/account-service/internal/config"
	"github.com/aslanbek/account-service/internal/repository"
	"github.com/aslanbek/account-service/internal/usecase"
)

// envelope is the uniform response shape used by every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    interface{} `json:"user,omitempty"`
	Token   string      `json:"token,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Error carries the HTTP status a failure should surface as.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func NewError(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// toError normalizes usecase and repository failures into a typed
// HTTP error. Anything unrecognized becomes a 500.
func toError(err error) *Error {
	var httpErr *Error
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, usecase.ErrValidation):
		return NewError(http.StatusBadRequest, "All fields are required and must be valid", err)
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return NewError(http.StatusUnauthorized, "Email or Password do not match or user does not exist", err)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return NewError(http.StatusConflict, "Email already exists", err)
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrInvalidUserID):
		return NewError(http.StatusBadRequest, "Invalid user id or user does not exist", err)
	default:
		return NewError(http.StatusInternalServerError, "Internal Server Error", err)
	}
}

// respondError is the single error responder: it selects the status,
// renders the envelope, and includes error detail only outside
// production.
func respondError(w http.ResponseWriter, logger *zap.Logger, cfg *config.Config, err error) {
	httpErr := toError(err)

	if httpErr.Status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	} else {
		logger.Warn("Request rejected", zap.Int("status", httpErr.Status), zap.Error(err))
	}

	body := envelope{
		Success: false,
		Message: httpErr.Message,
	}
	if !cfg.IsProduction() && httpErr.Err != nil {
		body.Error = httpErr.Err.Error()
	}
	writeJSON(w, httpErr.Status, body)
}
