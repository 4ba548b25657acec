package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aslanbek/account-service/internal/config"
	"github.com/aslanbek/account-service/internal/entity"
	"github.com/aslanbek/account-service/internal/middleware"
	"github.com/aslanbek/account-service/internal/usecase"
)

const sessionCookieMaxAge = 7 * 24 * time.Hour

type UserHandler struct {
	usecase *usecase.UserUsecase
	cfg     *config.Config
	logger  *zap.Logger
}

func NewUserHandler(ucase *usecase.UserUsecase, cfg *config.Config, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		usecase: ucase,
		cfg:     cfg,
		logger:  logger.Named("UserHandler"),
	}
}

// userView is the serialized user shape. Password and reset-token
// fields never appear in responses.
type userView struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

func newUserView(u *entity.User) userView {
	return userView{
		ID:          u.ID.Hex(),
		FullName:    u.FullName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
	}
}

func (h *UserHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// Register handles POST /api/v1/user/register.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input usecase.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, h.logger, h.cfg, NewError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	user, token, err := h.usecase.Register(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, h.cfg, err)
		return
	}
	h.logger.Info("User registered", zap.String("userID", user.ID.Hex()), zap.String("email", user.Email))

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "User registered successfully",
		User:    newUserView(user),
	})
}

// Login handles POST /api/v1/user/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input usecase.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, h.logger, h.cfg, NewError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	user, token, err := h.usecase.Login(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, h.cfg, err)
		return
	}
	h.logger.Info("User logged in", zap.String("userID", user.ID.Hex()))

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "User logged in successfully",
		User:    newUserView(user),
		Token:   token,
	})
}

// Logout handles POST /api/v1/user/logout. Idempotent: clearing an
// absent cookie succeeds the same way.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "User logged out successfully",
	})
}

// Me handles GET /api/v1/user/me. Authentication is enforced upstream
// by the auth middleware, which attaches the resolved user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, h.cfg, NewError(http.StatusUnauthorized, "Unauthorized, please login to continue", nil))
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "User details",
		User:    newUserView(user),
	})
}

// Update handles POST /api/v1/user/update/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input usecase.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, h.logger, h.cfg, NewError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	if err := h.usecase.UpdateProfile(r.Context(), id, input); err != nil {
		respondError(w, h.logger, h.cfg, err)
		return
	}
	h.logger.Info("User profile updated", zap.String("userID", id))

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "User details updated successfully",
	})
}

// NotFound is the catch-all responder for unknown routes.
func (h *UserHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{
		Success: false,
		Message: "Page not found",
	})
}
