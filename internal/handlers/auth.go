package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cdwhitlock/warden/internal/auth"
	"github.com/cdwhitlock/warden/internal/models"
	"github.com/cdwhitlock/warden/internal/services"
	pkgauth "github.com/cdwhitlock/warden/pkg/auth"
	pkghttp "github.com/cdwhitlock/warden/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuthHandler exposes the session-security core over HTTP.
type AuthHandler struct {
	service *services.AuthService
	guard   *auth.CSRFGuard
	cookies auth.CookieConfig
	logger  *slog.Logger
}

func NewAuthHandler(service *services.AuthService, guard *auth.CSRFGuard, cookies auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		guard:   guard,
		cookies: cookies,
		logger:  logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type CSRFResponse struct {
	CSRFToken string `json:"csrf_token"`
}

type LockoutStatusResponse struct {
	IsLocked         bool `json:"is_locked"`
	RemainingMinutes int  `json:"remaining_minutes"`
}

// Login authenticates a credential and hands back a session token, both
// in the response body and as an httpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var locked *models.AccountLockedError
		switch {
		case errors.As(err, &locked):
			pkghttp.WriteLocked(w, locked.Error())
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "invalid credentials")
		default:
			pkghttp.WriteInternalError(w, "internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, result.ExpiresAt, h.cookies)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Logout revokes the presented token and clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.ExtractToken(r, h.cookies)
	if tokenString == "" {
		pkghttp.WriteUnauthorized(w, "not authorized")
		return
	}

	if err := h.service.Logout(r.Context(), tokenString); err != nil {
		if models.IsAuthError(err) {
			pkghttp.WriteUnauthorized(w, "not authorized")
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every token issued to the caller before now.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "not authorized")
		return
	}

	if err := h.service.LogoutAll(r.Context(), principal.SubjectID); err != nil {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword rotates the caller's password and invalidates all
// previously issued tokens. Policy violations come back as a full list
// so the client can render every unmet rule at once.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "not authorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ChangePassword(r.Context(), principal.SubjectID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var policyErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &policyErr):
			violations := make([]string, 0, len(policyErr.Violations))
			for _, v := range policyErr.Violations {
				violations = append(violations, pkgauth.RuleMessage(v))
			}
			pkghttp.WritePolicyViolations(w, violations)
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "invalid credentials")
		default:
			pkghttp.WriteInternalError(w, "internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CSRFToken issues a fresh double-submit pair: the cookie is set on the
// response, the header token is returned in the body for the client to
// echo in X-CSRF-Token.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	cookieValue, tokenValue, err := h.guard.GeneratePair()
	if err != nil {
		h.logger.Error("failed to generate csrf pair", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	auth.SetCSRFCookie(w, cookieValue, h.cookies)
	writeJSON(w, http.StatusOK, CSRFResponse{CSRFToken: tokenValue})
}

// LockoutStatus reports a credential's lockout state to administrators.
// Locked credentials answer 423 with the minutes remaining.
func (h *AuthHandler) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.service.LockoutStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "credential not found")
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	code := http.StatusOK
	if status.IsLocked {
		code = http.StatusLocked
	}
	writeJSON(w, code, LockoutStatusResponse{
		IsLocked:         status.IsLocked,
		RemainingMinutes: status.RemainingMinutes,
	})
}

// Unlock resets a credential's failure counter and clears its lock.
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Unlock(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "credential not found")
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
