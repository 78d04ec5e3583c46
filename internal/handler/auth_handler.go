package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"asha-portal/internal/config"
	"asha-portal/internal/model"
	"asha-portal/internal/service"
	"asha-portal/internal/token"
	"asha-portal/internal/util"
)

// AuthHandler exposes the login/OTP/session flow over HTTP.
type AuthHandler struct {
	auth   *service.AuthService
	tokens *token.Manager
	cfg    *config.Config
	logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, tokens *token.Manager, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	OTP    string `json:"otp"`
}

type resendOTPRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type userPayload struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func toUserPayload(user *model.User, includeCreatedAt bool) userPayload {
	payload := userPayload{
		ID:        user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		LastLogin: user.LastLoginAt,
	}
	if includeCreatedAt {
		created := user.CreatedAt
		payload.CreatedAt = &created
	}
	return payload
}

// RegisterRoutes mounts the auth endpoints. The limiter applies only to the
// unauthenticated surface; nil disables it.
func (h *AuthHandler) RegisterRoutes(router chi.Router, limiter func(http.Handler) http.Handler) {
	router.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}
		r.Post("/login", h.Login)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/resend-otp", h.ResendOTP)
	})

	router.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.tokens))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.CurrentUser)
		r.Get("/validate-token", h.ValidateToken)
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"userId":      result.UserID,
		"email":       result.Email,
		"role":        result.Role,
		"requiresOTP": result.RequiresOTP,
	}
	// Development-only echo; production delivers the code out of band.
	if h.cfg.IsDevelopment() {
		data["otp"] = result.RawCode
	}

	h.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Login successful. OTP sent for verification.",
		Data:    data,
	})
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "User ID, email, and OTP are required")
		return
	}

	result, err := h.auth.VerifyOTP(r.Context(), req.UserID, req.Email, req.OTP)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "OTP verified successfully",
		Data: map[string]interface{}{
			"token": result.Token,
			"user":  toUserPayload(result.User, false),
		},
	})
}

// ResendOTP handles POST /auth/resend-otp.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "User ID and email are required")
		return
	}

	rawCode, err := h.auth.ResendOTP(r.Context(), req.UserID, req.Email, clientIP(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	data := map[string]interface{}{}
	if h.cfg.IsDevelopment() {
		data["otp"] = rawCode
	}

	h.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "OTP resent successfully",
		Data:    data,
	})
}

// Logout handles POST /auth/logout. The server holds no token state; the
// client discards the token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if claims != nil {
		h.auth.Logout(r.Context(), claims.UserID)
	}
	h.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Logged out successfully",
	})
}

// CurrentUser handles GET /auth/me.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "User retrieved successfully",
		Data: map[string]interface{}{
			"user": toUserPayload(user, true),
		},
	})
}

// ValidateToken handles GET /auth/validate-token. Reaching the handler means
// the middleware already accepted the token.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Token is valid",
		Data: map[string]interface{}{
			"user":      toUserPayload(user, false),
			"expiresIn": int64(h.tokens.TimeRemaining(claims).Seconds()),
		},
	})
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", util.ErrorField(err))
	}
}

func (h *AuthHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, Response{Success: false, Message: message})
}

// respondServiceError maps service sentinels to status codes. Unknown errors
// are infrastructure failures: logged in full, returned as a generic 500.
func (h *AuthHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrAccountLocked):
		h.respondError(w, http.StatusLocked, "Account is temporarily locked due to too many failed login attempts. Please try again later.")
	case errors.Is(err, service.ErrAccountDeactivated):
		h.respondError(w, http.StatusForbidden, "Account is deactivated. Please contact administrator.")
	case errors.Is(err, service.ErrInvalidCode):
		h.respondError(w, http.StatusUnauthorized, "Invalid OTP")
	case errors.Is(err, service.ErrCodeExpiredOrExhausted):
		h.respondError(w, http.StatusUnauthorized, "OTP has expired or exceeded maximum attempts")
	case errors.Is(err, service.ErrUserNotFound):
		h.respondError(w, http.StatusNotFound, "User not found or inactive")
	default:
		h.logger.Error("Internal error handling auth request",
			util.String("path", r.URL.Path),
			util.ErrorField(err))
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func clientIP(r *http.Request) string {
	// middleware.RealIP rewrites RemoteAddr from the forwarding headers.
	return r.RemoteAddr
}
