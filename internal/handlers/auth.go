package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/restaurant-finder/internal/middleware"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AuthService is the sign-in surface of auth.Service.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*models.AuthResult, error)
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*models.AuthResult, error)
	GoogleCodeLogin(ctx context.Context, code string) (*models.AuthResult, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	svc    AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers auth routes on a router with the /api/auth prefix.
// requireAuth guards /me.
func (h *AuthHandler) RegisterRoutes(r *mux.Router, requireAuth func(http.Handler) http.Handler) {
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/google", h.GoogleLogin).Methods(http.MethodPost)
	r.HandleFunc("/google/code", h.GoogleCodeLogin).Methods(http.MethodPost)
	r.Handle("/me", requireAuth(http.HandlerFunc(h.GetMe))).Methods(http.MethodGet)
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest represents an email/password sign-in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest carries a Google ID token
type GoogleLoginRequest struct {
	Token string `json:"token"`
}

// GoogleCodeRequest carries a Google authorization code
type GoogleCodeRequest struct {
	Code string `json:"code"`
}

// Register creates an account and returns a session
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to register")
		return
	}
	req.Name = validation.SanitizeText(req.Name)

	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Missing required fields")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FieldErrors(err))
		return
	}

	result, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to register")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// Login signs in with email and password
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to sign in")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to sign in")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GoogleLogin signs in with a Google ID token
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to sign in with Google")
		return
	}

	result, err := h.svc.GoogleLogin(r.Context(), req.Token)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to sign in with Google")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GoogleCodeLogin signs in with a Google authorization code
func (h *AuthHandler) GoogleCodeLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to sign in with Google")
		return
	}

	result, err := h.svc.GoogleCodeLogin(r.Context(), req.Code)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to sign in with Google")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}
