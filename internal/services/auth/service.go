package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/models"
	"go.uber.org/zap"
)

var errInvalidCredentials = fmt.Errorf("invalid email or password: %w", models.ErrUnauthorized)

// IdentityVerifier verifies a federated identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*models.GoogleIdentity, error)
}

// CodeExchanger turns an OAuth2 authorization code into an ID token.
type CodeExchanger interface {
	ExchangeIDToken(ctx context.Context, code string) (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithGoogleVerifier enables Google ID-token login.
func WithGoogleVerifier(v IdentityVerifier) Option {
	return func(s *Service) { s.google = v }
}

// WithCodeExchanger enables the authorization-code Google login.
func WithCodeExchanger(e CodeExchanger) Option {
	return func(s *Service) { s.exchanger = e }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// Service implements registration, sign-in and request authentication.
type Service struct {
	users      database.UserStore
	tokens     *TokenIssuer
	google     IdentityVerifier
	exchanger  CodeExchanger
	bcryptCost int
	logger     *zap.Logger
}

// NewService creates an auth service
func NewService(users database.UserStore, tokens *TokenIssuer, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: 12,
		logger:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CodeLoginEnabled reports whether GoogleCodeLogin can be served.
func (s *Service) CodeLoginEnabled() bool {
	return s.exchanger != nil
}

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.AuthResult, error) {
	name = strings.TrimSpace(name)
	email = database.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("missing required fields: %w", models.ErrInvalidArgument)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("email already registered: %w", models.ErrConflict)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: &hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user_registered", zap.String("user_id", user.ID.String()))
	return s.signIn(user)
}

// Login verifies email and password. Unknown email, Google-only accounts and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	email = database.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("missing email or password: %w", models.ErrInvalidArgument)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.HasPassword() || !CheckPassword(*user.PasswordHash, password) {
		s.logger.Info("login_failed", zap.String("email", logger.MaskEmail(email)))
		return nil, errInvalidCredentials
	}

	return s.signIn(user)
}

// GoogleLogin verifies a Google ID token, creating the account for an unseen email.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*models.AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("missing token: %w", models.ErrInvalidArgument)
	}
	if s.google == nil {
		return nil, fmt.Errorf("google login is not configured: %w", models.ErrUnauthorized)
	}

	identity, err := s.google.Verify(ctx, idToken)
	if errors.Is(err, ErrKeysUnavailable) {
		s.logger.Error("google_keys_unavailable", zap.String("error", logger.SanitizeError(err)))
		return nil, fmt.Errorf("google sign-in is temporarily unavailable: %w", models.ErrUnavailable)
	}
	if err != nil {
		s.logger.Info("google_token_rejected", zap.String("error", logger.SanitizeError(err)))
		return nil, fmt.Errorf("invalid Google token: %w", models.ErrUnauthorized)
	}

	user, err := s.findOrCreateGoogleUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

// GoogleCodeLogin exchanges an authorization code and continues as GoogleLogin.
func (s *Service) GoogleCodeLogin(ctx context.Context, code string) (*models.AuthResult, error) {
	if s.exchanger == nil {
		return nil, fmt.Errorf("google code login is not enabled: %w", models.ErrNotFound)
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("missing code: %w", models.ErrInvalidArgument)
	}

	idToken, err := s.exchanger.ExchangeIDToken(ctx, code)
	if err != nil {
		s.logger.Info("google_code_exchange_failed", zap.String("error", logger.SanitizeError(err)))
		return nil, fmt.Errorf("failed to exchange code: %w", models.ErrUnauthorized)
	}
	return s.GoogleLogin(ctx, idToken)
}

// Authenticate resolves an Authorization header to a user.
func (s *Service) Authenticate(ctx context.Context, authorization string) (*models.User, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, fmt.Errorf("missing bearer token: %w", models.ErrUnauthorized)
	}

	userID, err := s.tokens.ResolveToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("user not found: %w", models.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" value.
func BearerToken(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *Service) findOrCreateGoogleUser(ctx context.Context, identity *models.GoogleIdentity) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		if user.GoogleSubject == nil && identity.Subject != "" {
			if linkErr := s.users.LinkGoogleSubject(ctx, user.ID, identity.Subject); linkErr != nil {
				s.logger.Warn("google_subject_link_failed",
					zap.String("user_id", user.ID.String()),
					zap.String("error", logger.SanitizeError(linkErr)),
				)
			}
		}
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(identity.Email, "@")
	}
	user = &models.User{Name: name, Email: identity.Email}
	if identity.Subject != "" {
		subject := identity.Subject
		user.GoogleSubject = &subject
	}

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent first login for the same email already created the row.
		if errors.Is(err, models.ErrConflict) {
			return s.users.GetByEmail(ctx, identity.Email)
		}
		return nil, err
	}

	s.logger.Info("user_registered_via_google", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) signIn(user *models.User) (*models.AuthResult, error) {
	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{Token: token, User: user}, nil
}
