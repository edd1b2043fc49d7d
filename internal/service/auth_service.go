package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/umkm-portal/internal/auth"
	"github.com/spec-kit/umkm-portal/internal/config"
	"github.com/spec-kit/umkm-portal/internal/domain"
	"github.com/spec-kit/umkm-portal/internal/events"
	"github.com/spec-kit/umkm-portal/internal/repository"
	apperrors "github.com/spec-kit/umkm-portal/pkg/util/errorutil"
)

// RegistrationInput carries a self-registration.
type RegistrationInput struct {
	Email    string
	Password string
	FullName string
}

// AccountInput carries an account created by an administrator.
type AccountInput struct {
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

// LoginResult is a successful sign-in.
type LoginResult struct {
	User  *domain.User
	Token string
	Meta  domain.Token
}

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	users      repository.UserRepository
	revoked    repository.RevocationRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	RevocationRepo repository.RevocationRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		revoked:    deps.RevocationRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Register creates a business-owner account. Self-registration never
// grants a staff role.
func (s *AuthService) Register(ctx context.Context, in RegistrationInput, actor events.Actor) (*domain.User, error) {
	user, err := s.createUser(ctx, in.Email, in.Password, in.FullName, domain.RoleUMKMOwner)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventUserRegistered, user.ID, actor,
		events.AccountPayload{Email: user.Email, Role: user.Role}))
	return user, nil
}

// CreateAccount lets a super admin create staff and admin accounts.
func (s *AuthService) CreateAccount(ctx context.Context, creator domain.Principal, in AccountInput) (*domain.User, error) {
	if creator.Role != domain.RoleSuperAdmin {
		return nil, apperrors.NewForbidden("only super admins can create accounts")
	}
	switch in.Role {
	case domain.RoleAdminStaff, domain.RoleSuperAdmin:
	case domain.RoleUMKMOwner:
		return nil, apperrors.NewValidationError("business owners register themselves", map[string]any{"role": in.Role})
	default:
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": in.Role})
	}

	user, err := s.createUser(ctx, in.Email, in.Password, in.FullName, in.Role)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAccountCreated, user.ID,
		events.Actor{UserID: creator.SubjectID, Role: creator.Role},
		events.AccountPayload{Email: user.Email, Role: user.Role}))
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, fullName string, role domain.Role) (*domain.User, error) {
	email = repository.NormalizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	details := map[string]any{}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		details["email"] = "must be a valid email address"
	}
	if fullName == "" {
		details["full_name"] = "is required"
	}
	if err := auth.ValidatePassword(password); err != nil {
		details["password"] = err.Error()
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid account data", details)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        email,
		FullName:     fullName,
		Role:         role,
		Status:       domain.UserStatusActive,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Login authenticates an account and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string, actor events.Actor) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.loginFailed(ctx, email, "unknown_email", actor)
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.loginFailed(ctx, email, "wrong_password", actor)
		return nil, apperrors.NewInvalidCredentials()
	}
	if !user.Active() {
		s.loginFailed(ctx, email, "suspended", actor)
		return nil, apperrors.NewForbidden("account suspended")
	}

	token, meta, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	actor.UserID, actor.Role = user.ID, user.Role
	s.publish(ctx, events.New(events.EventUserLoggedIn, user.ID, actor,
		events.AccountPayload{Email: user.Email, Role: user.Role}))
	return &LoginResult{User: user, Token: token, Meta: meta}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string, actor events.Actor) {
	s.publish(ctx, events.New(events.EventUserLoginFailed, "", actor,
		events.LoginFailedPayload{Email: repository.NormalizeEmail(email), Reason: reason}))
}

// Logout revokes the principal's token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, principal domain.Principal, actor events.Actor) error {
	if principal.TokenID != "" && s.revoked != nil {
		if err := s.revoked.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
			return apperrors.MapError(err)
		}
	}
	actor.UserID, actor.Role = principal.SubjectID, principal.Role
	s.publish(ctx, events.New(events.EventUserLoggedOut, principal.SubjectID, actor,
		events.LoggedOutPayload{TokenID: principal.TokenID}))
	return nil
}

// Me returns the account of the given subject.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewInvalidCredentials()
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.NewValidationError("invalid password", map[string]any{"new_password": err.Error()})
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// BootstrapAdmin creates the configured super admin unless the email is
// already registered. It reports whether an account was created.
func (s *AuthService) BootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		s.logger.Debug("bootstrap admin already present", zap.String("email", cfg.AdminEmail))
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	user, err := s.createUser(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName, domain.RoleSuperAdmin)
	if err != nil {
		return false, err
	}
	s.publish(ctx, events.New(events.EventAccountCreated, user.ID, events.Actor{},
		events.AccountPayload{Email: user.Email, Role: user.Role}))
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID))
	return true, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
