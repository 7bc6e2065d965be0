package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/rbac"
)

// Authentication failures. Login failures are deliberately collapsed into a
// single non-distinguishing error so responses never reveal whether the
// email exists or the password was wrong.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrUnknownUser        = errors.New("auth: user not found")
)

// Service wraps registration, login and principal resolution.
type Service struct {
	store  identity.Store
	tokens *TokenIssuer
	guard  *LoginGuard
	logger *slog.Logger
}

// NewService constructs a new Service. guard may be nil when login
// throttling is disabled.
func NewService(store identity.Store, tokens *TokenIssuer, guard *LoginGuard, logger *slog.Logger) *Service {
	return &Service{store: store, tokens: tokens, guard: guard, logger: logger}
}

// Register creates a user with the default USER role.
func (s *Service) Register(ctx context.Context, username, email, password string) (identity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return identity.User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	role, err := s.store.FindRoleByName(ctx, identity.RoleUser)
	if err != nil {
		return identity.User{}, fmt.Errorf("auth: default role missing: %w", err)
	}
	return s.store.CreateUser(ctx, username, email, string(hash), role.ID)
}

// Login verifies email/password credentials and issues an access token
// carrying the user's identity and current role name.
func (s *Service) Login(ctx context.Context, email, password, remoteIP string) (string, string, error) {
	if s.guard != nil {
		blocked, err := s.guard.Blocked(ctx, email, remoteIP)
		if err != nil && s.logger != nil {
			s.logger.Warn("login guard check", slog.Any("error", err))
		}
		if blocked {
			return "", "", ErrInvalidCredentials
		}
	}

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		s.recordFailure(ctx, email, remoteIP)
		return "", "", ErrInvalidCredentials
	}
	if !user.IsActive {
		s.recordFailure(ctx, email, remoteIP)
		return "", "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, email, remoteIP)
		return "", "", ErrInvalidCredentials
	}

	role, err := s.store.FindRoleByID(ctx, user.RoleID)
	if err != nil {
		return "", "", fmt.Errorf("auth: user role missing: %w", err)
	}

	token, err := s.tokens.Issue(user, role.Name)
	if err != nil {
		return "", "", fmt.Errorf("auth: issue token: %w", err)
	}
	if s.guard != nil {
		if err := s.guard.Reset(ctx, email, remoteIP); err != nil && s.logger != nil {
			s.logger.Warn("login guard reset", slog.Any("error", err))
		}
	}
	return token, role.Name, nil
}

// ResolvePrincipal verifies a token and resolves the subject's current role
// and permission set from the store. The role claim inside the token is
// never trusted for authorization.
func (s *Service) ResolvePrincipal(ctx context.Context, rawToken string) (*rbac.Principal, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUnknownUser
	}
	if !user.IsActive {
		return nil, ErrUnknownUser
	}
	role, err := s.store.FindRoleByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("auth: user role missing: %w", err)
	}
	perms, err := s.store.RolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name
	}
	return &rbac.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		RoleID:      role.ID,
		RoleName:    role.Name,
		Permissions: names,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, email, remoteIP string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.RecordFailure(ctx, email, remoteIP); err != nil && s.logger != nil {
		s.logger.Warn("login guard record", slog.Any("error", err))
	}
}
