package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/transfer"
	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	bearerTokenType           = "Bearer"
)

// Service defines the behavior needed by the auth controllers. A non-empty
// guestSessionID folds that visitor's cart and favorites into the account.
type Service interface {
	Login(ctx context.Context, req LoginRequest, guestSessionID string) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest, guestSessionID string) (*AuthResponse, error)
}

type service struct {
	users       userRepository
	transfer    guestTransfer
	guests      guestSessions
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

type userRepository interface {
	Create(ctx context.Context, dto users.NewUser) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type guestTransfer interface {
	Transfer(ctx context.Context, sessionID string, userID uuid.UUID) (transfer.Result, error)
}

type guestSessions interface {
	Delete(ctx context.Context, sessionID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	Transfer       guestTransfer
	GuestSessions  guestSessions
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewService constructs the login and registration service.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Transfer == nil {
		return nil, fmt.Errorf("transfer service is required")
	}
	if params.GuestSessions == nil {
		return nil, fmt.Errorf("guest session manager is required")
	}
	return &service{
		users:       params.UserRepo,
		transfer:    params.Transfer,
		guests:      params.GuestSessions,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest, guestSessionID string) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	s.upgradeHash(ctx, user, req.Password)

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, now, guestSessionID)
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// upgradeHash re-hashes the password after a successful login when the stored
// hash predates the current Argon2 settings. Failures only cost the upgrade.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "error": err.Error()}), "auth.rehash_failed")
		}
		return
	}
	user.PasswordHash = hash
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

func (s *service) issue(ctx context.Context, user *models.User, now time.Time, guestSessionID string) (*AuthResponse, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &AuthResponse{
		AccessToken: accessToken,
		TokenType:   bearerTokenType,
		ExpiresIn:   int(s.jwtCfg.AccessTokenTTL().Seconds()),
		User:        users.ProfileOf(user),
		Transfer:    s.adoptGuest(ctx, guestSessionID, user.ID),
	}, nil
}

// adoptGuest never fails the sign-in. A session whose transfer failed is kept
// so the next sign-in carrying it can retry.
func (s *service) adoptGuest(ctx context.Context, sessionID string, userID uuid.UUID) *transfer.Result {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithSessionID(s.logg.WithUserID(ctx, userID.String()), sessionID)
	}

	result, err := s.transfer.Transfer(ctx, sessionID, userID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(logCtx, "guest transfer failed", err)
		}
		return nil
	}

	if err := s.guests.Delete(ctx, sessionID); err != nil && s.logg != nil {
		s.logg.Error(logCtx, "delete guest session after transfer", err)
	}
	return &result
}
