package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/directory"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	"github.com/frahmantamala/opsboard/internal/user"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the slice of the user service the login flow needs.
type UserStore interface {
	Sync(ctx context.Context, username string, attrs user.Attributes) (*user.User, error)
	PasswordHash(ctx context.Context, username string) (*user.User, string, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*Session, error)
	Authorize(ctx context.Context, token string) (*internal.Principal, error)
}

// Session is a freshly issued login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Principal *internal.Principal
}

type Service struct {
	directory     directory.AuthenticatorAPI
	users         UserStore
	tokens        TokenManager
	events        eventlog.Recorder
	localFallback bool
	logger        *slog.Logger
}

func NewService(dir directory.AuthenticatorAPI, users UserStore, tokens TokenManager, events eventlog.Recorder, localFallback bool, logger *slog.Logger) *Service {
	return &Service{
		directory:     dir,
		users:         users,
		tokens:        tokens,
		events:        events,
		localFallback: localFallback,
		logger:        logger,
	}
}

// Login authenticates against the directory and mirrors the user row. When
// the directory refuses and local fallback is on, a stored bcrypt hash is
// tried instead. Every failure surfaces as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if profile, ok := s.directory.Authenticate(ctx, dto.Username, dto.Password); ok {
		u, err := s.users.Sync(ctx, dto.Username, user.Attributes{
			DisplayName: profile.DisplayName,
			Email:       profile.Email,
			Department:  profile.Department,
			Title:       profile.Title,
		})
		if err != nil {
			s.logger.Error("failed to sync user after directory login", "username", dto.Username, "error", err)
			return nil, internal.NewInternalError("login failed", err)
		}
		return s.issue(u)
	}

	if s.localFallback {
		if u, ok := s.checkLocal(ctx, dto.Username, dto.Password); ok {
			s.logger.Info("local account login", "username", dto.Username)
			return s.issue(u)
		}
	}

	s.logger.Warn("login rejected", "username", dto.Username)
	if s.events != nil {
		s.events.Record(ctx, eventlog.SourceLDAP, eventlog.SeverityWarning, dto.Username, "Failed login attempt")
	}
	return nil, internal.ErrInvalidCredentials
}

func (s *Service) checkLocal(ctx context.Context, username, password string) (*user.User, bool) {
	u, hash, err := s.users.PasswordHash(ctx, username)
	if err != nil {
		if !errors.Is(err, internal.ErrUserNotFound) {
			s.logger.Error("failed to read local password", "username", username, "error", err)
		}
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

func (s *Service) issue(u *user.User) (*Session, error) {
	p := &internal.Principal{
		UserID:      u.ID,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: u.DisplayName,
	}
	token, expiresAt, err := s.tokens.Issue(p)
	if err != nil {
		s.logger.Error("failed to issue session", "username", u.Username, "error", err)
		return nil, internal.NewInternalError("login failed", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Principal: p}, nil
}

// Authorize validates a session token and reloads the user so role changes
// apply to sessions issued before them.
func (s *Service) Authorize(ctx context.Context, token string) (*internal.Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	p, err := claims.Principal()
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidSession
		}
		return nil, err
	}
	if u.Username != p.Username {
		return nil, internal.ErrInvalidSession
	}
	p.Role = u.Role
	p.DisplayName = u.DisplayName
	return p, nil
}

// HashPassword creates a bcrypt hash for a local account.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
