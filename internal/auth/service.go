package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// Password length rules.  bcrypt ignores input beyond 72 bytes, so longer
// passwords are refused rather than silently truncated.
const (
	MinPasswordLen   = 8
	MaxPasswordBytes = 72
)

// UserStore is the slice of the user repository the auth flows read and write.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SessionStore persists the single live refresh token of a user.
type SessionStore interface {
	SetRefreshToken(ctx context.Context, userID, token string) error
	Clear(ctx context.Context, userID string) error
	Current(ctx context.Context, userID string) (string, error)
}

// EventPublisher receives account events.  Publishing is best effort and
// bounded by the store timeout, so a dead broker cannot stall a request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AccountEvent) error
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User   model.User
	Tokens TokenPair
}

// ChangePasswordInput carries the fields of a password change request.
type ChangePasswordInput struct {
	Email              string
	OldPassword        string
	NewPassword        string
	ConfirmNewPassword string
	// Actor, when set, must own the account or be an admin.
	Actor *Actor
}

// Service runs the login, logout and password change flows.
type Service struct {
	users        UserStore
	sessions     SessionStore
	hasher       *Hasher
	tokens       *TokenService
	events       EventPublisher
	log          *zap.Logger
	storeTimeout time.Duration
}

// NewService wires the auth flows.  events and log may be nil.
func NewService(users UserStore, sessions SessionStore, hasher *Hasher, tokens *TokenService, events EventPublisher, log *zap.Logger, storeTimeout time.Duration) *Service {
	if users == nil || sessions == nil || hasher == nil || tokens == nil {
		panic("nil dependency passed to auth.NewService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		tokens:       tokens,
		events:       events,
		log:          log,
		storeTimeout: storeTimeout,
	}
}

// Login verifies credentials, issues a token pair and stores its refresh
// token, replacing any previous session of the user.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.findByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash unusable", zap.String("user_id", u.ID), zap.Error(err))
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	// Not atomic with Issue: a failure here leaves the pair unpersisted and
	// the client simply has to log in again.
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.sessions.SetRefreshToken(ctx, u.ID, pair.RefreshToken)
	}); err != nil {
		return LoginResult{}, StorageFailure("store refresh token", err)
	}

	s.publish(ctx, queue.NewAccountEvent(queue.EventLoggedIn, u.ID, u.Email))
	return LoginResult{User: u, Tokens: pair}, nil
}

// Logout clears the stored refresh token of the authenticated subject.
// Clearing an absent session succeeds.
func (s *Service) Logout(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return ErrUnauthorized
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.sessions.Clear(ctx, subjectID)
	}); err != nil {
		return StorageFailure("clear refresh token", err)
	}
	s.publish(ctx, queue.NewAccountEvent(queue.EventLoggedOut, subjectID, ""))
	return nil
}

// SessionActive reports whether subjectID currently has a stored refresh
// token.  A user deleted since the token was issued has no session.
func (s *Service) SessionActive(ctx context.Context, subjectID string) (bool, error) {
	if subjectID == "" {
		return false, ErrUnauthorized
	}
	var tok string
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		tok, err = s.sessions.Current(ctx, subjectID)
		return err
	})
	switch {
	case err == nil:
		return tok != "", nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, StorageFailure("read refresh token", err)
	}
}

// ChangePassword rotates the credential hash and ends the current session.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	u, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if in.Actor != nil && !in.Actor.CanManage(u.ID) {
		return ErrForbidden
	}
	ok, err := s.hasher.Verify(in.OldPassword, u.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash unusable", zap.String("user_id", u.ID), zap.Error(err))
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return ErrMismatch
	}
	if err := CheckPasswordPolicy(in.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdatePasswordHash(ctx, u.ID, hash)
	}); err != nil {
		return StorageFailure("update password hash", err)
	}
	// Not atomic with the hash update: when the clear fails the new password
	// is already stored but the old session is still live, so the caller gets
	// a storage failure and has to log out (or change the password again).
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.sessions.Clear(ctx, u.ID)
	}); err != nil {
		s.log.Error("password changed but session not cleared",
			zap.String("user_id", u.ID), zap.Error(err))
		return StorageFailure("clear refresh token", err)
	}

	s.publish(ctx, queue.NewAccountEvent(queue.EventPasswordChanged, u.ID, u.Email))
	return nil
}

// CheckPasswordPolicy enforces the password length rules.
func CheckPasswordPolicy(p string) error {
	if len([]rune(p)) < MinPasswordLen {
		return PolicyError("password must be at least 8 characters")
	}
	if len(p) > MaxPasswordBytes {
		return PolicyError("password must be at most 72 bytes")
	}
	return nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.users.GetByEmail(ctx, email)
		return err
	})
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, repository.ErrNotFound):
		return model.User{}, ErrNotFound
	default:
		return model.User{}, StorageFailure("find user by email", err)
	}
}

func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) publish(ctx context.Context, ev queue.AccountEvent) {
	if s.events == nil {
		return
	}
	// the account change is already committed; a client disconnect must not
	// drop the event, only the deadline may
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish account event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
