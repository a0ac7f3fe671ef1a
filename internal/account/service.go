// Package account implements registration and the profile operations:
// lookup, listing, rename, deletion and profile photo upload.
package account

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// MinNameLen is the shortest accepted display name.
const MinNameLen = 2

// DefaultMaxPhotoBytes bounds profile photo uploads when no limit is configured.
const DefaultMaxPhotoBytes int64 = 5 << 20

// UserStore is the user repository as seen by the account operations.
type UserStore interface {
	Create(ctx context.Context, u model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdateImageURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

// ObjectStore receives profile photos and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Repassword string
}

// Photo is an uploaded profile image.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Options tunes a Service.  Zero values fall back to defaults.
type Options struct {
	StoreTimeout  time.Duration
	UploadTimeout time.Duration
	MaxPhotoBytes int64
}

type Service struct {
	users   UserStore
	hasher  *auth.Hasher
	objects ObjectStore
	events  auth.EventPublisher
	log     *zap.Logger
	opts    Options
}

// NewService wires the account operations.  objects, events and log may be
// nil; photo upload then fails with a storage error.
func NewService(users UserStore, hasher *auth.Hasher, objects ObjectStore, events auth.EventPublisher, log *zap.Logger, opts Options) *Service {
	if users == nil || hasher == nil {
		panic("nil dependency passed to account.NewService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	if opts.MaxPhotoBytes <= 0 {
		opts.MaxPhotoBytes = DefaultMaxPhotoBytes
	}
	return &Service{users: users, hasher: hasher, objects: objects, events: events, log: log, opts: opts}
}

// Register creates a regular user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if err := checkName(name); err != nil {
		return model.User{}, err
	}
	if err := checkEmail(email); err != nil {
		return model.User{}, err
	}
	if in.Password != in.Repassword {
		return model.User{}, auth.ErrMismatch
	}
	if err := auth.CheckPasswordPolicy(in.Password); err != nil {
		return model.User{}, err
	}

	_, err := s.byEmail(ctx, email)
	switch {
	case err == nil:
		return model.User{}, auth.ErrEmailTaken
	case !errors.Is(err, auth.ErrNotFound):
		return model.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleRegular,
	}
	err = s.withTimeout(ctx, func(ctx context.Context) error { return s.users.Create(ctx, u) })
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		// lost a race with a concurrent registration
		return model.User{}, auth.ErrEmailTaken
	case err != nil:
		return model.User{}, auth.StorageFailure("create user", err)
	}

	s.publish(ctx, queue.NewAccountEvent(queue.EventRegistered, u.ID, u.Email))
	return u, nil
}

// ByEmail returns the user with the given email.
func (s *Service) ByEmail(ctx context.Context, email string) (model.User, error) {
	return s.byEmail(ctx, email)
}

// ByID returns the user with the given id.
func (s *Service) ByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.users.GetByID(ctx, id)
		return err
	})
	return u, lookupError("find user by id", err)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		users, err = s.users.List(ctx)
		return err
	})
	if err != nil {
		return nil, auth.StorageFailure("list users", err)
	}
	return users, nil
}

// UpdateName renames the user identified by email.
func (s *Service) UpdateName(ctx context.Context, actor auth.Actor, email, name string) (model.User, error) {
	name = strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return model.User{}, err
	}
	u, err := s.byEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if !actor.CanManage(u.ID) {
		return model.User{}, auth.ErrForbidden
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdateName(ctx, u.ID, name)
	}); err != nil {
		return model.User{}, auth.StorageFailure("update name", err)
	}
	u.Name = name
	s.publish(ctx, withActor(queue.NewAccountEvent(queue.EventUpdated, u.ID, u.Email), actor))
	return u, nil
}

// Delete removes the user identified by id.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if strings.TrimSpace(id) == "" {
		return auth.PolicyError("user id is required")
	}
	u, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(u.ID) {
		return auth.ErrForbidden
	}
	err = s.withTimeout(ctx, func(ctx context.Context) error { return s.users.Delete(ctx, u.ID) })
	if err != nil {
		return lookupError("delete user", err)
	}
	s.publish(ctx, withActor(queue.NewAccountEvent(queue.EventDeleted, u.ID, u.Email), actor))
	return nil
}

// UploadPhoto stores p as the profile photo of the user identified by email.
// Only the account owner may replace its photo.
func (s *Service) UploadPhoto(ctx context.Context, actor auth.Actor, email string, p Photo) (string, error) {
	u, err := s.byEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if actor.ID == "" || actor.ID != u.ID {
		return "", auth.ErrForbidden
	}
	if !strings.HasPrefix(strings.ToLower(p.ContentType), "image/") {
		return "", auth.PolicyError("profile photo must be an image")
	}
	if p.Size <= 0 || p.Size > s.opts.MaxPhotoBytes {
		return "", auth.PolicyError("profile photo size out of range")
	}
	if s.objects == nil {
		return "", auth.StorageFailure("upload photo", errors.New("object storage not configured"))
	}

	name := ObjectName(u.ID, p.Filename)
	uctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()
	url, err := s.objects.Upload(uctx, name, p.ContentType, io.LimitReader(p.Body, s.opts.MaxPhotoBytes))
	if err != nil {
		return "", auth.StorageFailure("upload photo", err)
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdateImageURL(ctx, u.ID, url)
	}); err != nil {
		return "", auth.StorageFailure("update image url", err)
	}
	s.publish(ctx, queue.NewAccountEvent(queue.EventPhotoUpdated, u.ID, u.Email))
	return url, nil
}

// ObjectName builds a collision-free object path for a user's photo,
// keeping only a short lowercase extension from the client filename.
func ObjectName(userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 5 || strings.ContainsAny(ext, " /\\?#%") {
		ext = ""
	}
	return "profiles/" + userID + "/" + ksuid.New().String() + ext
}

func (s *Service) byEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.users.GetByEmail(ctx, email)
		return err
	})
	return u, lookupError("find user by email", err)
}

func lookupError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return auth.ErrNotFound
	default:
		return auth.StorageFailure(op, err)
	}
}

func checkName(name string) error {
	if len([]rune(name)) < MinNameLen {
		return auth.PolicyError("name must be at least 2 characters")
	}
	return nil
}

func checkEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return auth.PolicyError("invalid email format")
	}
	return nil
}

func withActor(ev queue.AccountEvent, actor auth.Actor) queue.AccountEvent {
	ev.ActorID = actor.ID
	return ev
}

func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) publish(ctx context.Context, ev queue.AccountEvent) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish account event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
