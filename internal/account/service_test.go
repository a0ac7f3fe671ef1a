package account_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/account"
	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
)

type memUsers struct {
	mu        sync.Mutex
	users     map[string]model.User // by id
	createErr error
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]model.User{}} }

func (m *memUsers) Create(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) UpdateName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.Name = name
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdateImageURL(_ context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.ImageURL = url
	m.users[id] = u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type fakeObjects struct {
	name        string
	contentType string
	body        []byte
	err         error
}

func (f *fakeObjects) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.name, f.contentType, f.body = name, contentType, b
	return "https://storage.googleapis.com/test-bucket/" + name, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []queue.AccountEvent
}

func (l *eventLog) Publish(_ context.Context, ev queue.AccountEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) last() queue.AccountEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func newService(t *testing.T, users *memUsers, objects account.ObjectStore, events auth.EventPublisher) *account.Service {
	t.Helper()
	return account.NewService(users, auth.NewHasher(auth.MinBcryptCost), objects, events, nil, account.Options{MaxPhotoBytes: 1024})
}

func register(t *testing.T, svc *account.Service, name, email string) model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), account.RegisterInput{
		Name: name, Email: email, Password: "secret123", Repassword: "secret123",
	})
	require.NoError(t, err)
	return u
}

func TestRegister_CreatesRegularUser(t *testing.T) {
	users, events := newMemUsers(), &eventLog{}
	svc := newService(t, users, nil, events)

	u := register(t, svc, "  Alice ", " a@x.com")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, model.RoleRegular, u.Role)
	assert.Nil(t, u.RefreshToken)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	ok, err := auth.NewHasher(auth.MinBcryptCost).Verify("secret123", users.users[u.ID].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, queue.EventRegistered, events.last().Type)
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		in      account.RegisterInput
		wantErr error
	}{
		{"short_name", account.RegisterInput{Name: "A", Email: "b@x.com", Password: "secret123", Repassword: "secret123"}, auth.ErrPolicyViolation},
		{"bad_email", account.RegisterInput{Name: "Bob", Email: "not-an-email", Password: "secret123", Repassword: "secret123"}, auth.ErrPolicyViolation},
		{"display_name_email", account.RegisterInput{Name: "Bob", Email: "Bob <b@x.com>", Password: "secret123", Repassword: "secret123"}, auth.ErrPolicyViolation},
		{"mismatch", account.RegisterInput{Name: "Bob", Email: "b@x.com", Password: "secret123", Repassword: "secret124"}, auth.ErrMismatch},
		{"short_password", account.RegisterInput{Name: "Bob", Email: "b@x.com", Password: "short", Repassword: "short"}, auth.ErrPolicyViolation},
		{"taken", account.RegisterInput{Name: "Bob", Email: "a@x.com", Password: "secret123", Repassword: "secret123"}, auth.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newMemUsers()
			svc := newService(t, users, nil, nil)
			register(t, svc, "Alice", "a@x.com")

			_, err := svc.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, users.users, 1)
		})
	}
}

func TestRegister_StoreFault(t *testing.T) {
	users := newMemUsers()
	users.createErr = errors.New("connection refused")
	svc := newService(t, users, nil, nil)

	_, err := svc.Register(context.Background(), account.RegisterInput{
		Name: "Alice", Email: "a@x.com", Password: "secret123", Repassword: "secret123",
	})
	assert.ErrorIs(t, err, auth.ErrStorage)
}

func TestRegister_LostRaceIsEmailTaken(t *testing.T) {
	users := newMemUsers()
	users.createErr = repository.ErrEmailExists
	svc := newService(t, users, nil, nil)

	_, err := svc.Register(context.Background(), account.RegisterInput{
		Name: "Alice", Email: "a@x.com", Password: "secret123", Repassword: "secret123",
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestLookups(t *testing.T) {
	svc := newService(t, newMemUsers(), nil, nil)
	u := register(t, svc, "Alice", "a@x.com")
	ctx := context.Background()

	got, err := svc.ByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = svc.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = svc.ByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = svc.ByID(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateName(t *testing.T) {
	users, events := newMemUsers(), &eventLog{}
	svc := newService(t, users, nil, events)
	alice := register(t, svc, "Alice", "a@x.com")
	bob := register(t, svc, "Bob", "b@x.com")
	ctx := context.Background()

	_, err := svc.UpdateName(ctx, auth.Actor{ID: bob.ID, Role: model.RoleRegular}, "a@x.com", "Mallory")
	assert.ErrorIs(t, err, auth.ErrForbidden)
	assert.Equal(t, "Alice", users.users[alice.ID].Name)

	_, err = svc.UpdateName(ctx, auth.Actor{ID: alice.ID}, "a@x.com", " ")
	assert.ErrorIs(t, err, auth.ErrPolicyViolation)

	updated, err := svc.UpdateName(ctx, auth.Actor{ID: alice.ID, Role: model.RoleRegular}, "a@x.com", "Alicia")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "Alicia", users.users[alice.ID].Name)
	assert.Equal(t, alice.ID, events.last().ActorID)

	_, err = svc.UpdateName(ctx, auth.Actor{ID: bob.ID, Role: model.RoleAdmin}, "a@x.com", "Renamed")
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	users := newMemUsers()
	svc := newService(t, users, nil, nil)
	alice := register(t, svc, "Alice", "a@x.com")
	bob := register(t, svc, "Bob", "b@x.com")
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, auth.Actor{ID: bob.ID, Role: model.RoleStaff}, alice.ID), auth.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, auth.Actor{ID: bob.ID}, "missing"), auth.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, auth.Actor{ID: bob.ID}, ""), auth.ErrPolicyViolation)

	require.NoError(t, svc.Delete(ctx, auth.Actor{ID: bob.ID, Role: model.RoleAdmin}, alice.ID))
	_, err := svc.ByID(ctx, alice.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, auth.Actor{ID: bob.ID}, bob.ID))
	assert.Empty(t, users.users)
}

func TestUploadPhoto(t *testing.T) {
	users, objects, events := newMemUsers(), &fakeObjects{}, &eventLog{}
	svc := newService(t, users, objects, events)
	alice := register(t, svc, "Alice", "a@x.com")
	owner := auth.Actor{ID: alice.ID, Role: model.RoleRegular}
	ctx := context.Background()

	img := []byte("\x89PNG fake image bytes")
	url, err := svc.UploadPhoto(ctx, owner, "a@x.com", account.Photo{
		Filename: "Me.PNG", ContentType: "image/png", Size: int64(len(img)), Body: bytes.NewReader(img),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(objects.name, "profiles/"+alice.ID+"/"))
	assert.True(t, strings.HasSuffix(objects.name, ".png"))
	assert.Equal(t, img, objects.body)
	assert.Equal(t, "image/png", objects.contentType)
	assert.Equal(t, url, users.users[alice.ID].ImageURL)
	assert.Equal(t, queue.EventPhotoUpdated, events.last().Type)
}

func TestUploadPhoto_Rejections(t *testing.T) {
	admin := auth.Actor{ID: "admin-1", Role: model.RoleAdmin}
	tests := []struct {
		name    string
		actor   func(owner model.User) auth.Actor
		photo   account.Photo
		objects account.ObjectStore
		wantErr error
	}{
		{
			name:    "admin_is_not_owner",
			actor:   func(model.User) auth.Actor { return admin },
			photo:   account.Photo{Filename: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("abc")},
			objects: &fakeObjects{},
			wantErr: auth.ErrForbidden,
		},
		{
			name:    "not_an_image",
			actor:   func(u model.User) auth.Actor { return auth.Actor{ID: u.ID} },
			photo:   account.Photo{Filename: "a.txt", ContentType: "text/plain", Size: 3, Body: strings.NewReader("abc")},
			objects: &fakeObjects{},
			wantErr: auth.ErrPolicyViolation,
		},
		{
			name:    "too_large",
			actor:   func(u model.User) auth.Actor { return auth.Actor{ID: u.ID} },
			photo:   account.Photo{Filename: "a.png", ContentType: "image/png", Size: 4096, Body: strings.NewReader("abc")},
			objects: &fakeObjects{},
			wantErr: auth.ErrPolicyViolation,
		},
		{
			name:    "storage_not_configured",
			actor:   func(u model.User) auth.Actor { return auth.Actor{ID: u.ID} },
			photo:   account.Photo{Filename: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("abc")},
			objects: nil,
			wantErr: auth.ErrStorage,
		},
		{
			name:    "upload_fails",
			actor:   func(u model.User) auth.Actor { return auth.Actor{ID: u.ID} },
			photo:   account.Photo{Filename: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("abc")},
			objects: &fakeObjects{err: errors.New("googleapi: Error 403")},
			wantErr: auth.ErrStorage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newMemUsers()
			svc := newService(t, users, tt.objects, nil)
			u := register(t, svc, "Alice", "a@x.com")

			_, err := svc.UploadPhoto(context.Background(), tt.actor(u), "a@x.com", tt.photo)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, users.users[u.ID].ImageURL)
		})
	}
}

func TestObjectName(t *testing.T) {
	a := account.ObjectName("u1", "../../etc/passwd")
	b := account.ObjectName("u1", "photo.jpeg")
	c := account.ObjectName("u1", "photo.jpeg")

	assert.True(t, strings.HasPrefix(a, "profiles/u1/"))
	assert.NotContains(t, strings.TrimPrefix(a, "profiles/u1/"), "/")
	assert.True(t, strings.HasSuffix(b, ".jpeg"))
	assert.NotEqual(t, b, c)
	assert.False(t, strings.Contains(account.ObjectName("u1", "x.longextension"), "longextension"))
}
