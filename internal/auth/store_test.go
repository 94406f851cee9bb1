package auth

import (
	"context"
	"time"
)

// fakeStore is an in-memory stand-in for Repository covering both the
// user and session contracts.
type fakeStore struct {
	users  map[int64]User
	phones map[int64]string

	sessions map[int64]Session

	sessionErr     error
	createCalls    int
	refreshCalls   int
	deactivateCall int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]User),
		phones:   make(map[int64]string),
		sessions: make(map[int64]Session),
	}
}

func (f *fakeStore) addUser(u User, phone string) {
	f.users[u.ID] = u
	f.phones[u.ID] = phone
}

func (f *fakeStore) FindActiveByID(_ context.Context, id int64) (User, error) {
	u, ok := f.users[id]
	if !ok || !u.Active {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) FindActiveByEmail(_ context.Context, email string) (User, error) {
	for _, u := range f.users {
		if u.Email == email && u.Active {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (f *fakeStore) ContactPhone(_ context.Context, userID int64, _ string) (string, error) {
	return f.phones[userID], nil
}

func (f *fakeStore) EmailTaken(_ context.Context, email string) (bool, error) {
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AdminExists(_ context.Context) (bool, error) {
	for _, u := range f.users {
		if u.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateUser(_ context.Context, name, email, passwordHash, role string) (int64, error) {
	id := int64(len(f.users) + 1)
	f.users[id] = User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	return id, nil
}

func (f *fakeStore) ActiveSessionByUser(_ context.Context, userID int64) (Session, error) {
	if f.sessionErr != nil {
		return Session{}, f.sessionErr
	}
	s, ok := f.sessions[userID]
	if !ok || !s.Active {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f *fakeStore) CreateSession(_ context.Context, session Session) error {
	if f.sessionErr != nil {
		return f.sessionErr
	}
	f.createCalls++
	f.sessions[session.UserID] = session
	return nil
}

func (f *fakeStore) RefreshSessionActivity(_ context.Context, userID int64, at time.Time) error {
	if f.sessionErr != nil {
		return f.sessionErr
	}
	f.refreshCalls++
	s, ok := f.sessions[userID]
	if !ok {
		return nil
	}
	s.LastActivity = at
	f.sessions[userID] = s
	return nil
}

func (f *fakeStore) DeactivateSessions(_ context.Context, userID int64) error {
	if f.sessionErr != nil {
		return f.sessionErr
	}
	f.deactivateCall++
	s, ok := f.sessions[userID]
	if !ok {
		return nil
	}
	s.Active = false
	f.sessions[userID] = s
	return nil
}
