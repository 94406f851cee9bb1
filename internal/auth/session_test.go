package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTrackerStartCreatesSession(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	if err := tracker.Start(context.Background(), 7, "10.0.0.1", "test-agent"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	session, ok := store.sessions[7]
	if !ok {
		t.Fatal("no session recorded")
	}
	if !session.Active {
		t.Error("session not active")
	}
	if session.Token == "" {
		t.Error("session token empty")
	}
	if session.IPAddress != "10.0.0.1" || session.UserAgent != "test-agent" {
		t.Errorf("session origin = %q/%q, want request values", session.IPAddress, session.UserAgent)
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Error("ExpiresAt not after CreatedAt")
	}
}

func TestTrackerStartRenewsInPlace(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	if err := tracker.Start(context.Background(), 7, "10.0.0.1", "agent"); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	token := store.sessions[7].Token

	if err := tracker.Start(context.Background(), 7, "10.0.0.2", "agent"); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if store.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1 (renew, not duplicate)", store.createCalls)
	}
	if store.sessions[7].Token != token {
		t.Error("renewal replaced the session token")
	}
}

func TestTrackerStartReplacesSessionPastAbsoluteExpiry(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	// Active row past expires_at that no touch has cleaned up yet.
	store.sessions[7] = Session{
		UserID:       7,
		Token:        "stale-token",
		Active:       true,
		LastActivity: time.Now().UTC().Add(-30 * time.Minute),
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}

	if err := tracker.Start(context.Background(), 7, "10.0.0.1", "agent"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	session := store.sessions[7]
	if !session.Active {
		t.Fatal("re-login left no active session")
	}
	if session.Token == "stale-token" {
		t.Error("expired session renewed instead of replaced")
	}
	if !session.ExpiresAt.After(time.Now().UTC()) {
		t.Error("replacement session already expired")
	}

	// The session a login hands back must survive the next touch.
	if err := tracker.Touch(context.Background(), 7); err != nil {
		t.Errorf("Touch() after re-login error = %v", err)
	}
}

func TestTrackerStartReplacesIdleSession(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	store.sessions[7] = Session{
		UserID:       7,
		Token:        "idle-token",
		Active:       true,
		LastActivity: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}

	if err := tracker.Start(context.Background(), 7, "10.0.0.1", "agent"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if store.sessions[7].Token == "idle-token" {
		t.Error("idled-out session renewed instead of replaced")
	}
	if err := tracker.Touch(context.Background(), 7); err != nil {
		t.Errorf("Touch() after re-login error = %v", err)
	}
}

func TestTrackerTouchRefreshesActivity(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	past := time.Now().UTC().Add(-10 * time.Minute)
	store.sessions[7] = Session{
		UserID:       7,
		Active:       true,
		LastActivity: past,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}

	if err := tracker.Touch(context.Background(), 7); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if !store.sessions[7].LastActivity.After(past) {
		t.Error("LastActivity not refreshed")
	}
}

func TestTrackerTouchExpiresIdleSession(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	store.sessions[7] = Session{
		UserID:       7,
		Active:       true,
		LastActivity: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}

	err := tracker.Touch(context.Background(), 7)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Touch() error = %v, want ErrSessionExpired", err)
	}
	if store.sessions[7].Active {
		t.Error("expired session left active")
	}

	// The row is gone for the next touch too.
	if err := tracker.Touch(context.Background(), 7); !errors.Is(err, ErrNoSession) {
		t.Errorf("second Touch() error = %v, want ErrNoSession", err)
	}
}

func TestTrackerTouchExpiresPastAbsoluteExpiry(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	store.sessions[7] = Session{
		UserID:       7,
		Active:       true,
		LastActivity: time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}

	if err := tracker.Touch(context.Background(), 7); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Touch() error = %v, want ErrSessionExpired", err)
	}
}

func TestTrackerTouchWithoutSession(t *testing.T) {
	tracker := NewTracker(newFakeStore(), time.Hour, 24*time.Hour)

	if err := tracker.Touch(context.Background(), 99); !errors.Is(err, ErrNoSession) {
		t.Errorf("Touch() error = %v, want ErrNoSession", err)
	}
}

func TestTrackerEndAllIdempotent(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, time.Hour, 24*time.Hour)

	if err := tracker.Start(context.Background(), 7, "10.0.0.1", "agent"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := tracker.EndAll(context.Background(), 7); err != nil {
		t.Fatalf("EndAll() error = %v", err)
	}
	if store.sessions[7].Active {
		t.Error("session still active after EndAll")
	}
	if err := tracker.EndAll(context.Background(), 7); err != nil {
		t.Errorf("second EndAll() error = %v, want nil", err)
	}
}
