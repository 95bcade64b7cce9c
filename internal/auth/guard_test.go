package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"apkdash/internal/api"
	"apkdash/internal/record"
)

type stubStore struct {
	session    *record.AuthSession
	sessionErr error

	saved   *record.AuthSession
	cleared int
}

func (s *stubStore) AuthSession() (*record.AuthSession, error) {
	return s.session, s.sessionErr
}

func (s *stubStore) SaveAuthSession(sess *record.AuthSession) error {
	s.saved = sess
	s.session = sess
	return nil
}

func (s *stubStore) ClearAuthSession() error {
	s.cleared++
	s.session = nil
	return nil
}

type stubClient struct {
	verifyResult *api.VerifyResult
	verifyErr    error
	verifyCalls  int

	loginResult *api.LoginResult
	loginErr    error

	logoutErr   error
	logoutCalls int
}

func (c *stubClient) VerifyAuth(ctx context.Context, username, deviceID string) (*api.VerifyResult, error) {
	c.verifyCalls++
	return c.verifyResult, c.verifyErr
}

func (c *stubClient) Login(ctx context.Context, username, password string) (*api.LoginResult, error) {
	return c.loginResult, c.loginErr
}

func (c *stubClient) Logout(ctx context.Context, username, deviceID string) error {
	c.logoutCalls++
	return c.logoutErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validSession() *record.AuthSession {
	return &record.AuthSession{
		Username:  "alice",
		DeviceID:  "device-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestCheckWithoutSessionRejectsWithoutNetwork(t *testing.T) {
	store := &stubStore{}
	client := &stubClient{}
	guard := NewGuard(store, client, discardLogger())

	result := guard.Check(context.Background())

	if result.Status != StatusRejected {
		t.Fatalf("status = %s, want %s", result.Status, StatusRejected)
	}
	if result.Authenticated() {
		t.Error("rejected result reported as authenticated")
	}
	if client.verifyCalls != 0 {
		t.Errorf("verify called %d times without a session", client.verifyCalls)
	}
}

func TestCheckServerRejectionDeletesSession(t *testing.T) {
	store := &stubStore{session: validSession()}
	client := &stubClient{verifyResult: &api.VerifyResult{Valid: false, Reason: "expired"}}
	guard := NewGuard(store, client, discardLogger())

	result := guard.Check(context.Background())

	if result.Status != StatusRejected {
		t.Fatalf("status = %s, want %s", result.Status, StatusRejected)
	}
	if result.Reason != "expired" {
		t.Errorf("reason = %q, want expired", result.Reason)
	}
	if store.cleared != 1 {
		t.Errorf("session cleared %d times, want 1", store.cleared)
	}
}

func TestCheckUnreachableFailsOpen(t *testing.T) {
	store := &stubStore{session: validSession()}
	client := &stubClient{verifyErr: errors.New("connection refused")}
	guard := NewGuard(store, client, discardLogger())

	result := guard.Check(context.Background())

	if result.Status != StatusUnreachable {
		t.Fatalf("status = %s, want %s", result.Status, StatusUnreachable)
	}
	if !result.Authenticated() {
		t.Error("unreachable must fail open for offline use")
	}
	if store.cleared != 0 {
		t.Errorf("session deleted on a transport failure")
	}
	if result.Session == nil || result.Session.Username != "alice" {
		t.Errorf("local session not carried: %+v", result.Session)
	}
}

func TestCheckValidSession(t *testing.T) {
	store := &stubStore{session: validSession()}
	client := &stubClient{verifyResult: &api.VerifyResult{Valid: true}}
	guard := NewGuard(store, client, discardLogger())

	result := guard.Check(context.Background())

	if result.Status != StatusAuthenticated {
		t.Fatalf("status = %s, want %s", result.Status, StatusAuthenticated)
	}
	if store.cleared != 0 {
		t.Error("valid session was deleted")
	}
}

func TestLogoutClearsSessionEvenWhenServerFails(t *testing.T) {
	store := &stubStore{session: validSession()}
	client := &stubClient{logoutErr: errors.New("connection refused")}
	guard := NewGuard(store, client, discardLogger())

	if err := guard.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if client.logoutCalls != 1 {
		t.Errorf("server logout called %d times, want 1", client.logoutCalls)
	}
	if store.cleared != 1 {
		t.Errorf("session cleared %d times, want 1", store.cleared)
	}
}

func TestLogoutWithoutSessionSkipsServer(t *testing.T) {
	store := &stubStore{}
	client := &stubClient{}
	guard := NewGuard(store, client, discardLogger())

	if err := guard.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if client.logoutCalls != 0 {
		t.Errorf("server logout called with no session")
	}
}

func TestLoginStoresSession(t *testing.T) {
	store := &stubStore{}
	expires := time.Now().Add(24 * time.Hour)
	client := &stubClient{loginResult: &api.LoginResult{
		Username:  "alice",
		DeviceID:  "device-1",
		ExpiresAt: expires,
	}}
	guard := NewGuard(store, client, discardLogger())

	sess, err := guard.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.DeviceID != "device-1" || !sess.ExpiresAt.Equal(expires) {
		t.Fatalf("got %+v", sess)
	}
	if store.saved == nil {
		t.Fatal("session not persisted")
	}
}
