// Package auth decides whether the client may use the dashboard and owns
// the stored login's lifecycle.
package auth

import (
	"context"
	"log/slog"

	"apkdash/internal/api"
	"apkdash/internal/record"
)

// Status classifies the outcome of a guard check.
type Status string

const (
	// StatusAuthenticated means the server confirmed the stored login.
	StatusAuthenticated Status = "authenticated"
	// StatusRejected means there is no usable login: none stored, or the
	// server explicitly invalidated it (in which case it was deleted).
	StatusRejected Status = "rejected"
	// StatusUnreachable means the server could not be asked. The stored
	// login is kept and the client proceeds offline.
	StatusUnreachable Status = "unreachable"
)

// Result is what a guard check produced. The caller decides navigation;
// the guard never redirects by itself.
type Result struct {
	Status  Status
	Reason  string
	Session *record.AuthSession
}

// Authenticated reports whether the client may proceed. Unreachable counts:
// an explicit server rejection is a hard failure, an unreachable server is
// not, so offline use keeps working.
func (r *Result) Authenticated() bool {
	return r.Status != StatusRejected
}

// Store is the subset of the record store the guard needs.
type Store interface {
	AuthSession() (*record.AuthSession, error)
	SaveAuthSession(*record.AuthSession) error
	ClearAuthSession() error
}

// Client is the subset of the API client the guard needs.
type Client interface {
	VerifyAuth(ctx context.Context, username, deviceID string) (*api.VerifyResult, error)
	Login(ctx context.Context, username, password string) (*api.LoginResult, error)
	Logout(ctx context.Context, username, deviceID string) error
}

// Guard validates the stored login against the server once per process
// start.
type Guard struct {
	store  Store
	client Client
	log    *slog.Logger
}

func NewGuard(store Store, client Client, log *slog.Logger) *Guard {
	return &Guard{store: store, client: client, log: log.With("component", "auth")}
}

// Check runs the load-time validation. Without a stored login it returns
// StatusRejected without touching the network. With one, the server is
// asked; an explicit invalid deletes the login locally, while a transport
// failure keeps it and fails open.
func (g *Guard) Check(ctx context.Context) *Result {
	sess, err := g.store.AuthSession()
	if err != nil {
		g.log.Error("read auth session", "err", err)
		sess = nil
	}
	if sess == nil {
		return &Result{Status: StatusRejected, Reason: "no stored session"}
	}

	verify, err := g.client.VerifyAuth(ctx, sess.Username, sess.DeviceID)
	if err != nil {
		g.log.Warn("auth verify unreachable, allowing offline use", "err", err)
		return &Result{Status: StatusUnreachable, Session: sess}
	}
	if !verify.Valid {
		g.log.Info("auth session invalidated by server", "reason", verify.Reason)
		if err = g.store.ClearAuthSession(); err != nil {
			g.log.Error("clear auth session", "err", err)
		}
		return &Result{Status: StatusRejected, Reason: verify.Reason}
	}

	g.log.Info("auth session valid", "username", sess.Username)
	return &Result{Status: StatusAuthenticated, Session: sess}
}

// Login obtains a device-bound session from the server and stores it.
func (g *Guard) Login(ctx context.Context, username, password string) (*record.AuthSession, error) {
	result, err := g.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	sess := &record.AuthSession{
		Username:  result.Username,
		DeviceID:  result.DeviceID,
		ExpiresAt: result.ExpiresAt,
	}
	if err = g.store.SaveAuthSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout notifies the server on a best-effort basis, then deletes the
// stored login unconditionally.
func (g *Guard) Logout(ctx context.Context) error {
	sess, err := g.store.AuthSession()
	if err != nil {
		g.log.Error("read auth session", "err", err)
		sess = nil
	}
	if sess != nil {
		if err = g.client.Logout(ctx, sess.Username, sess.DeviceID); err != nil {
			g.log.Warn("server logout failed", "err", err)
		}
	}
	return g.store.ClearAuthSession()
}
