package record

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AuthSession is the stored login: one per profile, not per pipeline.
type AuthSession struct {
	Username  string
	DeviceID  string
	ExpiresAt time.Time
}

// SaveAuthSession stores sess, replacing any prior login.
func (s *Store) SaveAuthSession(sess *AuthSession) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO auth_sessions (id, username, device_id, expires_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			device_id = excluded.device_id,
			expires_at = excluded.expires_at
	`, sess.Username, sess.DeviceID, sess.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save auth session: %w", err)
	}
	return nil
}

// AuthSession returns the stored login, or nil when there is none. An
// expired login is deleted on read and reported as absent.
func (s *Store) AuthSession() (*AuthSession, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}

	var (
		username    string
		deviceID    string
		expiresAtMs int64
	)
	err := s.db.QueryRow(`
		SELECT username, device_id, expires_at FROM auth_sessions WHERE id = 1
	`).Scan(&username, &deviceID, &expiresAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth session: %w", err)
	}

	sess := &AuthSession{
		Username:  username,
		DeviceID:  deviceID,
		ExpiresAt: time.UnixMilli(expiresAtMs),
	}
	if !sess.ExpiresAt.After(s.now()) {
		_ = s.ClearAuthSession()
		return nil, nil
	}
	return sess, nil
}

// ClearAuthSession deletes the stored login.
func (s *Store) ClearAuthSession() error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("clear auth session: %w", err)
	}
	return nil
}

// Credentials exposes the stored login as bearer credentials for API calls.
// It reports ok false when no valid login exists.
func (s *Store) Credentials() (username, deviceID string, ok bool) {
	sess, err := s.AuthSession()
	if err != nil || sess == nil {
		return "", "", false
	}
	return sess.Username, sess.DeviceID, true
}
