package record

import (
	"testing"
	"time"
)

func TestAuthSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveAuthSession(&AuthSession{
		Username:  "alice",
		DeviceID:  "device-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to save auth session: %v", err)
	}

	sess, err := store.AuthSession()
	if err != nil {
		t.Fatalf("failed to get auth session: %v", err)
	}
	if sess == nil || sess.Username != "alice" || sess.DeviceID != "device-1" {
		t.Fatalf("got %+v", sess)
	}
}

func TestAuthSessionExpiredDeletedOnRead(t *testing.T) {
	store := newTestStore(t)
	t0 := time.Now()
	store.now = func() time.Time { return t0 }

	err := store.SaveAuthSession(&AuthSession{
		Username:  "alice",
		DeviceID:  "device-1",
		ExpiresAt: t0.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to save auth session: %v", err)
	}

	store.now = func() time.Time { return t0.Add(2 * time.Hour) }
	sess, err := store.AuthSession()
	if err != nil {
		t.Fatalf("failed to get auth session: %v", err)
	}
	if sess != nil {
		t.Fatalf("want nil, got %+v", sess)
	}

	// Deleted, not merely filtered.
	store.now = func() time.Time { return t0 }
	sess, err = store.AuthSession()
	if err != nil {
		t.Fatalf("failed to get auth session: %v", err)
	}
	if sess != nil {
		t.Fatal("expired auth session was not deleted")
	}
}

func TestAuthSessionReplaced(t *testing.T) {
	store := newTestStore(t)

	for _, username := range []string{"alice", "bob"} {
		err := store.SaveAuthSession(&AuthSession{
			Username:  username,
			DeviceID:  "device-" + username,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to save auth session: %v", err)
		}
	}

	sess, err := store.AuthSession()
	if err != nil {
		t.Fatalf("failed to get auth session: %v", err)
	}
	if sess == nil || sess.Username != "bob" {
		t.Fatalf("got %+v", sess)
	}
}

func TestCredentials(t *testing.T) {
	store := newTestStore(t)

	if _, _, ok := store.Credentials(); ok {
		t.Fatal("want no credentials before login")
	}

	err := store.SaveAuthSession(&AuthSession{
		Username:  "alice",
		DeviceID:  "device-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to save auth session: %v", err)
	}

	username, deviceID, ok := store.Credentials()
	if !ok || username != "alice" || deviceID != "device-1" {
		t.Fatalf("got %q %q %v", username, deviceID, ok)
	}
}
