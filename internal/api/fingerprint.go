package api

import "sync"

// Fingerprint holds the most recently observed server fingerprint token.
// The server issues it on responses as X-Server-FP; the client echoes it on
// later API requests as X-Client-FP so the server can detect unauthorized
// redeployments of the client.
type Fingerprint struct {
	mu    sync.RWMutex
	value string
}

// Observe records a fingerprint received from the server.
func (f *Fingerprint) Observe(value string) {
	if value == "" {
		return
	}
	f.mu.Lock()
	f.value = value
	f.mu.Unlock()
}

// Value returns the last observed fingerprint. ok is false until one has
// been observed; callers must not wait for it.
func (f *Fingerprint) Value() (value string, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value, f.value != ""
}
