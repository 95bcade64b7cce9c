// Package session provides the per-process session token that scopes log
// retrieval and tags persisted build records.
package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	prefix      = "sess-"
	suffixLen   = 7
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var processID = sync.OnceValue(Generate)

// ID returns the session token for this process. The first call generates
// it; every later call returns the same value.
func ID() string {
	return processID()
}

// Generate builds a fresh token of the form "sess-<millis>-<suffix>".
// Uniqueness is best effort: the token only scopes log visibility.
func Generate() string {
	suffix := make([]byte, suffixLen)
	for i := range suffix {
		suffix[i] = base36Chars[rand.Intn(len(base36Chars))]
	}
	return fmt.Sprintf("%s%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
