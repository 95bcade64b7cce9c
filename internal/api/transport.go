package api

import (
	"net/http"
	"strings"
)

const (
	// HeaderServerFingerprint carries the server's anti-clone token on
	// responses.
	HeaderServerFingerprint = "X-Server-FP"
	// HeaderClientFingerprint echoes the last observed server token on
	// API requests.
	HeaderClientFingerprint = "X-Client-FP"

	headerAuthorization = "Authorization"

	apiPathPrefix = "/api/"
)

// CredentialSource supplies the bearer credentials attached to API requests.
// ok is false when the user is not logged in.
type CredentialSource interface {
	Credentials() (username, deviceID string, ok bool)
}

// Transport decorates a base http.RoundTripper with the dashboard's request
// augmentation: fingerprint echo and Authorization on paths under /api/.
// Every client request goes through it, so no call site can forget either
// header.
type Transport struct {
	Base        http.RoundTripper
	Fingerprint *Fingerprint
	Credentials CredentialSource
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasPrefix(req.URL.Path, apiPathPrefix) {
		req = req.Clone(req.Context())
		if t.Fingerprint != nil {
			if fp, ok := t.Fingerprint.Value(); ok {
				req.Header.Set(HeaderClientFingerprint, fp)
			}
		}
		if t.Credentials != nil {
			if username, deviceID, ok := t.Credentials.Credentials(); ok {
				req.Header.Set(headerAuthorization, "Bearer "+username+":"+deviceID)
			}
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if t.Fingerprint != nil {
		t.Fingerprint.Observe(resp.Header.Get(HeaderServerFingerprint))
	}
	return resp, nil
}
