// Package api implements the HTTP client for the build server's dashboard
// API.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error is a server-reported request failure with a short user-facing
// message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the build server. All requests go through Transport, so
// fingerprint echo and Authorization injection apply uniformly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	fp         *Fingerprint
	log        *slog.Logger
}

// NewClient returns a client for the server at baseURL. creds may be nil for
// an unauthenticated client.
func NewClient(baseURL string, creds CredentialSource, log *slog.Logger) *Client {
	fp := &Fingerprint{}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // build submissions are slow
			Transport: &Transport{
				Fingerprint: fp,
				Credentials: creds,
			},
		},
		fp:  fp,
		log: log.With("component", "api"),
	}
}

// Stats is the server load summary shown on the dashboard.
type Stats struct {
	TotalUsers     int    `json:"totalUsers"`
	ActiveSessions int    `json:"activeSessions"`
	Uptime         int    `json:"uptime"` // seconds
	QueueStatus    string `json:"queueStatus"`
}

// Stats fetches GET /api/stats.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.getJSON(ctx, "/api/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Specs describes the build host.
type Specs struct {
	OS     SpecsOS     `json:"os"`
	CPU    SpecsCPU    `json:"cpu"`
	Memory SpecsMemory `json:"memory"`
	Node   string      `json:"node"`
}

type SpecsOS struct {
	Platform string `json:"platform"`
	Arch     string `json:"arch"`
}

type SpecsCPU struct {
	Model string `json:"model"`
	Cores int    `json:"cores"`
}

type SpecsMemory struct {
	Used  float64 `json:"used"`  // GB
	Total float64 `json:"total"` // GB
}

// Specs fetches GET /api/specs. The response is expected to carry the
// server fingerprint header; its absence is logged but not an error.
func (c *Client) Specs(ctx context.Context) (*Specs, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/specs", nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.Header.Get(HeaderServerFingerprint) == "" {
		c.log.Warn("server fingerprint missing from specs response")
	}

	var specs Specs
	if err = decodeResponse(resp, &specs); err != nil {
		return nil, err
	}
	return &specs, nil
}

// VerifyResult is the server's judgment on a stored login.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// VerifyAuth asks the server whether the login is still valid. A transport
// failure is returned as an error, distinct from an explicit Valid=false.
func (c *Client) VerifyAuth(ctx context.Context, username, deviceID string) (*VerifyResult, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("deviceId", deviceID)

	var result VerifyResult
	if err := c.getJSON(ctx, "/api/auth/verify?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LoginResult is the session issued by the server on login.
type LoginResult struct {
	Username  string    `json:"username"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login exchanges credentials for a device-bound session.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	var result LoginResult
	if err := c.postJSON(ctx, "/api/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout notifies the server that the session ends. Callers treat failure
// as non-fatal; the local session is deleted regardless.
func (c *Client) Logout(ctx context.Context, username, deviceID string) error {
	body := struct {
		Username string `json:"username"`
		DeviceID string `json:"deviceId"`
	}{Username: username, DeviceID: deviceID}

	return c.postJSON(ctx, "/api/auth/logout", body, nil)
}

// BuildResult is the download descriptor a successful build yields.
type BuildResult struct {
	DownloadURL string `json:"downloadUrl"`
	ExpiresIn   int    `json:"expiresIn"` // seconds
}

// URLBuildParams describes a URL-to-package build.
type URLBuildParams struct {
	URL     string
	AppName string
	Icon    []byte // optional, PNG or JPEG
}

// SubmitURLBuild submits a URL build and blocks until the server reports a
// download descriptor or an error.
func (c *Client) SubmitURLBuild(ctx context.Context, params *URLBuildParams) (*BuildResult, error) {
	body := struct {
		URL     string `json:"url"`
		AppName string `json:"appName,omitempty"`
		Icon    string `json:"icon,omitempty"`
	}{URL: params.URL, AppName: params.AppName}
	if len(params.Icon) > 0 {
		body.Icon = base64.StdEncoding.EncodeToString(params.Icon)
	}

	var result BuildResult
	if err := c.postJSON(ctx, "/api/build", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ZipBuildParams describes a project-archive build.
type ZipBuildParams struct {
	Filename    string
	Content     []byte
	ProjectType string // e.g. "flutter"
	BuildType   string // "release" or "debug"
}

// SubmitZipBuild uploads the archive as multipart form data and blocks
// until the server reports a download descriptor or an error.
func (c *Client) SubmitZipBuild(ctx context.Context, params *ZipBuildParams) (*BuildResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", params.Filename)
	if err != nil {
		return nil, err
	}
	if _, err = part.Write(params.Content); err != nil {
		return nil, err
	}
	if err = mw.WriteField("projectType", params.ProjectType); err != nil {
		return nil, err
	}
	if err = mw.WriteField("buildType", params.BuildType); err != nil {
		return nil, err
	}
	if err = mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/build/zip", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result BuildResult
	if err = decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logs fetches the server-side build log lines for a session.
func (c *Client) Logs(ctx context.Context, sessionID string) ([]string, error) {
	q := url.Values{}
	q.Set("sessionId", sessionID)

	var result struct {
		Logs []string `json:"logs"`
	}
	if err := c.getJSON(ctx, "/api/logs?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Logs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
