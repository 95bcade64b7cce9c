// Package devserver is a local stand-in for the build server's dashboard
// API. It fabricates build results instead of running the real pipeline and
// exists for development and integration tests.
package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	headerServerFingerprint = "X-Server-FP"

	// DownloadExpiresIn is the download window the stub declares, in
	// seconds.
	DownloadExpiresIn = 120
)

type session struct {
	deviceID  string
	expiresAt time.Time
}

type artifact struct {
	content   []byte
	expiresAt time.Time
}

// Handler implements the consumed API surface in memory.
type Handler struct {
	fingerprint string
	startedAt   time.Time
	log         *slog.Logger

	mu        sync.Mutex
	sessions  map[string]session  // username -> device session
	artifacts map[string]artifact // download name -> artifact
	builds    int
}

func NewHandler(log *slog.Logger) *Handler {
	return &Handler{
		fingerprint: uuid.NewString(),
		startedAt:   time.Now(),
		log:         log.With("component", "devserver"),
		sessions:    make(map[string]session),
		artifacts:   make(map[string]artifact),
	}
}

// Router builds the route table.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(h.withFingerprint)

		r.Get("/stats", h.getStats)
		r.Get("/specs", h.getSpecs)
		r.Get("/logs", h.getLogs)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/verify", h.getVerify)
			r.Post("/login", h.postLogin)
			r.Post("/logout", h.postLogout)
		})

		r.Post("/build", h.postBuild)
		r.Post("/build/zip", h.postZipBuild)
	})

	r.Get("/download/{name}", h.getDownload)

	return r
}

// withFingerprint stamps the anti-clone token on every API response.
func (h *Handler) withFingerprint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerServerFingerprint, h.fingerprint)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	users := len(h.sessions)
	builds := h.builds
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"totalUsers":     users,
		"activeSessions": users,
		"uptime":         int(time.Since(h.startedAt).Seconds()),
		"queueStatus":    queueStatus(builds),
	})
}

func queueStatus(builds int) string {
	if builds > 0 {
		return "busy"
	}
	return "ready"
}

func (h *Handler) getSpecs(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"os": map[string]string{
			"platform": runtime.GOOS,
			"arch":     runtime.GOARCH,
		},
		"cpu": map[string]any{
			"model": "devserver stub CPU",
			"cores": runtime.NumCPU(),
		},
		"memory": map[string]float64{
			"used":  float64(mem.Sys) / (1 << 30),
			"total": 8,
		},
		"node": runtime.Version(),
	})
}

func (h *Handler) getLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": []string{
			fmt.Sprintf("devserver ready, session %s", sessionID),
		},
	})
}

func (h *Handler) getVerify(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	deviceID := r.URL.Query().Get("deviceId")

	h.mu.Lock()
	sess, ok := h.sessions[username]
	h.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "unknown session"})
	case sess.deviceID != deviceID:
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "device mismatch"})
	case !sess.expiresAt.After(time.Now()):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "expired"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"valid": true})
	}
}

func (h *Handler) postLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusUnprocessableEntity, "username is required")
		return
	}

	sess := session{
		deviceID:  uuid.NewString(),
		expiresAt: time.Now().Add(24 * time.Hour),
	}
	h.mu.Lock()
	h.sessions[req.Username] = sess
	h.mu.Unlock()

	h.log.Info("login", "username", req.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  req.Username,
		"deviceId":  sess.deviceID,
		"expiresAt": sess.expiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) postLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	h.mu.Lock()
	if sess, ok := h.sessions[req.Username]; ok && sess.deviceID == req.DeviceID {
		delete(h.sessions, req.Username)
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) postBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL     string `json:"url"`
		AppName string `json:"appName"`
		Icon    string `json:"icon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusUnprocessableEntity, "a website URL is required")
		return
	}

	h.finishBuild(w, []byte("apk for "+req.URL))
}

func (h *Handler) postZipBuild(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "a project archive is required")
		return
	}
	defer func() { _ = file.Close() }()

	h.finishBuild(w, []byte("apk from "+header.Filename))
}

// finishBuild fabricates an artifact and answers with its download
// descriptor. The real pipeline is out of scope here.
func (h *Handler) finishBuild(w http.ResponseWriter, content []byte) {
	name := uuid.NewString() + ".apk"

	h.mu.Lock()
	h.builds++
	h.artifacts[name] = artifact{
		content:   content,
		expiresAt: time.Now().Add(DownloadExpiresIn * time.Second),
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"downloadUrl": "/download/" + name,
		"expiresIn":   DownloadExpiresIn,
	})
}

func (h *Handler) getDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	art, ok := h.artifacts[name]
	h.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if !art.expiresAt.After(time.Now()) {
		http.Error(w, "download expired", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	_, _ = w.Write(art.content)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
