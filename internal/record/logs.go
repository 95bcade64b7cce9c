package record

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LogEntry is one line of build output kept for redisplay across restarts.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// SaveLogs replaces the log buffer for sessionID with entries, newest first,
// keeping at most MaxLogEntries of them.
func (s *Store) SaveLogs(sessionID string, entries []LogEntry) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}

	if len(entries) > MaxLogEntries {
		entries = entries[:MaxLogEntries]
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("save logs: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO session_logs (session_id, entries, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			entries = excluded.entries,
			saved_at = excluded.saved_at
	`, sessionID, string(payload), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save logs: %w", err)
	}
	return nil
}

// Logs returns the buffered log entries for sessionID. A buffer older than
// MaxLogAge is deleted and reported as empty; so is a corrupt one.
func (s *Store) Logs(sessionID string) ([]LogEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}

	var (
		payload   string
		savedAtMs int64
	)
	err := s.db.QueryRow(`
		SELECT entries, saved_at FROM session_logs WHERE session_id = ?
	`, sessionID).Scan(&payload, &savedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get logs: %w", err)
	}

	if s.now().Sub(time.UnixMilli(savedAtMs)) > MaxLogAge {
		_ = s.ClearLogs(sessionID)
		return nil, nil
	}

	var entries []LogEntry
	if err = json.Unmarshal([]byte(payload), &entries); err != nil {
		s.log.Warn("discarding corrupt log buffer", "session_id", sessionID)
		_ = s.ClearLogs(sessionID)
		return nil, nil
	}
	return entries, nil
}

// ClearLogs deletes the log buffer for sessionID.
func (s *Store) ClearLogs(sessionID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM session_logs WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	return nil
}
