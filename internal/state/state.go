// Package state holds the daemon's shared dashboard state: the persisted
// credentials, the mirror of the coordinator's connection state, and the log
// ring surfaced in the UI.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vitalvest/internal/backend"
	"vitalvest/internal/sensor"
)

// SocketStatus is the upstream WebSocket link status.
type SocketStatus string

const (
	SocketDisconnected SocketStatus = "disconnected"
	SocketConnecting   SocketStatus = "connecting"
	SocketConnected    SocketStatus = "connected"
)

// LogEntry holds a single log entry shown in the dashboard.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Label     string    `json:"label"`
	Message   string    `json:"message"`
}

// SnapshotData holds a point-in-time copy of DashState for JSON serialization.
type SnapshotData struct {
	BackendURL      string                  `json:"backendUrl"`
	IsAuthenticated bool                    `json:"isAuthenticated"`
	User            *backend.User           `json:"user,omitempty"`
	SocketStatus    SocketStatus            `json:"socketStatus"`
	PollingActive   bool                    `json:"pollingActive"`
	PollIntervalMs  int                     `json:"pollIntervalMs"`
	DemoMode        bool                    `json:"demoMode"`
	Latest          *sensor.Reading         `json:"latest,omitempty"`
	Stats           map[string]sensor.Stats `json:"stats,omitempty"`
	LastUpdate      time.Time               `json:"lastUpdate"`
	Logs            []LogEntry              `json:"logs"`
}

// persisted is the subset written to the state file: the client credentials
// only. Connection state and logs are transient.
type persisted struct {
	Token           string        `json:"token,omitempty"`
	User            *backend.User `json:"user,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

// DashState is the shared mutable state. The coordinator is the single
// writer for the connection fields; the web layer reads snapshots.
type DashState struct {
	mu              sync.RWMutex
	backendURL      string
	authToken       string
	user            *backend.User
	isAuthenticated bool
	socketStatus    SocketStatus
	pollingActive   bool
	pollIntervalMs  int
	demoMode        bool
	latest          *sensor.Reading
	stats           map[string]sensor.Stats
	lastUpdate      time.Time
	logs            []LogEntry
	maxLogs         int
	stateFile       string
	changeCh        chan struct{}
}

// New creates a DashState, loading persisted credentials if a state file
// exists.
func New(maxLogs int, backendURL, stateFile string, demoMode bool) *DashState {
	s := &DashState{
		backendURL:   backendURL,
		socketStatus: SocketDisconnected,
		demoMode:     demoMode,
		maxLogs:      maxLogs,
		stateFile:    stateFile,
		logs:         []LogEntry{},
		changeCh:     make(chan struct{}, 1),
	}
	if stateFile != "" {
		_ = s.loadFromFile(stateFile) // Missing or corrupt file means defaults
	}
	return s
}

// notifyChange does a non-blocking send on changeCh to signal a mutation.
func (s *DashState) notifyChange() {
	select {
	case s.changeCh <- struct{}{}:
	default:
	}
}

// ChangeCh returns a channel that receives a value whenever the state changes.
func (s *DashState) ChangeCh() <-chan struct{} {
	return s.changeCh
}

// SetAuth stores the token and user after a successful login and persists
// them.
func (s *DashState) SetAuth(token string, user *backend.User) {
	s.mu.Lock()
	s.authToken = token
	s.user = user
	s.isAuthenticated = true
	s.mu.Unlock()
	s.save()
	s.notifyChange()
}

// ClearAuth drops the stored credentials (logout).
func (s *DashState) ClearAuth() {
	s.mu.Lock()
	s.authToken = ""
	s.user = nil
	s.isAuthenticated = false
	s.mu.Unlock()
	s.save()
	s.notifyChange()
}

// AuthToken returns the stored backend token, empty if not authenticated.
func (s *DashState) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken
}

// User returns the stored user record, nil if not authenticated.
func (s *DashState) User() *backend.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether a backend login has been stored.
func (s *DashState) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAuthenticated
}

// SetSocketStatus mirrors the coordinator's socket status.
func (s *DashState) SetSocketStatus(st SocketStatus) {
	s.mu.Lock()
	s.socketStatus = st
	s.mu.Unlock()
	s.notifyChange()
}

// SetPolling mirrors the coordinator's polling state.
func (s *DashState) SetPolling(active bool, intervalMs int) {
	s.mu.Lock()
	s.pollingActive = active
	if intervalMs > 0 {
		s.pollIntervalMs = intervalMs
	}
	s.mu.Unlock()
	s.notifyChange()
}

// SetLatest stores the most recent canonical reading and its aggregates.
func (s *DashState) SetLatest(r sensor.Reading, stats map[string]sensor.Stats, at time.Time) {
	s.mu.Lock()
	s.latest = &r
	if stats != nil {
		s.stats = stats
	}
	s.lastUpdate = at
	s.mu.Unlock()
	s.notifyChange()
}

// AddLog appends a log entry, trimming old entries if needed.
func (s *DashState) AddLog(level, label, message string) {
	s.mu.Lock()
	s.logs = append(s.logs, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Label:     label,
		Message:   message,
	})
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[len(s.logs)-s.maxLogs:]
	}
	s.mu.Unlock()
	s.notifyChange()
}

// Snapshot returns a copy of the current state for JSON serialization. The
// raw token is never part of a snapshot.
func (s *DashState) Snapshot() SnapshotData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SnapshotData{
		BackendURL:      s.backendURL,
		IsAuthenticated: s.isAuthenticated,
		User:            s.user,
		SocketStatus:    s.socketStatus,
		PollingActive:   s.pollingActive,
		PollIntervalMs:  s.pollIntervalMs,
		DemoMode:        s.demoMode,
		Latest:          s.latest,
		Stats:           s.stats,
		LastUpdate:      s.lastUpdate,
		Logs:            append([]LogEntry(nil), s.logs...),
	}
}

// save persists credentials to disk (best-effort, ignores errors).
func (s *DashState) save() {
	if s.stateFile == "" {
		return
	}
	s.mu.RLock()
	p := persisted{
		Token:           s.authToken,
		User:            s.user,
		IsAuthenticated: s.isAuthenticated,
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.stateFile, data, 0o600)
}

// loadFromFile restores persisted credentials if the file exists.
func (s *DashState) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	s.mu.Lock()
	s.authToken = p.Token
	s.user = p.User
	s.isAuthenticated = p.IsAuthenticated
	s.mu.Unlock()
	return nil
}
