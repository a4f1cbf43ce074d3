// Package daemon tracks a background `codeguardian serve` process.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// State describes a running server process.
type State struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port,omitempty"`
	LogPath   string    `json:"log_path,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// URL returns the local address the server listens on.
func (s *State) URL() string {
	if s.Port == 0 {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", s.Port)
}

// Uptime returns how long the process has been running as of now.
func (s *State) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt).Truncate(time.Second)
}

// PIDFile manages the state file of a daemonized server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process listening on port.
func (p *PIDFile) Write(port int, logPath string) error {
	return p.WriteState(&State{
		PID:       os.Getpid(),
		Port:      port,
		LogPath:   logPath,
		StartedAt: time.Now().UTC(),
	})
}

// WriteState writes st to the file, creating its directory.
func (p *PIDFile) WriteState(st *State) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// Read reads the state from the file. A bare integer PID is accepted too.
func (p *PIDFile) Read() (*State, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if pid, err := strconv.Atoi(text); err == nil {
		return &State{PID: pid}, nil
	}

	var st State
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		return nil, fmt.Errorf("invalid PID file content: %w", err)
	}
	if st.PID <= 0 {
		return nil, fmt.Errorf("invalid PID file content: pid %d", st.PID)
	}
	return &st, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}
