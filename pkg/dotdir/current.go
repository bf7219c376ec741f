package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	currentFile = "session.json"
)

// CurrentSession is the session the CLI talks to when no session id is
// given on the command line.
type CurrentSession struct {
	SessionID  string    `json:"session_id"`
	SelectedAt time.Time `json:"selected_at"`
}

// LoadCurrentSession loads .recall/session.json.
// Returns nil, nil if no session has been selected.
func (m *Manager) LoadCurrentSession(overrideDir string) (*CurrentSession, error) {
	path, err := m.Path(overrideDir, currentFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading current session: %w", err)
	}

	cur := &CurrentSession{}
	if err := json.Unmarshal(data, cur); err != nil {
		return nil, fmt.Errorf("parsing current session: %w", err)
	}
	if cur.SessionID == "" {
		return nil, nil
	}

	return cur, nil
}

// SaveCurrentSession persists the selected session to .recall/session.json.
func (m *Manager) SaveCurrentSession(sessionID string, overrideDir string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("cannot select an empty session id")
	}

	path, err := m.Path(overrideDir, currentFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(&CurrentSession{
		SessionID:  sessionID,
		SelectedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling current session: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing current session: %w", err)
	}

	return nil
}

// ClearCurrentSession removes the session pointer. Returns nil if none was
// selected.
func (m *Manager) ClearCurrentSession(overrideDir string) error {
	path, err := m.Path(overrideDir, currentFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing current session: %w", err)
	}

	return nil
}
