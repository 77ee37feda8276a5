package quota

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// WindowState is the persisted part of one quota window.
type WindowState struct {
	Window  string    `json:"window"`
	Ceiling int       `json:"ceiling"`
	Used    int       `json:"used"`
	ResetAt time.Time `json:"reset_at"`
}

// State is a point-in-time copy of every counter, keyed by source.
type State struct {
	UpdatedAt time.Time                `json:"updated_at"`
	Sources   map[string][]WindowState `json:"sources"`
}

// Snapshot copies committed usage. In-flight reservations are not included.
func (c *Counter) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	st := State{UpdatedAt: now, Sources: make(map[string][]WindowState, len(c.windows))}
	for src, ws := range c.windows {
		for _, w := range ws {
			w.roll(now)
			st.Sources[src] = append(st.Sources[src], WindowState{
				Window:  w.limit.Window,
				Ceiling: w.limit.Ceiling,
				Used:    w.used,
				ResetAt: w.resetAt,
			})
		}
	}
	return st
}

// Restore applies saved usage to registered windows with the same expression.
// Windows whose reset time has already passed are skipped.
func (c *Counter) Restore(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for src, saved := range st.Sources {
		for _, w := range c.windows[src] {
			for _, s := range saved {
				if s.Window != w.limit.Window || !now.Before(s.ResetAt) {
					continue
				}
				w.used = s.Used
				w.resetAt = s.ResetAt
			}
		}
	}
}

// LoadState reads a State from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// SaveState writes st to a JSON file, replacing it atomically.
func SaveState(filePath string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
