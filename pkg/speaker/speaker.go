// Package speaker plays the short voice cues the robot uses to announce what
// it is doing.
package speaker

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"roktrack/pkg/logging"
)

// Player starts playback of one file and calls done when it ends. It must
// not block for the length of the clip.
type Player interface {
	Play(path string, done func()) error
}

// Manager resolves cue names to <dir>/<lang>/<name>.mp3 and plays them one
// at a time. A cue arriving while another plays is dropped.
type Manager struct {
	dir    string
	lang   string
	level  slog.Level
	player Player

	mu   sync.Mutex
	busy bool
}

// New creates a manager backed by the system audio output.
func New(dir, lang, level string) *Manager {
	return NewWithPlayer(dir, lang, level, &BeepPlayer{})
}

// NewWithPlayer creates a manager with a custom player; nil disables audio.
func NewWithPlayer(dir, lang, level string, player Player) *Manager {
	return &Manager{
		dir:    dir,
		lang:   lang,
		level:  logging.ParseLevel(level),
		player: player,
	}
}

// Path returns the file a cue resolves to.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, m.lang, name+".mp3")
}

// Speak plays a cue; it never blocks and never fails.
func (m *Manager) Speak(name string) {
	slog.Debug("speak", "component", "speaker", "cue", name)
	if m.player == nil {
		return
	}

	path := m.Path(name)
	if _, err := os.Stat(path); err != nil {
		slog.Debug("speech cue missing", "component", "speaker", "path", path)
		return
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		slog.Debug("speech cue dropped, player busy", "component", "speaker", "cue", name)
		return
	}
	m.busy = true
	m.mu.Unlock()

	if err := m.player.Play(path, m.release); err != nil {
		slog.Warn("speech playback failed", "component", "speaker", "cue", name, "error", err)
		m.release()
	}
}

// SpeakAt plays a cue only if level reaches the configured speaker level.
func (m *Manager) SpeakAt(level slog.Level, name string) {
	if level < m.level {
		return
	}
	m.Speak(name)
}

func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
}

// Busy reports whether a cue is playing.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}
