package speaker

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	done   []func()
	err    error
}

func (p *fakePlayer) Play(path string, done func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.played = append(p.played, filepath.Base(path))
	p.done = append(p.done, done)
	return nil
}

func (p *fakePlayer) finish() {
	p.mu.Lock()
	d := p.done[len(p.done)-1]
	p.mu.Unlock()
	d()
}

func cueDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "en"), 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "en", n+".mp3"), []byte("ID3"), 0o644))
	}
	return dir
}

func TestSpeak(t *testing.T) {
	dir := cueDir(t, "bumped", "high_temp")
	p := &fakePlayer{}
	m := NewWithPlayer(dir, "en", "INFO", p)

	m.Speak("bumped")
	assert.True(t, m.Busy())

	// overlapping cue is dropped
	m.Speak("high_temp")
	assert.Equal(t, []string{"bumped.mp3"}, p.played)

	p.finish()
	assert.False(t, m.Busy())
	m.Speak("high_temp")
	assert.Equal(t, []string{"bumped.mp3", "high_temp.mp3"}, p.played)
}

func TestSpeak_MissingOrFailing(t *testing.T) {
	dir := cueDir(t, "bumped")
	p := &fakePlayer{}
	m := NewWithPlayer(dir, "en", "INFO", p)

	m.Speak("no_such_cue")
	assert.Empty(t, p.played)
	assert.False(t, m.Busy())

	p.err = errors.New("no audio device")
	m.Speak("bumped")
	assert.False(t, m.Busy(), "failed playback releases the player")

	// no player at all
	NewWithPlayer(dir, "en", "INFO", nil).Speak("bumped")
}

func TestSpeakAt(t *testing.T) {
	dir := cueDir(t, "start_mowing")
	p := &fakePlayer{}
	m := NewWithPlayer(dir, "en", "WARN", p)

	m.SpeakAt(slog.LevelInfo, "start_mowing")
	assert.Empty(t, p.played)

	m.SpeakAt(slog.LevelError, "start_mowing")
	assert.Equal(t, []string{"start_mowing.mp3"}, p.played)
}

func TestPath(t *testing.T) {
	m := NewWithPlayer("asset/audio", "ja", "INFO", nil)
	assert.Equal(t, filepath.Join("asset", "audio", "ja", "close_to_cone.mp3"), m.Path("close_to_cone"))
}
