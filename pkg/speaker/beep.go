package speaker

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

const targetSampleRate = beep.SampleRate(48000)

// BeepPlayer plays mp3 (or wav) files on the default audio device.
type BeepPlayer struct {
	// Volume is added to the base-2 exponent; 0 is unity gain.
	Volume float64

	once    sync.Once
	initErr error
}

// Play implements Player.
func (p *BeepPlayer) Play(path string, done func()) error {
	streamer, format, err := decode(path)
	if err != nil {
		return err
	}

	p.once.Do(func() {
		p.initErr = speaker.Init(targetSampleRate, targetSampleRate.N(time.Second/10))
	})
	if p.initErr != nil {
		streamer.Close()
		return fmt.Errorf("speaker init: %w", p.initErr)
	}

	resampled := beep.Resample(3, format.SampleRate, targetSampleRate, streamer)
	vol := &effects.Volume{Streamer: resampled, Base: 2, Volume: p.Volume}

	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		// runs on the speaker goroutine; hand cleanup off
		go func() {
			streamer.Close()
			if done != nil {
				done()
			}
		}()
	})))
	return nil
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	streamer, format, err := mp3.Decode(f)
	if err == nil {
		return streamer, format, nil
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	streamer, format, err = wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode audio file %s: %w", path, err)
	}
	return streamer, format, nil
}
