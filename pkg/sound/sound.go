// Package sound plays short wav cues through the speaker hat.
package sound

import (
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"
)

// Player queues sounds to a background goroutine.  Play never blocks the
// caller for more than a few milliseconds; a new sound cuts off the one
// still playing.
type Player struct {
	log          zerolog.Logger
	soundsToPlay chan string
	done         chan struct{}
}

func New(log zerolog.Logger) *Player {
	p := &Player{
		log:          log.With().Str("component", "sound").Logger(),
		soundsToPlay: make(chan string),
		done:         make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Player) loop() {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Sound player crashed")
		}
		for s := range p.soundsToPlay {
			p.log.Debug().Str("path", s).Msg("Unable to play")
		}
	}()

	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		p.log.Warn().Err(err).Msg("Failed to open speaker")
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for soundToPlay := range p.soundsToPlay {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(soundToPlay)
		if err != nil {
			p.log.Warn().Err(err).Msg("Failed to open sound")
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			p.log.Warn().Err(err).Msg("Failed to decode sound")
			f.Close()
			s = nil
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
}

// Play queues path.  Empty paths are ignored.
func (p *Player) Play(path string) {
	if path == "" {
		return
	}
	select {
	case p.soundsToPlay <- path:
	case <-p.done:
	case <-time.After(10 * time.Millisecond):
		p.log.Debug().Str("path", path).Msg("Timed out trying to play sound")
	}
}

func (p *Player) Close() {
	close(p.soundsToPlay)
	<-p.done
}
