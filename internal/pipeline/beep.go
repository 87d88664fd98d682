package pipeline

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"
)

const defaultTick = 500 * time.Millisecond

// The speaker is initialized once at the first session's sample rate.
// Sessions with a different rate are resampled.
var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

func ensureSpeaker(rate beep.SampleRate) (beep.SampleRate, error) {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(rate, rate.N(100*time.Millisecond))
		speakerRate = rate
	})
	return speakerRate, speakerErr
}

// BeepFactory creates sessions backed by the beep decode/render pipeline.
type BeepFactory struct {
	tick time.Duration
}

// NewBeepFactory creates a factory. tick is the position report interval;
// zero selects the default.
func NewBeepFactory(tick time.Duration) *BeepFactory {
	if tick <= 0 {
		tick = defaultTick
	}
	return &BeepFactory{tick: tick}
}

// New allocates a session and starts its asynchronous preparation.
func (f *BeepFactory) New(uri string) Session {
	s := &beepSession{
		id:     SessionID(uuid.NewString()),
		uri:    uri,
		tick:   f.tick,
		events: make(chan Event, eventBuffer),
		ops:    make(chan func(), 16),
		fin:    make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// beepSession owns one decoded stream submitted to the shared speaker.
// All pipeline state is confined to the run goroutine; the exported methods
// only enqueue work or read the streamer position.
type beepSession struct {
	id     SessionID
	uri    string
	tick   time.Duration
	events chan Event
	ops    chan func()
	fin    chan struct{} // signaled by the speaker callback at end of stream
	quit   chan struct{}
	done   chan struct{}

	quitOnce sync.Once

	// Guards streamer/format for the synchronous Position query.
	posMu sync.Mutex

	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume

	gain     float64
	added    bool // submitted to the speaker
	playing  bool
	finished bool
}

func (s *beepSession) ID() SessionID { return s.id }

func (s *beepSession) Events() <-chan Event { return s.events }

func (s *beepSession) Play() { s.do(s.doPlay) }

func (s *beepSession) Pause() { s.do(s.doPause) }

func (s *beepSession) Seek(pos time.Duration) { s.do(func() { s.doSeek(pos) }) }

func (s *beepSession) SetGain(linear float64) { s.do(func() { s.doSetGain(linear) }) }

// Position reads the streamer position without the speaker lock; the value
// may be stale by up to one mix buffer.
func (s *beepSession) Position() time.Duration {
	s.posMu.Lock()
	defer s.posMu.Unlock()
	if s.streamer == nil {
		return 0
	}
	return s.format.SampleRate.D(s.streamer.Position())
}

func (s *beepSession) Destroy(timeout time.Duration) bool {
	s.quitOnce.Do(func() { close(s.quit) })
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *beepSession) do(op func()) {
	select {
	case s.ops <- op:
	case <-s.quit:
	}
}

// emit delivers an event tagged with this session's ID. Position and
// buffering reports are droppable; everything else blocks until the
// consumer reads it or the session is destroyed.
func (s *beepSession) emit(ev Event) {
	ev.Session = s.id
	switch ev.Kind {
	case EventPosition, EventBuffering:
		select {
		case s.events <- ev:
		default:
		}
	default:
		select {
		case s.events <- ev:
		case <-s.quit:
		}
	}
}

func (s *beepSession) run() {
	defer close(s.done)
	defer s.teardown()

	if err := s.preroll(); err != nil {
		s.emit(Event{Kind: EventError, Err: err})
		<-s.quit
		return
	}
	s.emit(Event{Kind: EventPrerolled, Duration: s.format.SampleRate.D(s.streamer.Len())})

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case op := <-s.ops:
			op()
		case <-ticker.C:
			if s.playing && !s.finished {
				s.emit(Event{Kind: EventPosition, Position: s.Position()})
			}
		case <-s.fin:
			s.playing = false
			s.finished = true
			s.emit(Event{Kind: EventEndOfStream})
		case <-s.quit:
			return
		}
	}
}

func (s *beepSession) preroll() error {
	path := strings.TrimPrefix(s.uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open source")
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		f.Close()
		return errors.Newf("unsupported format: %s", ext)
	}
	if err != nil {
		f.Close()
		return errors.Wrap(err, "decode source")
	}

	if _, err := ensureSpeaker(format.SampleRate); err != nil {
		streamer.Close()
		f.Close()
		return errors.Wrap(err, "init output device")
	}

	s.posMu.Lock()
	s.file = f
	s.streamer = streamer
	s.format = format
	s.posMu.Unlock()
	return nil
}

func (s *beepSession) doPlay() {
	if s.streamer == nil || s.finished {
		return
	}
	if s.added {
		speaker.Lock()
		s.ctrl.Paused = false
		speaker.Unlock()
		s.playing = true
		return
	}

	s.ctrl = &beep.Ctrl{Streamer: s.streamer}
	s.vol = &effects.Volume{
		Streamer: s.ctrl,
		Base:     2,
		Volume:   gainToVolume(s.gain),
		Silent:   s.gain <= 0,
	}
	var out beep.Streamer = s.vol
	if s.format.SampleRate != speakerRate {
		out = beep.Resample(4, s.format.SampleRate, speakerRate, s.vol)
	}
	speaker.Play(beep.Seq(out, beep.Callback(s.signalFinished)))
	s.added = true
	s.playing = true
}

func (s *beepSession) doPause() {
	if !s.added || s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
	s.playing = false
}

func (s *beepSession) doSeek(pos time.Duration) {
	if s.streamer == nil || s.finished {
		return
	}
	n := s.format.SampleRate.N(pos)
	n = max(n, 0)
	if n >= s.streamer.Len() {
		// Seeking at or past the end finishes the track.
		s.signalFinished()
		return
	}
	speaker.Lock()
	err := s.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Err(err).Str("session", string(s.id)).Msg("seek failed")
		return
	}
	s.emit(Event{Kind: EventPosition, Position: s.format.SampleRate.D(n)})
}

func (s *beepSession) doSetGain(linear float64) {
	s.gain = math.Min(math.Max(linear, 0), 1)
	if s.vol == nil {
		return
	}
	speaker.Lock()
	s.vol.Volume = gainToVolume(s.gain)
	s.vol.Silent = s.gain <= 0
	speaker.Unlock()
}

// signalFinished runs on the speaker goroutine when the stream drains.
func (s *beepSession) signalFinished() {
	select {
	case s.fin <- struct{}{}:
	default:
	}
}

func (s *beepSession) teardown() {
	// Clear the speaker only while this session still occupies it. After a
	// natural end of stream the mixer has already dropped the sequence, and
	// clearing would cut off a successor session.
	if s.added && !s.finished {
		speaker.Clear()
	}
	s.posMu.Lock()
	if s.streamer != nil {
		s.streamer.Close()
		s.streamer = nil
	}
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.posMu.Unlock()
}

// gainToVolume converts a linear 0..1 gain to beep's base-2 log volume.
// 1.0 maps to no change, 0.5 to -1 (half), 0.25 to -2, and 0 to silence.
func gainToVolume(gain float64) float64 {
	if gain <= 0 {
		return -10
	}
	if gain >= 1 {
		return 0
	}
	return math.Log2(gain)
}
