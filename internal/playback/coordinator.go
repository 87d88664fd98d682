// Package playback implements the playback pipeline coordinator: the state
// machine that owns the single active pipeline session, serializes
// asynchronous pipeline events against caller commands, and publishes
// immutable snapshots to observers.
package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ldelattre/coda/internal/pipeline"
	"github.com/ldelattre/coda/internal/planner"
	"github.com/ldelattre/coda/internal/queue"
	"github.com/ldelattre/coda/internal/volume"
)

// Config holds coordinator tunables.
type Config struct {
	// Gapless pre-rolls the planned next track before the current one
	// ends, so the swap at end of stream starts from a prepared session.
	Gapless bool
	// PrerollLead is how long before the projected end of stream the next
	// session is created. Only used when Gapless is on.
	PrerollLead time.Duration
	// TeardownTimeout bounds the graceful stop of a superseded session.
	// On expiry teardown is forced and the session is abandoned.
	TeardownTimeout time.Duration
	// Volume is the initial cubic volume level.
	Volume volume.Volume
}

// Restore seeds the coordinator with persisted queue state. The coordinator
// starts Stopped on the restored cursor; playback resumes only on command.
type Restore struct {
	Tracks  []queue.Track
	Cursor  int
	Repeat  queue.RepeatMode
	Shuffle bool
}

// session pairs a pipeline handle with the coordinator's view of it.
type session struct {
	handle    pipeline.Session
	track     queue.Track
	cursor    int
	duration  time.Duration
	position  time.Duration
	prerolled bool
	autostart bool
}

// Coordinator is the playback state machine. One goroutine owns all mutable
// state; caller commands and pipeline events are merged into a single
// totally ordered stream before being applied.
type Coordinator struct {
	cfg      Config
	resolver Resolver
	factory  pipeline.Factory

	cmds      chan command
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	latest atomic.Pointer[Snapshot]

	subsMu     sync.Mutex
	subs       []*Subscription
	subsClosed bool

	// Owned by the run goroutine (and the constructor, before it starts).
	queue       *queue.Queue
	state       State
	active      *session
	pending     *session
	vol         volume.Volume
	seq         uint64
	reason      string
	prerollSkip int // cursor for which gapless preroll already failed
}

type command struct {
	req   any
	reply chan error
}

type (
	playCmd       struct{}
	pauseCmd      struct{}
	toggleCmd     struct{}
	stopCmd       struct{}
	seekCmd       struct{ pos time.Duration }
	nextCmd       struct{}
	previousCmd   struct{}
	jumpCmd       struct{ index int }
	setQueueCmd   struct{ tracks []queue.Track }
	setRepeatCmd  struct{ mode queue.RepeatMode }
	setShuffleCmd struct{ on bool }
	setVolumeCmd  struct{ cubic float64 }
	dumpCmd       struct{ out chan QueueDump }
)

// QueueDump is the persistable queue state, returned by Dump.
type QueueDump struct {
	Tracks  []queue.Track
	Cursor  int
	Repeat  queue.RepeatMode
	Shuffle bool
	Volume  float64 // cubic level
}

// New creates a coordinator and starts its processing loop.
func New(cfg Config, resolver Resolver, factory pipeline.Factory, restore *Restore) *Coordinator {
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = 250 * time.Millisecond
	}
	if cfg.PrerollLead <= 0 {
		cfg.PrerollLead = 5 * time.Second
	}

	c := &Coordinator{
		cfg:         cfg,
		resolver:    resolver,
		factory:     factory,
		cmds:        make(chan command),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		queue:       queue.New(),
		state:       StateIdle,
		vol:         cfg.Volume,
		prerollSkip: -1,
	}

	if restore != nil && len(restore.Tracks) > 0 {
		c.queue.Replace(restore.Tracks)
		c.queue.SetRepeat(restore.Repeat)
		c.queue.SetShuffle(restore.Shuffle)
		if restore.Cursor >= 0 && c.queue.JumpTo(restore.Cursor) {
			c.state = StateStopped
		}
	}
	c.publish()

	go c.run()
	return c
}

// Command surface. Each call returns once the command has been validated
// and locally resolved; the final effect is observable via snapshots.

// Play starts or resumes playback at the queue cursor.
func (c *Coordinator) Play() error { return c.submit(playCmd{}) }

// Pause pauses playback. A no-op unless playing or loading.
func (c *Coordinator) Pause() error { return c.submit(pauseCmd{}) }

// TogglePause switches between playing and paused; from a stopped state it
// behaves like Play.
func (c *Coordinator) TogglePause() error { return c.submit(toggleCmd{}) }

// Stop tears down the active session. The queue and cursor are preserved.
func (c *Coordinator) Stop() error { return c.submit(stopCmd{}) }

// SeekTo requests an absolute position, clamped to the track bounds.
func (c *Coordinator) SeekTo(pos time.Duration) error { return c.submit(seekCmd{pos: pos}) }

// Next skips to the next track in play order.
func (c *Coordinator) Next() error { return c.submit(nextCmd{}) }

// Previous skips to the previous track in play order.
func (c *Coordinator) Previous() error { return c.submit(previousCmd{}) }

// JumpTo moves playback to the given queue index.
func (c *Coordinator) JumpTo(index int) error { return c.submit(jumpCmd{index: index}) }

// SetQueue replaces the queue. The live session survives only if the
// active track still exists in the new queue; otherwise this acts as Stop.
func (c *Coordinator) SetQueue(tracks []queue.Track) error {
	return c.submit(setQueueCmd{tracks: tracks})
}

// SetRepeat sets the repeat mode.
func (c *Coordinator) SetRepeat(mode queue.RepeatMode) error {
	return c.submit(setRepeatCmd{mode: mode})
}

// SetShuffle toggles shuffle.
func (c *Coordinator) SetShuffle(on bool) error { return c.submit(setShuffleCmd{on: on}) }

// SetVolume sets the cubic volume level, clamped to [0, 1].
func (c *Coordinator) SetVolume(cubic float64) error {
	return c.submit(setVolumeCmd{cubic: cubic})
}

// Dump returns the persistable queue state.
func (c *Coordinator) Dump() (QueueDump, error) {
	out := make(chan QueueDump, 1)
	if err := c.submit(dumpCmd{out: out}); err != nil {
		return QueueDump{}, err
	}
	return <-out, nil
}

// Snapshot returns the most recently published snapshot.
func (c *Coordinator) Snapshot() Snapshot {
	if p := c.latest.Load(); p != nil {
		return *p
	}
	return Snapshot{State: StateIdle, Cursor: -1}
}

// Subscribe registers a snapshot observer. The current snapshot is
// delivered immediately.
func (c *Coordinator) Subscribe() *Subscription {
	sub := newSubscription()
	c.subsMu.Lock()
	if c.subsClosed {
		sub.close()
	} else {
		c.subs = append(c.subs, sub)
	}
	c.subsMu.Unlock()
	if p := c.latest.Load(); p != nil {
		sub.send(*p)
	}
	return sub
}

// Close shuts down the coordinator and tears down any live session.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
	return nil
}

func (c *Coordinator) submit(req any) error {
	cmd := command{req: req, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.stopped:
		return ErrClosed
	}
}

// run is the single consumer of commands and pipeline events. Selecting
// over both sources merges them into one total order; events from sessions
// the coordinator no longer holds are simply never read.
func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		var activeEv, pendingEv <-chan pipeline.Event
		if c.active != nil {
			activeEv = c.active.handle.Events()
		}
		if c.pending != nil {
			pendingEv = c.pending.handle.Events()
		}

		select {
		case cmd := <-c.cmds:
			cmd.reply <- c.handleCommand(cmd.req)
		case ev := <-activeEv:
			c.dispatchActive(ev, activeEv)
		case ev := <-pendingEv:
			c.handlePendingEvent(ev)
		case <-c.done:
			c.shutdown()
			return
		}
	}
}

// dispatchActive applies an active-session event, coalescing runs of
// buffered position reports so only the latest one is applied.
func (c *Coordinator) dispatchActive(ev pipeline.Event, ch <-chan pipeline.Event) {
	for ev.Kind == pipeline.EventPosition {
		select {
		case next := <-ch:
			if next.Kind == pipeline.EventPosition {
				ev = next
				continue
			}
			c.handleActiveEvent(ev)
			ev = next
		default:
		}
		break
	}
	c.handleActiveEvent(ev)
}

func (c *Coordinator) shutdown() {
	c.discardPending()
	c.teardownActive()
	c.subsMu.Lock()
	c.subsClosed = true
	for _, sub := range c.subs {
		sub.close()
	}
	c.subs = nil
	c.subsMu.Unlock()
}

func (c *Coordinator) handleCommand(req any) error {
	switch req := req.(type) {
	case playCmd:
		return c.cmdPlay()
	case pauseCmd:
		return c.cmdPause()
	case toggleCmd:
		return c.cmdToggle()
	case stopCmd:
		return c.cmdStop()
	case seekCmd:
		return c.cmdSeek(req.pos)
	case nextCmd:
		return c.cmdSkip(planner.TriggerNext)
	case previousCmd:
		return c.cmdSkip(planner.TriggerPrevious)
	case jumpCmd:
		return c.cmdJump(req.index)
	case setQueueCmd:
		return c.cmdSetQueue(req.tracks)
	case setRepeatCmd:
		c.discardPending()
		c.queue.SetRepeat(req.mode)
		c.publish()
		return nil
	case setShuffleCmd:
		c.discardPending()
		c.queue.SetShuffle(req.on)
		c.publish()
		return nil
	case setVolumeCmd:
		return c.cmdSetVolume(req.cubic)
	case dumpCmd:
		req.out <- QueueDump{
			Tracks:  c.queue.Tracks(),
			Cursor:  c.queue.Cursor(),
			Repeat:  c.queue.Repeat(),
			Shuffle: c.queue.Shuffle(),
			Volume:  c.vol.Cubic(),
		}
		return nil
	default:
		return errors.Newf("unknown command %T", req)
	}
}

func (c *Coordinator) cmdPlay() error {
	switch c.state {
	case StatePlaying:
		return nil
	case StateLoading:
		// Last command wins: preroll completion will start playback.
		c.active.autostart = true
		return nil
	case StatePaused:
		c.active.handle.Play()
		c.setState(StatePlaying)
		c.publish()
		return nil
	default: // Idle, Stopped, Error
		if c.queue.IsEmpty() {
			return ErrQueueEmpty
		}
		if c.queue.Cursor() < 0 {
			return ErrNoActiveTrack
		}
		return c.startSession(c.queue.Cursor(), true)
	}
}

func (c *Coordinator) cmdPause() error {
	switch c.state {
	case StatePlaying:
		c.active.handle.Pause()
		c.setState(StatePaused)
		c.publish()
	case StateLoading:
		c.active.autostart = false
	default:
		// Pause while already paused or without a session is a no-op: no
		// new session, no snapshot.
	}
	return nil
}

func (c *Coordinator) cmdToggle() error {
	switch c.state {
	case StatePlaying:
		return c.cmdPause()
	case StatePaused:
		return c.cmdPlay()
	case StateLoading:
		c.active.autostart = !c.active.autostart
		return nil
	default:
		return c.cmdPlay()
	}
}

func (c *Coordinator) cmdStop() error {
	c.discardPending()
	c.teardownActive()
	if c.state != StateIdle {
		c.setState(StateStopped)
	}
	c.publish()
	return nil
}

func (c *Coordinator) cmdSeek(pos time.Duration) error {
	if c.active == nil || (c.state != StatePlaying && c.state != StatePaused) {
		return ErrInvalidSeekTarget
	}
	pos = max(pos, 0)
	if c.active.duration > 0 {
		pos = min(pos, c.active.duration)
	}
	// Optimistic: the position is corrected by the seek acknowledgment.
	c.active.position = pos
	c.active.handle.Seek(pos)
	c.publish()
	return nil
}

func (c *Coordinator) cmdSkip(trigger planner.Trigger) error {
	if c.queue.IsEmpty() {
		return ErrQueueEmpty
	}
	if c.queue.Cursor() < 0 {
		return ErrNoActiveTrack
	}
	idx := planner.Next(c.queue, trigger)
	if idx < 0 {
		// Play order exhausted; cursor stays where it is.
		c.discardPending()
		c.teardownActive()
		c.setState(StateStopped)
		c.publish()
		return nil
	}
	autostart := c.autostartForNavigation()
	c.queue.JumpTo(idx)
	return c.startSession(idx, autostart)
}

func (c *Coordinator) cmdJump(index int) error {
	if c.queue.IsEmpty() {
		return ErrQueueEmpty
	}
	if c.queue.Track(index) == nil {
		return ErrNoActiveTrack
	}
	autostart := c.autostartForNavigation()
	c.queue.JumpTo(index)
	return c.startSession(index, autostart)
}

// autostartForNavigation decides whether a navigated-to track should start
// playing. Navigating while paused stays paused; everything else plays.
func (c *Coordinator) autostartForNavigation() bool {
	if c.state == StateLoading {
		return c.active.autostart
	}
	return c.state != StatePaused
}

func (c *Coordinator) cmdSetQueue(tracks []queue.Track) error {
	c.discardPending()
	c.queue.Replace(tracks)

	if c.active != nil {
		if idx := c.queue.IndexOf(c.active.track.Ref); idx >= 0 {
			// The active track survived; playback continues in place.
			c.queue.JumpTo(idx)
			c.active.cursor = idx
		} else {
			c.teardownActive()
			c.setState(StateStopped)
		}
	}
	if c.active == nil && c.queue.IsEmpty() && c.state != StateError {
		c.setState(StateIdle)
	}
	c.publish()
	return nil
}

func (c *Coordinator) cmdSetVolume(cubic float64) error {
	c.vol = volume.FromCubic(cubic)
	if c.active != nil {
		c.active.handle.SetGain(c.vol.Linear())
	}
	if c.pending != nil {
		c.pending.handle.SetGain(c.vol.Linear())
	}
	c.publish()
	return nil
}

// startSession commits to playing the track at cursor: the previous session
// is torn down, the reference resolved, and a fresh pipeline session
// created. At most one session is ever alive per track.
func (c *Coordinator) startSession(cursor int, autostart bool) error {
	c.discardPending()
	c.teardownActive()
	c.prerollSkip = -1

	tr := c.queue.Track(cursor)
	if tr == nil {
		return ErrNoActiveTrack
	}
	resolved, err := c.resolver.Resolve(tr.Ref)
	if err != nil {
		// The command itself is accepted; the failure surfaces as an
		// Error-state snapshot, queue and cursor intact.
		c.enterError(errors.Wrapf(err, "resolve %q", tr.Ref))
		return nil
	}
	mergeMetadata(tr, resolved)

	handle := c.factory.New(resolved.URI)
	handle.SetGain(c.vol.Linear())
	c.active = &session{
		handle:    handle,
		track:     *tr,
		cursor:    cursor,
		duration:  resolved.DurationHint,
		autostart: autostart,
	}
	zlog.Debug().
		Str("session", string(handle.ID())).
		Str("ref", tr.Ref).
		Msg("pipeline session created")
	c.setState(StateLoading)
	c.publish()
	return nil
}

func (c *Coordinator) handleActiveEvent(ev pipeline.Event) {
	if c.active == nil || ev.Session != c.active.handle.ID() {
		zlog.Debug().Str("session", string(ev.Session)).Stringer("kind", ev.Kind).
			Msg("discarding event from superseded session")
		return
	}
	switch ev.Kind {
	case pipeline.EventPrerolled:
		if c.state != StateLoading {
			return
		}
		c.active.prerolled = true
		if ev.Duration > 0 {
			c.active.duration = ev.Duration
			c.active.track.Duration = ev.Duration
			if tr := c.queue.Track(c.active.cursor); tr != nil && tr.Ref == c.active.track.Ref {
				tr.Duration = ev.Duration
			}
		}
		if c.active.autostart {
			c.active.handle.Play()
			c.setState(StatePlaying)
		} else {
			c.setState(StatePaused)
		}
		c.publish()
	case pipeline.EventPosition:
		c.active.position = ev.Position
		c.maybePrerollNext()
		c.publish()
	case pipeline.EventBuffering:
		zlog.Debug().Int("percent", ev.Percent).Msg("buffering")
	case pipeline.EventEndOfStream:
		c.handleTrackFinished()
	case pipeline.EventError:
		c.enterError(ev.Err)
	}
}

func (c *Coordinator) handlePendingEvent(ev pipeline.Event) {
	if c.pending == nil || ev.Session != c.pending.handle.ID() {
		return
	}
	switch ev.Kind {
	case pipeline.EventPrerolled:
		c.pending.prerolled = true
		if ev.Duration > 0 {
			c.pending.duration = ev.Duration
			c.pending.track.Duration = ev.Duration
		}
	case pipeline.EventError:
		zlog.Warn().Err(ev.Err).Str("ref", c.pending.track.Ref).
			Msg("gapless preroll failed; next track will load at end of stream")
		c.prerollSkip = c.pending.cursor
		c.discardPending()
	default:
		// A pending session neither plays nor reports positions.
	}
}

// handleTrackFinished advances playback after an end of stream.
func (c *Coordinator) handleTrackFinished() {
	idx := planner.Next(c.queue, planner.TriggerEndOfStream)
	if idx < 0 {
		c.discardPending()
		c.teardownActive()
		c.setState(StateStopped)
		c.publish()
		return
	}
	c.queue.JumpTo(idx)

	if c.pending != nil && c.pending.cursor == idx {
		// Swap in the pre-rolled session.
		c.teardownActive()
		c.active = c.pending
		c.pending = nil
		c.active.autostart = true
		if c.active.prerolled {
			c.active.handle.Play()
			c.setState(StatePlaying)
		} else {
			c.setState(StateLoading)
		}
		c.publish()
		return
	}

	_ = c.startSession(idx, true)
}

// maybePrerollNext creates the planned next session ahead of end of stream
// when gapless transitions are enabled.
func (c *Coordinator) maybePrerollNext() {
	if !c.cfg.Gapless || c.pending != nil || c.state != StatePlaying {
		return
	}
	if c.active.duration <= 0 || c.active.duration-c.active.position > c.cfg.PrerollLead {
		return
	}
	idx := planner.Next(c.queue, planner.TriggerEndOfStream)
	if idx < 0 || idx == c.prerollSkip {
		return
	}
	tr := c.queue.Track(idx)
	resolved, err := c.resolver.Resolve(tr.Ref)
	if err != nil {
		zlog.Warn().Err(err).Str("ref", tr.Ref).Msg("cannot preroll next track")
		c.prerollSkip = idx
		return
	}
	mergeMetadata(tr, resolved)
	handle := c.factory.New(resolved.URI)
	handle.SetGain(c.vol.Linear())
	c.pending = &session{
		handle:   handle,
		track:    *tr,
		cursor:   idx,
		duration: resolved.DurationHint,
	}
	zlog.Debug().Str("session", string(handle.ID())).Str("ref", tr.Ref).
		Msg("pre-rolling next track")
}

func (c *Coordinator) enterError(err error) {
	c.discardPending()
	c.teardownActive()
	c.setState(StateError)
	c.reason = err.Error()
	zlog.Error().Err(err).Msg("playback error")
	c.publish()
}

// teardownActive destroys the active session, bounded by the configured
// timeout. On expiry the teardown is forced: the handle guarantees event
// silence either way, so the control path never stalls on a wedged
// pipeline.
func (c *Coordinator) teardownActive() {
	if c.active == nil {
		return
	}
	if !c.active.handle.Destroy(c.cfg.TeardownTimeout) {
		zlog.Warn().
			Str("session", string(c.active.handle.ID())).
			Dur("timeout", c.cfg.TeardownTimeout).
			Msg("session teardown timed out; forcing")
	}
	c.active = nil
}

func (c *Coordinator) discardPending() {
	if c.pending == nil {
		return
	}
	if !c.pending.handle.Destroy(c.cfg.TeardownTimeout) {
		zlog.Warn().
			Str("session", string(c.pending.handle.ID())).
			Msg("pending session teardown timed out; forcing")
	}
	c.pending = nil
}

func (c *Coordinator) setState(s State) {
	if c.state == s {
		return
	}
	zlog.Debug().Stringer("from", c.state).Stringer("to", s).Msg("state transition")
	c.state = s
}

// publish produces a fresh immutable snapshot and fans it out. The error
// reason rides exactly one snapshot.
func (c *Coordinator) publish() {
	c.seq++
	snap := Snapshot{
		Seq:      c.seq,
		State:    c.state,
		Cursor:   c.queue.Cursor(),
		QueueLen: c.queue.Len(),
		Repeat:   c.queue.Repeat(),
		Shuffle:  c.queue.Shuffle(),
		Volume:   c.vol,
		Reason:   c.reason,
	}
	c.reason = ""
	if c.active != nil {
		t := c.active.track
		snap.Track = &t
		snap.Position = c.active.position
		snap.Duration = c.active.duration
	} else if cur := c.queue.Current(); cur != nil {
		t := *cur
		snap.Track = &t
		snap.Duration = cur.Duration
	}
	c.latest.Store(&snap)

	c.subsMu.Lock()
	for _, sub := range c.subs {
		sub.send(snap)
	}
	c.subsMu.Unlock()
}

// mergeMetadata fills track metadata from the catalog's answer.
func mergeMetadata(tr *queue.Track, r *Resolved) {
	if r.Title != "" {
		tr.Title = r.Title
	}
	if r.Artist != "" {
		tr.Artist = r.Artist
	}
	if r.Album != "" {
		tr.Album = r.Album
	}
	if r.TrackNumber > 0 {
		tr.TrackNumber = r.TrackNumber
	}
	if r.DurationHint > 0 && tr.Duration == 0 {
		tr.Duration = r.DurationHint
	}
}
