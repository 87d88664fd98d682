package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// MockFactory is a test double that records every session it creates and
// lets tests script event delivery.
type MockFactory struct {
	mu           sync.Mutex
	sessions     []*MockSession
	destroyDelay time.Duration
}

// NewMockFactory creates a mock pipeline factory.
func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// SetDestroyDelay makes subsequently created sessions take d to tear down,
// to exercise the coordinator's teardown timeout.
func (f *MockFactory) SetDestroyDelay(d time.Duration) {
	f.mu.Lock()
	f.destroyDelay = d
	f.mu.Unlock()
}

// New allocates a scriptable session. It never emits events on its own.
func (f *MockFactory) New(uri string) Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &MockSession{
		id:           SessionID(fmt.Sprintf("mock-%d", len(f.sessions)+1)),
		uri:          uri,
		destroyDelay: f.destroyDelay,
		events:       make(chan Event, eventBuffer),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	f.sessions = append(f.sessions, s)
	return s
}

// Count returns the number of sessions created so far.
func (f *MockFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// Session returns the i-th created session (0-based), or nil.
func (f *MockFactory) Session(i int) *MockSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.sessions) {
		return nil
	}
	return f.sessions[i]
}

// Last returns the most recently created session, or nil.
func (f *MockFactory) Last() *MockSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

// MockSession is a scriptable Session.
type MockSession struct {
	id           SessionID
	uri          string
	destroyDelay time.Duration
	events       chan Event
	quit         chan struct{}
	done         chan struct{}
	quitOnce     sync.Once

	mu         sync.Mutex
	playCalls  int
	pauseCalls int
	seekCalls  []time.Duration
	gain       float64
	position   time.Duration
	destroyed  bool
}

var _ Session = (*MockSession)(nil)

func (m *MockSession) ID() SessionID { return m.id }

func (m *MockSession) Events() <-chan Event { return m.events }

func (m *MockSession) Play() {
	m.mu.Lock()
	m.playCalls++
	m.mu.Unlock()
}

func (m *MockSession) Pause() {
	m.mu.Lock()
	m.pauseCalls++
	m.mu.Unlock()
}

func (m *MockSession) Seek(pos time.Duration) {
	m.mu.Lock()
	m.seekCalls = append(m.seekCalls, pos)
	m.position = pos
	m.mu.Unlock()
}

func (m *MockSession) SetGain(linear float64) {
	m.mu.Lock()
	m.gain = linear
	m.mu.Unlock()
}

func (m *MockSession) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *MockSession) Destroy(timeout time.Duration) bool {
	m.quitOnce.Do(func() {
		m.mu.Lock()
		m.destroyed = true
		delay := m.destroyDelay
		m.mu.Unlock()
		close(m.quit)
		go func() {
			if delay > 0 {
				time.Sleep(delay)
			}
			close(m.done)
		}()
	})
	select {
	case <-m.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Scripted event delivery. Sends are aborted if the session is destroyed.

func (m *MockSession) EmitPrerolled(d time.Duration) {
	m.emit(Event{Kind: EventPrerolled, Duration: d})
}

func (m *MockSession) EmitPosition(pos time.Duration) {
	m.mu.Lock()
	m.position = pos
	m.mu.Unlock()
	m.emit(Event{Kind: EventPosition, Position: pos})
}

func (m *MockSession) EmitBuffering(percent int) {
	m.emit(Event{Kind: EventBuffering, Percent: percent})
}

func (m *MockSession) EmitEndOfStream() {
	m.emit(Event{Kind: EventEndOfStream})
}

func (m *MockSession) EmitError(err error) {
	m.emit(Event{Kind: EventError, Err: err})
}

func (m *MockSession) emit(ev Event) {
	ev.Session = m.id
	select {
	case m.events <- ev:
	case <-m.quit:
	}
}

// Test accessors.

func (m *MockSession) URI() string { return m.uri }

func (m *MockSession) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

func (m *MockSession) PauseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseCalls
}

func (m *MockSession) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

func (m *MockSession) Gain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gain
}

func (m *MockSession) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}
