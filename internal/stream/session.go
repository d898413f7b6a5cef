// Package stream implements the stream session multiplexer: a keyed
// registry that owns one ffmpeg subprocess per source URL, fans its stdout
// out to many subscribers, caches the format header for late joiners, and
// reclaims idle subprocesses (components C5-C7). Grounded on
// original_source/capturer-svr/src/stream/{stream_manager,stream_session,
// flv_stream}.rs for the shape of the registry/session/subscriber split,
// reworked around Go's RWMutex and channel idioms the way torrent-engine's
// internal/api/http/ws_hub.go manages its own registration map.
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rusthing/capturer/internal/broadcast"
	"github.com/rusthing/capturer/internal/ffmpegrun"
)

// headerCell is a write-once container for the first non-empty chunk a
// child process emits. Later writes are no-ops; reads never block writers.
type headerCell struct {
	value atomic.Pointer[[]byte]
}

func (h *headerCell) Set(b []byte) {
	h.value.CompareAndSwap(nil, &b)
}

func (h *headerCell) Get() ([]byte, bool) {
	p := h.value.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// lastAccessState tracks a session's last-access state: either currently
// ACTIVE, or idle since a recorded timestamp. Writes are strictly
// ACTIVE<->timestamp transitions, guarded by their own lock independent of
// the registry map lock.
type lastAccessState struct {
	mu     sync.RWMutex
	active bool
	at     time.Time
}

func newActiveLastAccess() *lastAccessState {
	return &lastAccessState{active: true}
}

// MarkActive transitions the state to ACTIVE unconditionally; called every
// time a handler successfully attaches a subscription to the session.
func (l *lastAccessState) MarkActive() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = true
}

// MarkIdleIfActive transitions ACTIVE -> now() only if currently ACTIVE.
// Called by the idle-detector watcher when it observes zero subscribers.
func (l *lastAccessState) MarkIdleIfActive(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		l.active = false
		l.at = now
	}
}

// IdleSince reports the idle timestamp and whether the state is currently
// idle (not ACTIVE).
func (l *lastAccessState) IdleSince() (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.at, !l.active
}

// snapshot reports whether the session is currently ACTIVE and, if not,
// the timestamp it went idle at.
func (l *lastAccessState) snapshot() (active bool, idleSince time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active, l.at
}

// Session binds one subprocess to one broadcast bus. A session exists in
// the registry iff its subprocess has not yet been reaped iff its bus is
// open.
type Session struct {
	url        string
	childID    int
	handle     *ffmpegrun.ChildHandle
	bus        *broadcast.Bus
	header     *headerCell
	lastAccess *lastAccessState

	// firstChunkReport is the one-shot channel a subscription returned
	// through the creation path (the creating call, plus any call that
	// shared its singleflight result or found the session on its re-check)
	// uses to report its first live chunk to the header-cache watcher.
	// Subscriptions from a plain lookup hit get none. nil for sessions
	// that skip watcher setup (none currently do, but kept nilable for
	// clarity).
	firstChunkReport chan []byte

	cancelWatchers func()
}

// close cancels the session's watchers and kills its subprocess by id,
// best-effort. Safe to call more than once.
func (s *Session) close() {
	if s.cancelWatchers != nil {
		s.cancelWatchers()
	}
	s.handle.Kill()
}
