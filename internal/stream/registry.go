package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rusthing/capturer/internal/broadcast"
	"github.com/rusthing/capturer/internal/domain"
	"github.com/rusthing/capturer/internal/ffmpegargs"
	"github.com/rusthing/capturer/internal/ffmpegrun"
	"github.com/rusthing/capturer/internal/metrics"
)

// Prober resolves a source URL's codec metadata. Implemented by
// internal/ffprobe.Prober in production; tests supply a fake.
type Prober interface {
	Probe(ctx context.Context, url string) (domain.StreamMetadata, error)
}

// SpawnFunc starts a streaming child process. Its signature matches
// ffmpegrun.SpawnStreaming; tests substitute a fake that emits chunks
// directly onto dataOut without shelling out to a real binary.
type SpawnFunc func(ctx context.Context, program string, args []string, dataOut *broadcast.Bus, exitSignal chan<- struct{}, readBufferSize int) (*ffmpegrun.ChildHandle, error)

// Config parameterizes a Registry. Zero values are replaced with sensible
// defaults.
type Config struct {
	// BusCapacity is the ring buffer depth for each session's broadcast bus.
	BusCapacity int
	// ReadBufferSize is the ffmpeg stdout read chunk size.
	ReadBufferSize int
	// IdleDetectInterval is how often the idle-detector watcher polls a
	// session's receiver count (default 5s).
	IdleDetectInterval time.Duration
	// SweepInterval is how often the idle sweeper scans all sessions
	// (default 60s).
	SweepInterval time.Duration
	// IdleTimeout is how long a session may sit idle before the sweeper
	// reclaims it (default 30m).
	IdleTimeout time.Duration
	// FFmpegPath is the ffmpeg binary invoked for streaming sessions.
	FFmpegPath string
}

func (c Config) withDefaults() Config {
	if c.BusCapacity <= 0 {
		c.BusCapacity = broadcast.DefaultCapacity
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = ffmpegrun.DefaultReadBufferSize
	}
	if c.IdleDetectInterval <= 0 {
		c.IdleDetectInterval = 5 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 60 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	return c
}

// Registry is the process-wide URL->Session map (component C6).
type Registry struct {
	cfg      Config
	probe    Prober
	spawn    SpawnFunc
	cancel   context.CancelFunc
	creating singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry constructs a Registry and starts its idle sweeper. Call
// Close to stop the sweeper and tear down every live session.
func NewRegistry(cfg Config, probe Prober, spawn SpawnFunc) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		cfg:      cfg.withDefaults(),
		probe:    probe,
		spawn:    spawn,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	go r.sweepLoop(ctx)
	return r
}

// Len returns the number of live sessions. Exposed for tests and for the
// ActiveSessions gauge.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot describes one live session for the admin monitor feed:
// {url, childPid, subscribers, lastAccess}.
type Snapshot struct {
	URL         string `json:"url"`
	ChildPid    int    `json:"childPid"`
	Subscribers int    `json:"subscribers"`
	LastAccess  string `json:"lastAccess"`
}

// Snapshot returns a point-in-time view of every live session, sorted by
// URL, for the admin websocket feed.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.sessions))
	for url, s := range r.sessions {
		active, idleSince := s.lastAccess.snapshot()
		lastAccess := "ACTIVE"
		if !active {
			lastAccess = idleSince.UTC().Format(time.RFC3339)
		}
		out = append(out, Snapshot{
			URL:         url,
			ChildPid:    s.childID,
			Subscribers: s.bus.ReceiverCount(),
			LastAccess:  lastAccess,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Close stops the sweeper and tears down every remaining session,
// best-effort. Intended for process shutdown and test cleanup.
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// GetSubscription returns a subscription to url's session, creating the
// session (probe -> argv -> spawn -> register -> watchers) if none exists
// yet.
//
// Concurrent misses for the same URL are collapsed with a singleflight
// group instead of letting every caller probe and spawn independently and
// discarding the losers: only one caller actually creates the session,
// the rest block on its result and then subscribe to it. This guarantees
// at most one live session per URL without ever spawning a child that gets
// thrown away.
func (r *Registry) GetSubscription(ctx context.Context, url string) (*Subscription, error) {
	r.mu.RLock()
	existing, hit := r.sessions[url]
	if hit {
		existing.lastAccess.MarkActive()
	}
	r.mu.RUnlock()
	if hit {
		return r.subscribeTo(existing, nil), nil
	}

	v, err, _ := r.creating.Do(url, func() (interface{}, error) {
		return r.createSession(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	sess := v.(*Session)
	sess.lastAccess.MarkActive()
	return r.subscribeTo(sess, sess.firstChunkReport), nil
}

// createSession runs the probe -> argv -> spawn -> register -> watchers
// pipeline once for url. Only ever invoked through r.creating, so at most
// one goroutine is inside this function for a given url at a time.
func (r *Registry) createSession(ctx context.Context, url string) (*Session, error) {
	// A concurrent call may have inserted the session between this call's
	// initial miss and singleflight actually scheduling us.
	r.mu.RLock()
	if s, ok := r.sessions[url]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	meta, err := r.probe.Probe(ctx, url)
	if err != nil {
		return nil, err
	}
	argv, err := ffmpegargs.Build(url, meta)
	if err != nil {
		return nil, err
	}

	bus := broadcast.New(r.cfg.BusCapacity)
	childExit := make(chan struct{}, 1)

	// The child belongs to the session, not to the request that created it,
	// so the creating client's disconnect must not cancel it.
	handle, err := r.spawn(context.WithoutCancel(ctx), r.cfg.FFmpegPath, argv, bus, childExit, r.cfg.ReadBufferSize)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		url:              url,
		childID:          handle.Pid,
		handle:           handle,
		bus:              bus,
		header:           &headerCell{},
		lastAccess:       newActiveLastAccess(),
		firstChunkReport: make(chan []byte, 1),
	}

	r.mu.Lock()
	r.sessions[url] = sess
	r.mu.Unlock()
	metrics.SessionsCreatedTotal.Inc()
	metrics.ActiveSessions.Set(float64(r.Len()))

	watchCtx, cancel := context.WithCancel(context.Background())
	sess.cancelWatchers = cancel
	go r.idleDetectorWatcher(watchCtx, sess)
	go r.headerCacheWatcher(watchCtx, sess, sess.firstChunkReport)
	go r.childExitWatcher(sess, childExit)

	return sess, nil
}

func (r *Registry) subscribeTo(sess *Session, firstChunkReport chan []byte) *Subscription {
	var reporter chan<- []byte
	if firstChunkReport != nil {
		reporter = firstChunkReport
	}
	metrics.SubscribersActive.Inc()
	return &Subscription{
		url:            sess.url,
		sub:            sess.bus.Subscribe(),
		header:         sess.header,
		firstReporter:  reporter,
		initialPending: true,
	}
}

func (r *Registry) idleDetectorWatcher(ctx context.Context, sess *Session) {
	ticker := time.NewTicker(r.cfg.IdleDetectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if sess.bus.ReceiverCount() == 0 {
				sess.lastAccess.MarkIdleIfActive(time.Now())
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) headerCacheWatcher(ctx context.Context, sess *Session, firstChunkReport <-chan []byte) {
	select {
	case b, ok := <-firstChunkReport:
		if ok {
			sess.header.Set(b)
		}
	case <-ctx.Done():
	}
}

func (r *Registry) childExitWatcher(sess *Session, childExit <-chan struct{}) {
	<-childExit
	metrics.ChildExitTotal.WithLabelValues("child_exit").Inc()
	r.removeByChildID(sess.childID, "child_exit")
}

func (r *Registry) removeByChildID(childID int, reason string) {
	r.mu.RLock()
	var key string
	var found bool
	for url, s := range r.sessions {
		if s.childID == childID {
			key, found = url, true
			break
		}
	}
	r.mu.RUnlock()
	if !found {
		return
	}

	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok && s.childID == childID {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if ok {
		s.close()
		metrics.SessionsReapedTotal.WithLabelValues(reason).Inc()
		metrics.ActiveSessions.Set(float64(r.Len()))
	}
}

func (r *Registry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepOnce()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) sweepOnce() {
	now := time.Now()

	r.mu.RLock()
	var expired []string
	for url, s := range r.sessions {
		if at, idle := s.lastAccess.IdleSince(); idle && now.Sub(at) > r.cfg.IdleTimeout {
			expired = append(expired, url)
		}
	}
	r.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	var toClose []*Session
	r.mu.Lock()
	for _, url := range expired {
		if s, ok := r.sessions[url]; ok {
			// A subscriber may have marked the session ACTIVE since the
			// read-locked scan; re-check before evicting.
			if at, idle := s.lastAccess.IdleSince(); !idle || now.Sub(at) <= r.cfg.IdleTimeout {
				continue
			}
			delete(r.sessions, url)
			toClose = append(toClose, s)
		}
	}
	r.mu.Unlock()

	for _, s := range toClose {
		s.close()
		metrics.SessionsReapedTotal.WithLabelValues("idle_timeout").Inc()
	}
	metrics.ActiveSessions.Set(float64(r.Len()))
}
