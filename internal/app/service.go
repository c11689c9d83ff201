package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaminalder/tictactoe-timetravel/internal/domain"
	"github.com/jaminalder/tictactoe-timetravel/internal/logging"
	"github.com/jaminalder/tictactoe-timetravel/internal/metrics"
)

// Errors exposed by the service layer.
var ErrNotFound = errors.New("game not found")

// Intent names used in logs and metrics.
const (
	IntentMove = "move"
	IntentJump = "jump"
	IntentSort = "sort"
)

// GameState is the in-memory state tracked per game.
type GameState struct {
	ID      string
	Session domain.Session
	Created time.Time
	Updated time.Time
}

// Snapshot is a shortcut for gs.Session.Snapshot().
func (gs GameState) Snapshot() domain.Snapshot { return gs.Session.Snapshot() }

type subscriber struct {
	ch        chan []byte
	closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service owns every live session and applies intents to them one at a time.
type Service struct {
	mu      sync.Mutex
	games   map[string]*GameState
	subs    map[string]map[*subscriber]struct{}
	render  func(GameState) []byte
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer sets the function producing broadcast payloads.
func WithRenderer(renderer func(GameState) []byte) Option {
	return func(s *Service) {
		if renderer != nil {
			s.render = renderer
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.With("component", "game-service")
		}
	}
}

// WithMetrics enables Prometheus accounting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an empty service.
func NewService(opts ...Option) *Service {
	s := &Service{
		games:  make(map[string]*GameState),
		subs:   make(map[string]map[*subscriber]struct{}),
		render: func(GameState) []byte { return nil },
		log:    logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(GameState) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(GameState) []byte { return nil }
		return
	}
	s.render = renderer
}

// Create starts a new session with an empty board.
func (s *Service) Create() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	gs := &GameState{ID: uuid.NewString(), Session: domain.NewSession(), Created: now, Updated: now}
	s.games[gs.ID] = gs
	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
		s.metrics.SessionsActive.Set(float64(len(s.games)))
	}
	s.log.Info("session created", "game", gs.ID)
	return *gs
}

// Get returns a copy of the game state if present.
func (s *Service) Get(id string) (GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return GameState{}, false
	}
	return *gs, true
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// ApplyMove plays the next marker at index. Illegal moves are ignored and
// return the unchanged state.
func (s *Service) ApplyMove(id string, index int) (GameState, error) {
	return s.update(id, IntentMove, func(cur domain.Session) (domain.Session, bool, error) {
		next, err := cur.ApplyMove(index)
		if err != nil {
			return cur, false, err
		}
		applied := next.Step() != cur.Step()
		if !applied {
			s.log.Debug("move ignored", "game", id, "index", index)
		}
		if st := next.Status(); applied && st.State != domain.InProgress && s.metrics != nil {
			s.metrics.Finished.WithLabelValues(st.State.String()).Inc()
		}
		return next, applied, nil
	})
}

// JumpTo selects history entry step.
func (s *Service) JumpTo(id string, step int) (GameState, error) {
	return s.update(id, IntentJump, func(cur domain.Session) (domain.Session, bool, error) {
		next, err := cur.JumpTo(step)
		return next, err == nil, err
	})
}

// ToggleSortOrder flips the move list order.
func (s *Service) ToggleSortOrder(id string) (GameState, error) {
	return s.update(id, IntentSort, func(cur domain.Session) (domain.Session, bool, error) {
		return cur.ToggleSortOrder(), true, nil
	})
}

// update runs fn under the lock, stores its result and fans the rendered
// state out to subscribers when something changed. Sends never block, so the
// fan-out happens under the lock too and cannot race with a close.
func (s *Service) update(id, intent string, fn func(domain.Session) (domain.Session, bool, error)) (GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return GameState{}, ErrNotFound
	}
	next, changed, err := fn(gs.Session)
	if err != nil {
		cp := *gs
		s.mu.Unlock()
		s.count(intent, "rejected")
		s.log.Warn("intent rejected", "game", id, "intent", intent, "error", err)
		return cp, err
	}
	if !changed {
		cp := *gs
		s.mu.Unlock()
		s.count(intent, "ignored")
		return cp, nil
	}
	gs.Session = next
	gs.Updated = s.now()
	cp := *gs
	dropped := s.broadcastLocked(id, s.render(cp))
	s.mu.Unlock()

	s.count(intent, "applied")
	s.log.Debug("intent applied", "game", id, "intent", intent, "step", next.Step(), "status", next.Status().String())
	if dropped > 0 {
		s.log.Info("dropped slow subscribers", "game", id, "count", dropped)
		s.gaugeSubscribers()
	}
	return cp, nil
}

// broadcastLocked offers payload to every subscriber of id. Subscribers whose
// buffer is still full are closed and removed.
func (s *Service) broadcastLocked(id string, payload []byte) int {
	dropped := 0
	for sub := range s.subs[id] {
		select {
		case sub.ch <- payload:
		default:
			sub.close()
			delete(s.subs[id], sub)
			dropped++
		}
	}
	return dropped
}

func (s *Service) count(intent, outcome string) {
	if s.metrics != nil {
		s.metrics.Intents.WithLabelValues(intent, outcome).Inc()
	}
}

// Subscribe registers a subscriber for a game. The channel is closed when ctx
// ends, when unsubscribe is called, or when the subscriber falls behind.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	if _, ok := s.games[id]; !ok {
		s.mu.Unlock()
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1)}
	set[sub] = struct{}{}
	s.mu.Unlock()
	s.gaugeSubscribers()

	done := make(chan struct{})
	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			close(done)
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(s.subs, id)
				}
			}
			sub.close()
			s.mu.Unlock()
			s.gaugeSubscribers()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsub()
		case <-done:
		}
	}()
	return sub.ch, unsub, nil
}

// PruneIdle drops sessions not updated within ttl and closes their
// subscribers. It returns the number of sessions removed.
func (s *Service) PruneIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	removed := 0
	for id, gs := range s.games {
		if gs.Updated.After(cutoff) {
			continue
		}
		delete(s.games, id)
		for sub := range s.subs[id] {
			sub.close()
		}
		delete(s.subs, id)
		removed++
	}
	active := len(s.games)
	s.mu.Unlock()

	if removed > 0 {
		s.log.Info("pruned idle sessions", "count", removed, "active", active)
	}
	if s.metrics != nil {
		s.metrics.SessionsPruned.Add(float64(removed))
		s.metrics.SessionsActive.Set(float64(active))
	}
	s.gaugeSubscribers()
	return removed
}

// RunPruner calls PruneIdle every interval until ctx is done.
func (s *Service) RunPruner(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PruneIdle(ttl)
		}
	}
}

func (s *Service) gaugeSubscribers() {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	n := 0
	for _, set := range s.subs {
		n += len(set)
	}
	s.mu.Unlock()
	s.metrics.Subscribers.Set(float64(n))
}
