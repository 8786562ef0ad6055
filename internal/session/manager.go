package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// ErrSessionNotFound means the viewer referenced an unknown or already
// closed session.
var ErrSessionNotFound = errors.New("session not found")

// ModelResolver resolves a model id to its definition and policy.
type ModelResolver interface {
	GetModel(ctx context.Context, id int) (*models.ExerciseModel, error)
}

// Config tunes the detection pipeline for every session the manager
// creates.
type Config struct {
	Strategies   []models.DetectionSource
	PollInterval time.Duration
	PollTimeout  time.Duration
	// MaxAge bounds how long an abandoned session may linger before the
	// janitor reclaims it.
	MaxAge time.Duration
}

// Manager owns the active attempt sessions: one per viewer instance.
type Manager struct {
	log      *zap.Logger
	backend  Backend
	resolver ModelResolver
	frames   *detect.Store
	engine   detect.Engine
	journal  Journal
	cfg      Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(log *zap.Logger, be Backend, resolver ModelResolver, frames *detect.Store, engine detect.Engine, journal Journal, cfg Config) *Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	return &Manager{
		log:      log,
		backend:  be,
		resolver: resolver,
		frames:   frames,
		engine:   engine,
		journal:  journal,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Start resolves the target model and opens a new monitoring session
// for it.
func (m *Manager) Start(ctx context.Context, email string, modelID int) (*Session, error) {
	model, err := m.resolver.GetModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	s := newSession(m.log, m.backend, m.journal, email, *model, Options{
		Strategies:   m.cfg.Strategies,
		PollInterval: m.cfg.PollInterval,
		PollTimeout:  m.cfg.PollTimeout,
		Engine:       m.engine,
	})
	if m.frames != nil {
		s.opts.Frames = m.frames.Accessor(s.ID)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	// Strategies live under the manager's lifetime, not the request's.
	s.start(context.Background())

	m.log.Info("Attempt session started",
		zap.String("session", s.ID),
		zap.String("email", email),
		zap.Int("model", modelID),
		zap.String("model_name", model.Name),
	)
	return s, nil
}

// Get returns an active session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close cancels a session's strategies and discards its state. The
// persisted record, if any, lives in the backend.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	if m.frames != nil {
		m.frames.Forget(id)
	}
	m.log.Info("Attempt session closed", zap.String("session", s.ID))
	return nil
}

// RunJanitor sweeps recorded and abandoned sessions on a fixed cadence
// until ctx is cancelled. Leaked sessions hold timers and goroutines,
// so the sweep is not optional in long-running deployments.
func (m *Manager) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.cfg.MaxAge)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		// Recorded sessions get a short grace period so the viewer can
		// still read the final state before the entry disappears.
		if s.settledBefore(time.Now().Add(-2*time.Minute)) || s.Started.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
		if m.frames != nil {
			m.frames.Forget(s.ID)
		}
		m.log.Debug("Janitor reclaimed session",
			zap.String("session", s.ID),
			zap.String("state", string(s.CurrentState())),
		)
	}
}

// Active reports how many sessions are currently held.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
