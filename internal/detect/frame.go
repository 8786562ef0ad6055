package detect

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrAccessDenied means the viewer page could not read the iframe
	// document (cross-origin). This is the expected steady state for
	// third-party-hosted exercises, not an error condition.
	ErrAccessDenied = errors.New("frame access denied")
	// ErrNoDocument means the viewer has not reported anything yet.
	ErrNoDocument = errors.New("no frame document reported")
)

// Element is one text-bearing element from a frame snapshot.
type Element struct {
	Classes string `json:"classes"`
	Text    string `json:"text"`
}

// Snapshot is the viewer page's latest read of the iframe document.
type Snapshot struct {
	URL        string    `json:"url"`
	Elements   []Element `json:"elements"`
	ReportedAt time.Time `json:"reported_at"`
}

// Accessor is a capability-checked view of the embedded exercise frame.
// Callers get a snapshot or a typed error, never an exception path.
// The frame is owned by the third-party content: read access only.
type Accessor interface {
	Document() (*Snapshot, error)
	Location() (string, error)
}

type frameReport struct {
	denied bool
	snap   *Snapshot
}

// Store holds the latest reported frame snapshot per session. The
// viewer page posts a fresh report on its own cadence; strategies poll
// whatever is current.
type Store struct {
	mu      sync.RWMutex
	reports map[string]*frameReport
}

func NewStore() *Store {
	return &Store{reports: make(map[string]*frameReport)}
}

// Report records an accessible snapshot for a session.
func (s *Store) Report(sessionID string, snap *Snapshot) {
	snap.ReportedAt = time.Now()
	s.mu.Lock()
	s.reports[sessionID] = &frameReport{snap: snap}
	s.mu.Unlock()
}

// ReportDenied records that the viewer hit a cross-origin wall.
func (s *Store) ReportDenied(sessionID string) {
	s.mu.Lock()
	s.reports[sessionID] = &frameReport{denied: true}
	s.mu.Unlock()
}

// Forget drops the session's report on unmount.
func (s *Store) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.reports, sessionID)
	s.mu.Unlock()
}

// Accessor returns the capability-checked view for one session.
func (s *Store) Accessor(sessionID string) Accessor {
	return &storeAccessor{store: s, sessionID: sessionID}
}

type storeAccessor struct {
	store     *Store
	sessionID string
}

func (a *storeAccessor) get() (*frameReport, error) {
	a.store.mu.RLock()
	r, ok := a.store.reports[a.sessionID]
	a.store.mu.RUnlock()
	if !ok {
		return nil, ErrNoDocument
	}
	if r.denied {
		return nil, ErrAccessDenied
	}
	return r, nil
}

func (a *storeAccessor) Document() (*Snapshot, error) {
	r, err := a.get()
	if err != nil {
		return nil, err
	}
	return r.snap, nil
}

func (a *storeAccessor) Location() (string, error) {
	r, err := a.get()
	if err != nil {
		return "", err
	}
	if r.snap.URL == "" {
		return "", ErrNoDocument
	}
	return r.snap.URL, nil
}
