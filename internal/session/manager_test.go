package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

type fakeResolver struct {
	models map[int]models.ExerciseModel
}

func (r *fakeResolver) GetModel(ctx context.Context, id int) (*models.ExerciseModel, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("model %d not found", id)
	}
	return &m, nil
}

func newTestManager(cfg Config) (*Manager, *fakeBackend) {
	be := &fakeBackend{}
	resolver := &fakeResolver{models: map[int]models.ExerciseModel{
		7: testModel,
	}}
	m := NewManager(zap.NewNop(), be, resolver, detect.NewStore(), nil, nil, cfg)
	return m, be
}

func TestManager_StartAndGet(t *testing.T) {
	m, _ := newTestManager(Config{})

	s, err := m.Start(context.Background(), "user@example.com", 7)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close(s.ID)

	if s.CurrentState() != StateMonitoring {
		t.Errorf("state = %s; want monitoring after start", s.CurrentState())
	}
	if s.Model.Name != "Cold Call" {
		t.Errorf("model = %q; want resolved Cold Call", s.Model.Name)
	}

	got, err := m.Get(s.ID)
	if err != nil || got.ID != s.ID {
		t.Errorf("Get(%s) = (%v, %v)", s.ID, got, err)
	}
}

func TestManager_StartUnknownModel(t *testing.T) {
	m, _ := newTestManager(Config{})
	if _, err := m.Start(context.Background(), "user@example.com", 99); err == nil {
		t.Error("Start with unknown model expected error")
	}
	if m.Active() != 0 {
		t.Errorf("active = %d; want 0 after failed start", m.Active())
	}
}

func TestManager_CloseRemovesSession(t *testing.T) {
	m, _ := newTestManager(Config{})
	s, err := m.Start(context.Background(), "user@example.com", 7)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Close(s.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after Close: err = %v; want ErrSessionNotFound", err)
	}
	if err := m.Close(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("double Close: err = %v; want ErrSessionNotFound", err)
	}
}

func TestManager_SweepReclaimsStaleSessions(t *testing.T) {
	m, _ := newTestManager(Config{MaxAge: 10 * time.Millisecond})
	s, err := m.Start(context.Background(), "user@example.com", 7)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	m.sweep()

	if _, err := m.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale session should be reclaimed; Get err = %v", err)
	}
}

func TestManager_SweepKeepsFreshSessions(t *testing.T) {
	m, _ := newTestManager(Config{MaxAge: time.Hour})
	s, err := m.Start(context.Background(), "user@example.com", 7)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close(s.ID)

	m.sweep()
	if _, err := m.Get(s.ID); err != nil {
		t.Errorf("fresh session should survive the sweep; Get err = %v", err)
	}
}
