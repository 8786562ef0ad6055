package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/session"
)

// fakeBackendServer serves the model list and accepts submissions the
// way the score backend does.
func fakeBackendServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/roleplay/models/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":7,"name":"Cold Call","iframe_code":"<iframe src=\"https://example.com/x\"></iframe>","category":1,"min_score_to_pass":70,"min_attempts_required":3}]`))
	})
	mux.HandleFunc("/roleplay/scores/submit_score/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newViewerRouter(t *testing.T) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := fakeBackendServer(t)
	client := backend.New(srv.URL, time.Second, zap.NewNop())
	frames := detect.NewStore()
	manager := session.NewManager(zap.NewNop(), client, client, frames, nil, nil, session.Config{
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
	})
	h := NewViewerHandler(zap.NewNop(), manager, frames)
	r := gin.New()
	r.POST("/viewer/sessions", h.Start)
	r.GET("/viewer/sessions/:id", h.Get)
	r.POST("/viewer/sessions/:id/message", h.Message)
	r.POST("/viewer/sessions/:id/frame", h.Frame)
	r.POST("/viewer/sessions/:id/confirm", h.Confirm)
	r.POST("/viewer/sessions/:id/manual", h.Manual)
	r.DELETE("/viewer/sessions/:id", h.Close)
	r.GET("/viewer/sessions/:id/journal", h.Journal)
	return r, manager
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/viewer/sessions", gin.H{"email": "rep@example.com", "model_id": 7})
	if w.Code != http.StatusCreated {
		t.Fatalf("start session: got %d, want 201 (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Session    session.Snapshot `json:"session"`
		IframeCode string           `json:"iframe_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.IframeCode == "" {
		t.Fatal("start session: empty iframe_code")
	}
	return resp.Session.ID
}

func TestStartAndGetSession(t *testing.T) {
	r, _ := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodGet, "/viewer/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get session: got %d, want 200", w.Code)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != session.StateMonitoring {
		t.Errorf("state = %q, want %q", snap.State, session.StateMonitoring)
	}
	if snap.ModelName != "Cold Call" {
		t.Errorf("model_name = %q, want %q", snap.ModelName, "Cold Call")
	}
}

func TestStartSessionValidation(t *testing.T) {
	r, _ := newViewerRouter(t)
	w := doJSON(t, r, http.MethodPost, "/viewer/sessions", gin.H{"email": "not-an-email", "model_id": 7})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
}

func TestStartSessionUnknownModel(t *testing.T) {
	r, _ := newViewerRouter(t)
	w := doJSON(t, r, http.MethodPost, "/viewer/sessions", gin.H{"email": "rep@example.com", "model_id": 99})
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404 for unknown model (%s)", w.Code, w.Body.String())
	}
}

func TestGetUnknownSession(t *testing.T) {
	r, _ := newViewerRouter(t)
	w := doJSON(t, r, http.MethodGet, "/viewer/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", w.Code)
	}
}

func TestMessageDrivesSessionToRecorded(t *testing.T) {
	r, mgr := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/viewer/sessions/"+id+"/message",
		gin.H{"type": "ROLEPLAY_SCORE", "score": "85%"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("post message: got %d, want 202", w.Code)
	}

	s, err := mgr.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	waitForState(t, s, session.StateRecorded)

	var snap session.Snapshot
	resp := doJSON(t, r, http.MethodGet, "/viewer/sessions/"+id, nil)
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Score == nil || *snap.Score != 85 {
		t.Errorf("score = %v, want 85", snap.Score)
	}
	if !snap.Submitted {
		t.Error("submitted = false, want true")
	}
}

func TestManualEntryValidation(t *testing.T) {
	r, _ := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/viewer/sessions/"+id+"/manual", gin.H{"score": "eighty"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422 (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/viewer/sessions/"+id+"/manual", gin.H{"score": "90"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("got %d, want 202 (%s)", w.Code, w.Body.String())
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	r, _ := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/viewer/sessions/"+id+"/confirm", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
}

func TestFrameReportFeedsScan(t *testing.T) {
	r, mgr := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/viewer/sessions/"+id+"/frame", gin.H{
		"accessible": true,
		"url":        "https://example.com/done",
		"elements": []gin.H{
			{"classes": "final-score", "text": "Score: 92%"},
		},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("post frame: got %d, want 202", w.Code)
	}

	s, err := mgr.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	waitForState(t, s, session.StateRecorded)
}

func TestCloseSession(t *testing.T) {
	r, _ := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodDelete, "/viewer/sessions/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/viewer/sessions/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d, want 404", w.Code)
	}
}

func TestJournalWithoutDatabase(t *testing.T) {
	r, _ := newViewerRouter(t)
	id := startSession(t, r)

	w := doJSON(t, r, http.MethodGet, "/viewer/sessions/"+id+"/journal", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", w.Code)
	}
}

func waitForState(t *testing.T, s *session.Session, want session.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.CurrentState() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %q, want %q", s.CurrentState(), want)
}
