package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/score"
)

// State is the attempt session lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateMonitoring       State = "monitoring"
	StateCandidateFound   State = "candidate_found"
	StateSubmitting       State = "submitting"
	StateRecorded         State = "recorded"
	StateSubmissionFailed State = "submission_failed"
)

// Terminal reports whether no further submission can happen.
// SubmissionFailed is terminal for automatic detection but still
// accepts a manual retry, so only Recorded is terminal here.
func (s State) Terminal() bool { return s == StateRecorded }

var (
	// ErrSessionRecorded means the attempt already has a recorded score.
	ErrSessionRecorded = errors.New("session already recorded")
	// ErrNothingToConfirm means no low-confidence candidate is pending.
	ErrNothingToConfirm = errors.New("no candidate awaiting confirmation")
	// ErrOCRUnavailable means the OCR engine cannot serve this session.
	ErrOCRUnavailable = errors.New("ocr unavailable for this session")
	// ErrSessionBusy means an event inbox is full; the caller retries.
	ErrSessionBusy = errors.New("session busy, retry")
)

// Backend is the slice of the score API the session needs.
type Backend interface {
	SubmitScore(ctx context.Context, sub backend.ScoreSubmission) error
	SubmitFeedback(ctx context.Context, sub backend.FeedbackSubmission) error
}

const submitTimeout = 20 * time.Second

// Session is one run of one exercise model by one user. It owns the
// detection strategies for that run and enforces the at-most-one-
// submission guarantee: once a candidate is accepted, every later
// candidate is a no-op.
type Session struct {
	ID      string
	Email   string
	Model   models.ExerciseModel
	Started time.Time

	log     *zap.Logger
	backend Backend
	journal Journal
	opts    Options

	messages    chan any
	screenshots chan detect.OCRRequest
	manual      chan string
	journalOps  chan func()

	cancel        context.CancelFunc // whole session
	stopDetection context.CancelFunc // message/dom/url/ocr strategies

	mu        sync.Mutex
	state     State
	rawScore  string
	numScore  *int
	source    models.DetectionSource
	pending   *detect.Candidate
	status    string
	submitted bool
	tried     []string
	ocrStage  string
	ocrPct    int
	settled   time.Time
}

// settledBefore reports whether the session reached a recorded state
// before t. Unrecorded sessions never settle.
func (s *Session) settledBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.settled.IsZero() && s.settled.Before(t)
}

// Options configure which strategies run and on what cadence.
type Options struct {
	Strategies   []models.DetectionSource
	PollInterval time.Duration
	PollTimeout  time.Duration
	Frames       detect.Accessor
	Engine       detect.Engine
}

const defaultPollTimeout = 5 * time.Minute

func newSession(log *zap.Logger, be Backend, journal Journal, email string, model models.ExerciseModel, opts Options) *Session {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &Session{
		ID:          uuid.New().String(),
		Email:       email,
		Model:       model,
		Started:     time.Now(),
		log:         log,
		backend:     be,
		journal:     journal,
		opts:        opts,
		messages:    make(chan any, 16),
		screenshots: make(chan detect.OCRRequest, 2),
		manual:      make(chan string, 4),
		journalOps:  make(chan func(), 64),
		state:       StateIdle,
	}
}

// start transitions Idle -> Monitoring and launches the enabled
// strategies. Every goroutine hangs off ctx so unmount cancels all
// outstanding timers, listeners and in-flight OCR work at once.
func (s *Session) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	detectCtx, stopDetection := context.WithCancel(ctx)
	s.stopDetection = stopDetection

	if s.journal != nil {
		go s.journalLoop(ctx)
	}

	// Polling strategies get a bounded lifetime; the message listener is
	// free and keeps listening for the whole detection window.
	pollCtx, cancelPoll := context.WithTimeout(detectCtx, s.opts.PollTimeout)

	emit := s.onCandidate

	enabled := s.opts.Strategies
	if len(enabled) == 0 {
		enabled = []models.DetectionSource{models.SourceMessage, models.SourceDOMScan, models.SourceURLScan}
	}
	for _, src := range enabled {
		switch src {
		case models.SourceMessage:
			s.launch(models.SourceMessage)
			go detect.NewMessage(s.messages).Run(detectCtx, emit)
		case models.SourceDOMScan:
			if s.opts.Frames == nil {
				continue
			}
			s.launch(models.SourceDOMScan)
			go detect.NewDOMScan(s.opts.Frames, s.opts.PollInterval).Run(pollCtx, emit)
		case models.SourceURLScan:
			if s.opts.Frames == nil {
				continue
			}
			s.launch(models.SourceURLScan)
			go detect.NewURLScan(s.opts.Frames, s.opts.PollInterval).Run(pollCtx, emit)
		}
	}

	if s.opts.Engine != nil {
		s.launch(models.SourceOCR)
		go detect.NewOCR(s.opts.Engine, s.screenshots).Run(detectCtx, emit)
	}

	// Manual entry outlives automatic detection: it must still work
	// after the poll window closes or a submission fails.
	s.launch(models.SourceManual)
	go detect.NewManual(s.manual).Run(ctx, emit)

	// When the poll window expires with nothing found, surface manual
	// entry as the path forward.
	go func() {
		defer cancelPoll()
		<-pollCtx.Done()
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		if s.state == StateMonitoring && errors.Is(context.Cause(pollCtx), context.DeadlineExceeded) {
			s.status = "Automatic detection timed out. Enter your score manually."
		}
		s.mu.Unlock()
	}()

	s.setState(StateMonitoring)
}

func (s *Session) launch(src models.DetectionSource) {
	s.mu.Lock()
	s.tried = append(s.tried, string(src))
	s.mu.Unlock()
}

// onCandidate is the single funnel every strategy emits into. The first
// accepted candidate wins; anything arriving after the state leaves
// Monitoring is dropped. Manual entries may fast-forward a failed or
// pending state straight to Submitting, but never preempt a submission
// already in flight: that would double-post the attempt.
func (s *Session) onCandidate(c detect.Candidate) {
	s.mu.Lock()

	if s.state == StateRecorded || s.state == StateSubmitting {
		s.mu.Unlock()
		return
	}
	if c.Source != models.SourceManual && s.state != StateMonitoring {
		s.mu.Unlock()
		return
	}

	n, err := score.Normalize(c.Raw)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug("Candidate rejected by normalizer",
			zap.String("session", s.ID),
			zap.String("raw", c.Raw),
			zap.String("source", string(c.Source)),
			zap.Error(err),
		)
		s.recordCandidate(c, false, err.Error())
		return
	}

	if c.Confidence == detect.ConfidenceLow {
		pending := c
		s.pending = &pending
		s.status = "Possible score detected — please confirm before submitting."
		s.mu.Unlock()
		s.recordCandidate(c, false, "awaiting confirmation")
		return
	}

	s.pending = nil
	s.rawScore = c.Raw
	s.numScore = &n
	s.source = c.Source
	s.stateLocked(StateCandidateFound)
	s.stateLocked(StateSubmitting)
	s.mu.Unlock()

	s.recordCandidate(c, true, "")
	go s.submit(n, c)
}

// submit pushes the accepted score to the backend, falling back to the
// feedback endpoint if the primary path fails. Uses its own context:
// the session context is about to be cancelled by the Recorded
// transition and must not abort the in-flight submission.
func (s *Session) submit(n int, c detect.Candidate) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	sub := backend.ScoreSubmission{
		Email:           s.Email,
		ModelID:         s.Model.ID,
		Score:           n,
		RawScore:        c.Raw,
		DetectionMethod: c.Source.WireMethod(),
	}

	err := s.backend.SubmitScore(ctx, sub)
	if err != nil {
		s.log.Warn("Primary score submission failed, trying feedback fallback",
			zap.String("session", s.ID),
			zap.Error(err),
		)
		err = s.backend.SubmitFeedback(ctx, backend.FeedbackSubmission{
			Email: s.Email,
			Score: n,
			Model: s.Model.ID,
		})
	}

	s.mu.Lock()
	if s.state != StateSubmitting {
		// A racing submission already settled this session.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.status = "Score could not be saved. Please re-enter it manually."
		s.stateLocked(StateSubmissionFailed)
		s.mu.Unlock()
		s.log.Error("Score submission failed",
			zap.String("session", s.ID),
			zap.String("email", s.Email),
			zap.Int("model", s.Model.ID),
			zap.Error(err),
		)
		// Automatic detection does not reopen; manual entry remains.
		s.stopDetection()
		return
	}

	s.submitted = true
	s.status = ""
	s.stateLocked(StateRecorded)
	s.mu.Unlock()

	s.log.Info("Score recorded",
		zap.String("session", s.ID),
		zap.String("email", s.Email),
		zap.Int("model", s.Model.ID),
		zap.Int("score", n),
		zap.String("method", c.Source.WireMethod()),
	)

	// Recorded is terminal: stop every timer and listener.
	s.stopDetection()
}

// PostMessage relays a cross-document message from the viewer page.
// Best-effort by design: if the inbox is full the message is dropped,
// the exercise will usually repeat or the other strategies catch up.
func (s *Session) PostMessage(payload any) {
	select {
	case s.messages <- payload:
	default:
	}
}

// Screenshot queues a user-triggered OCR pass over the captured iframe
// region.
func (s *Session) Screenshot(image []byte) error {
	if s.opts.Engine == nil {
		return ErrOCRUnavailable
	}
	s.mu.Lock()
	recorded := s.state == StateRecorded
	s.mu.Unlock()
	if recorded {
		return ErrSessionRecorded
	}

	req := detect.OCRRequest{Image: image, Progress: s.ocrProgress}
	select {
	case s.screenshots <- req:
		return nil
	default:
		return ErrSessionBusy
	}
}

func (s *Session) ocrProgress(stage string, pct int) {
	s.mu.Lock()
	s.ocrStage = stage
	s.ocrPct = pct
	s.mu.Unlock()
}

// ManualEntry validates free text and fast-forwards the session toward
// Submitting. Validation failures come back to the caller so the form
// can re-prompt inline.
func (s *Session) ManualEntry(raw string) error {
	if _, _, err := score.NormalizeManual(raw); err != nil {
		return err
	}
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case StateRecorded:
		return ErrSessionRecorded
	case StateSubmitting:
		// A submission is already in flight; a second one would
		// double-post the attempt.
		return ErrSessionBusy
	}

	select {
	case s.manual <- raw:
		return nil
	default:
		return ErrSessionBusy
	}
}

// Confirm promotes the pending low-confidence candidate after the user
// has verified it.
func (s *Session) Confirm() error {
	s.mu.Lock()
	if s.state == StateRecorded {
		s.mu.Unlock()
		return ErrSessionRecorded
	}
	if s.pending == nil {
		s.mu.Unlock()
		return ErrNothingToConfirm
	}
	c := *s.pending
	s.pending = nil
	s.mu.Unlock()

	c.Confidence = detect.ConfidenceHigh
	s.onCandidate(c)
	return nil
}

// Close cancels every outstanding timer, listener and in-flight OCR
// pass. Called on viewer unmount and by the janitor.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) stateLocked(state State) {
	s.state = state
	if state == StateRecorded {
		s.settled = time.Now()
	}
	s.recordState()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.stateLocked(state)
	s.mu.Unlock()
}

func (s *Session) recordState() {
	if s.journal == nil {
		return
	}
	entry := JournalEntry{
		SessionID: s.ID,
		Email:     s.Email,
		ModelID:   s.Model.ID,
		State:     s.state,
		RawScore:  s.rawScore,
		Score:     s.numScore,
		Source:    s.source,
		Submitted: s.submitted,
		StartedAt: s.Started,
		Tried:     append([]string(nil), s.tried...),
	}
	s.enqueueJournal(func() { s.journal.StateChanged(entry) })
}

func (s *Session) recordCandidate(c detect.Candidate, accepted bool, reason string) {
	if s.journal == nil {
		return
	}
	s.enqueueJournal(func() { s.journal.CandidateSeen(s.ID, c.Source, c.Raw, accepted, reason) })
}

// enqueueJournal hands a write to the session's single journal writer
// so records land in transition order. A full queue drops the write
// rather than block a state transition.
func (s *Session) enqueueJournal(op func()) {
	select {
	case s.journalOps <- op:
	default:
	}
}

// journalLoop is the only goroutine that touches the journal for this
// session. It drains whatever is still queued when the session closes.
func (s *Session) journalLoop(ctx context.Context) {
	for {
		select {
		case op := <-s.journalOps:
			op()
		case <-ctx.Done():
			for {
				select {
				case op := <-s.journalOps:
					op()
				default:
					return
				}
			}
		}
	}
}

// Snapshot is the read-only view served to the viewer page.
type Snapshot struct {
	ID             string                 `json:"id"`
	Email          string                 `json:"email"`
	ModelID        int                    `json:"model_id"`
	ModelName      string                 `json:"model_name"`
	State          State                  `json:"state"`
	RawScore       string                 `json:"raw_score,omitempty"`
	Score          *int                   `json:"score,omitempty"`
	Source         models.DetectionSource `json:"detection_source,omitempty"`
	Submitted      bool                   `json:"submitted"`
	PendingRaw     string                 `json:"pending_raw,omitempty"`
	PendingSource  models.DetectionSource `json:"pending_source,omitempty"`
	StatusMessage  string                 `json:"status_message,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	ElapsedSeconds int                    `json:"elapsed_seconds"`
	OCRState       string                 `json:"ocr_state,omitempty"`
	OCRStage       string                 `json:"ocr_stage,omitempty"`
	OCRPercent     int                    `json:"ocr_percent,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.ID,
		Email:          s.Email,
		ModelID:        s.Model.ID,
		ModelName:      s.Model.Name,
		State:          s.state,
		RawScore:       s.rawScore,
		Score:          s.numScore,
		Source:         s.source,
		Submitted:      s.submitted,
		StatusMessage:  s.status,
		StartedAt:      s.Started,
		ElapsedSeconds: int(time.Since(s.Started).Seconds()),
		OCRStage:       s.ocrStage,
		OCRPercent:     s.ocrPct,
	}
	if s.pending != nil {
		snap.PendingRaw = s.pending.Raw
		snap.PendingSource = s.pending.Source
	}
	if s.opts.Engine != nil {
		snap.OCRState = s.opts.Engine.State().String()
	}
	return snap
}

// CurrentState returns the state without the full snapshot.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
