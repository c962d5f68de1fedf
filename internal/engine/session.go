package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/rs/zerolog"
)

// State enumerates the session state machine.
type State string

const (
	StateRegistration State = "REGISTRATION"
	StateStart        State = "START"
	StateInProgress   State = "IN_PROGRESS"
	StateCompleted    State = "COMPLETED"
	StateBlocked      State = "BLOCKED"
)

// Session is one participant's run through an exam. It owns the two
// countdowns and the answer sheet, consults the access gate during
// registration, invokes the scoring engine at completion, and emits exactly
// one participant write and one result write through its Store.
//
// All entry points are serialized by a single mutex, so handlers and the
// tick loop behave as one logical thread. Tick handlers are idempotent: a
// completed session ignores further ticks.
type Session struct {
	mu sync.Mutex

	id    uuid.UUID
	exam  *model.Exam
	store Store
	log   zerolog.Logger
	now   func() time.Time

	state         State
	identity      Identity
	participantID uuid.UUID

	idx   int
	sheet *Sheet

	startedAt         time.Time
	sessionRemaining  int
	questionRemaining int
	questionArmed     bool

	completing bool
	result     *model.Result
	saveErr    error

	done chan struct{}
}

// NewSession creates a session in the registration state for a fetched exam.
func NewSession(exam *model.Exam, store Store, log zerolog.Logger) *Session {
	return &Session{
		id:    uuid.New(),
		exam:  exam,
		store: store,
		log:   log.With().Str("component", "session").Str("exam_id", exam.ID.String()).Logger(),
		now:   time.Now,
		state: StateRegistration,
		sheet: NewSheet(),
		done:  make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Exam returns the exam this session runs.
func (s *Session) Exam() *model.Exam { return s.exam }

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ParticipantID returns the persisted participant identifier, zero before
// registration succeeds.
func (s *Session) ParticipantID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantID
}

// CurrentIndex returns the current question index.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Remaining returns the session and question countdown values in seconds.
// A zero question value with the timer dormant means manual advance only.
func (s *Session) Remaining() (session, question int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionRemaining, s.questionRemaining
}

// Result returns the finalized result, nil until completion.
func (s *Session) Result() *model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SaveWarning reports a result-save failure surfaced for operator
// visibility. The session is still completed when this is non-nil.
func (s *Session) SaveWarning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}

// Done is closed when the session reaches a terminal state or is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Register runs the access gate and persists the participant. On success the
// machine moves to START. Gate denial moves it to the terminal BLOCKED state;
// validation or storage failures keep it in REGISTRATION with no side effect,
// so the attempt is retryable.
func (s *Session) Register(ctx context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRegistration {
		return &ErrSessionState{Op: "register", State: s.state}
	}

	if err := CheckAccess(s.exam, id); err != nil {
		var denied *AccessDeniedError
		if errors.As(err, &denied) {
			s.state = StateBlocked
			s.closeDoneLocked()
			s.log.Info().Str("reason", string(denied.Reason)).Msg("Registration blocked")
		}
		return err
	}

	pid, err := s.store.CreateParticipant(ctx, s.id, s.exam, id)
	if err != nil {
		s.log.Error().Err(err).Msg("Participant persistence failed")
		return &StorageError{Op: "create participant", Err: err}
	}

	s.identity = id
	s.participantID = pid
	s.state = StateStart
	return nil
}

// Begin is the participant's explicit readiness confirmation. It records the
// start timestamp, arms the session timer at full duration and the question
// timer at the first question's limit.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStart {
		return &ErrSessionState{Op: "begin", State: s.state}
	}

	s.state = StateInProgress
	s.startedAt = s.now()
	s.sessionRemaining = s.exam.DurationMinutes * 60
	s.idx = 0
	s.armQuestionTimerLocked()
	return nil
}

// SetSingle records the selected option of a single-type question.
func (s *Session) SetSingle(qid uuid.UUID, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.answerableLocked(qid, model.QuestionTypeSingle)
	if err != nil {
		return err
	}
	if option < 0 || option >= len(q.Options) {
		return &ValidationError{Field: "option", Reason: "option index out of range"}
	}
	s.sheet.SetSingle(qid, option)
	return nil
}

// ToggleOption toggles one selected option of a multiple-type question.
func (s *Session) ToggleOption(qid uuid.UUID, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.answerableLocked(qid, model.QuestionTypeMultiple)
	if err != nil {
		return err
	}
	if option < 0 || option >= len(q.Options) {
		return &ValidationError{Field: "option", Reason: "option index out of range"}
	}
	s.sheet.Toggle(qid, option)
	return nil
}

// SetPart records the selected option for one part of a compound question.
// Answering the final open part advances to the next question, unless the
// session is already on the last one.
func (s *Session) SetPart(qid uuid.UUID, part, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.answerableLocked(qid, model.QuestionTypeCompound)
	if err != nil {
		return err
	}
	if part < 0 || part >= len(q.Parts) {
		return &ValidationError{Field: "part", Reason: "part index out of range"}
	}
	if option < 0 || option >= len(q.Parts[part].Options) {
		return &ValidationError{Field: "option", Reason: "option index out of range"}
	}
	s.sheet.SetPart(qid, part, option, len(q.Parts))

	if s.allPartsAnsweredLocked(qid, q) && s.currentQuestionLocked() == q && s.idx < len(s.exam.Questions)-1 {
		s.advanceLocked(s.idx + 1)
	}
	return nil
}

// Navigate moves to the question at idx. Stored answers for other questions
// are untouched, so returning to a question restores what was entered.
func (s *Session) Navigate(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return &ErrSessionState{Op: "navigate", State: s.state}
	}
	if idx < 0 || idx >= len(s.exam.Questions) {
		return &ValidationError{Field: "question_index", Reason: "question index out of range"}
	}
	s.advanceLocked(idx)
	return nil
}

// Submit finalizes the session explicitly. Safe against racing timer expiry.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return &ErrSessionState{Op: "submit", State: s.state}
	}
	s.completeLocked(ctx)
	return nil
}

// Tick advances both countdowns by one second. Ticks arriving outside the
// in-progress state, or after completion has begun, are ignored.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress || s.completing {
		return
	}

	if s.sessionRemaining > 0 {
		s.sessionRemaining--
		if s.sessionRemaining == 0 {
			s.completeLocked(ctx)
			return
		}
	}

	if s.questionArmed && s.questionRemaining > 0 {
		s.questionRemaining--
		if s.questionRemaining == 0 {
			if s.idx >= len(s.exam.Questions)-1 {
				s.completeLocked(ctx)
			} else {
				s.advanceLocked(s.idx + 1)
			}
		}
	}
}

// Run drives the session with one-second ticks until it terminates or ctx is
// cancelled. Call in its own goroutine after Begin.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Close tears the session down without producing a result (abandonment).
// Both countdowns stop deterministically; a completed session is unaffected.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted || s.state == StateBlocked {
		return
	}
	s.questionArmed = false
	s.sessionRemaining = 0
	s.questionRemaining = 0
	s.closeDoneLocked()
}

// Snapshot returns the reload state for the participant.
func (s *Session) Snapshot() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.SessionState{
		SessionID:         s.id,
		ExamID:            s.exam.ID,
		State:             string(s.state),
		QuestionIndex:     s.idx,
		SessionRemaining:  s.sessionRemaining,
		QuestionRemaining: s.questionRemaining,
	}
}

// AnswersJSON marshals the current answer sheet, keyed by question ID.
// Used by the autosave mirror; the finalized copy is produced at completion.
func (s *Session) AnswersJSON() (json.RawMessage, error) {
	s.mu.Lock()
	snap := s.sheet.Snapshot()
	s.mu.Unlock()
	return json.Marshal(snap)
}

// ─── internal ───────────────────────────────────────────────────────

// advanceLocked commits the new question index, then resets the question
// timer. The ordering matters: the timer must always be armed for the
// question that is actually current.
func (s *Session) advanceLocked(idx int) {
	s.idx = idx
	s.armQuestionTimerLocked()
}

func (s *Session) armQuestionTimerLocked() {
	q := s.currentQuestionLocked()
	if q == nil {
		s.questionArmed = false
		s.questionRemaining = 0
		return
	}
	limit := q.TimerSeconds()
	if limit <= 0 {
		// No declared limit: dormant, manual advance only.
		s.questionArmed = false
		s.questionRemaining = 0
		return
	}
	s.questionArmed = true
	s.questionRemaining = limit
}

// completeLocked is the single completion path. The completing flag is the
// one-shot guard: session-timer expiry, last-question expiry and an explicit
// submit may all race into it, but only the first proceeds.
func (s *Session) completeLocked(ctx context.Context) {
	if s.completing || s.state != StateInProgress {
		return
	}
	s.completing = true

	score := TotalScore(s.exam, s.sheet)
	total := len(s.exam.Questions)
	answers, err := json.Marshal(s.sheet)
	if err != nil {
		answers = []byte("{}")
	}

	res := &model.Result{
		SessionID:      s.id,
		ExamID:         s.exam.ID,
		ParticipantID:  s.participantID,
		Score:          score,
		TotalQuestions: total,
		Percentage:     Percentage(score, total),
		ElapsedSeconds: int(s.now().Sub(s.startedAt).Seconds()),
		Answers:        answers,
		CompletedAt:    s.now(),
	}

	s.state = StateCompleted
	s.questionArmed = false
	s.questionRemaining = 0
	s.sessionRemaining = 0
	s.result = res

	if err := s.store.SaveResult(ctx, res); err != nil {
		// The score is already computed; surface the failure, stay completed.
		s.saveErr = &StorageError{Op: "save result", Err: err}
		s.log.Warn().Err(err).Msg("Result persistence failed")
	}

	s.log.Info().
		Int("score", score).
		Int("total", total).
		Int("percentage", res.Percentage).
		Msg("Session completed")

	s.closeDoneLocked()
}

func (s *Session) closeDoneLocked() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Session) currentQuestionLocked() *model.Question {
	if s.idx < 0 || s.idx >= len(s.exam.Questions) {
		return nil
	}
	return &s.exam.Questions[s.idx]
}

func (s *Session) answerableLocked(qid uuid.UUID, typ model.QuestionType) (*model.Question, error) {
	if s.state != StateInProgress {
		return nil, &ErrSessionState{Op: "answer", State: s.state}
	}
	for i := range s.exam.Questions {
		q := &s.exam.Questions[i]
		if q.ID == qid {
			if q.Type != typ {
				return nil, &ValidationError{Field: "question", Reason: "answer shape does not match question type"}
			}
			return q, nil
		}
	}
	return nil, &ValidationError{Field: "question", Reason: "unknown question"}
}

func (s *Session) allPartsAnsweredLocked(qid uuid.UUID, q *model.Question) bool {
	ans, ok := s.sheet.Get(qid)
	if !ok || len(ans.Parts) != len(q.Parts) {
		return false
	}
	for _, p := range ans.Parts {
		if p == nil {
			return false
		}
	}
	return true
}
