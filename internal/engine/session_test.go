package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu        sync.Mutex
	createErr error
	saveErr   error
	creates   int
	results   []*model.Result
}

func (f *fakeStore) CreateParticipant(_ context.Context, _ uuid.UUID, _ *model.Exam, _ Identity) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	f.creates++
	return uuid.New(), nil
}

func (f *fakeStore) SaveResult(_ context.Context, res *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.results = append(f.results, res)
	return nil
}

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

func singleQ(limit *int) model.Question {
	return model.Question{
		ID:               uuid.New(),
		Type:             model.QuestionTypeSingle,
		Options:          []string{"A", "B"},
		CorrectIndices:   []int{0},
		TimeLimitSeconds: limit,
	}
}

func testExam(durationMinutes int, questions ...model.Question) *model.Exam {
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Test Exam",
		DurationMinutes: durationMinutes,
		Status:          model.ExamStatusPublished,
		Questions:       questions,
	}
}

func startedSession(t *testing.T, exam *model.Exam, store *fakeStore) *Session {
	t.Helper()
	s := NewSession(exam, store, zerolog.Nop())
	if err := s.Register(context.Background(), Identity{Name: "Ana", Phone: "0812"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return s
}

func TestRegisterHappyPath(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(testExam(10, singleQ(nil)), store, zerolog.Nop())

	if s.State() != StateRegistration {
		t.Fatalf("initial state = %s", s.State())
	}
	if err := s.Register(context.Background(), Identity{Name: "Ana", Phone: "0812"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.State() != StateStart {
		t.Errorf("state = %s, want START", s.State())
	}
	if store.creates != 1 {
		t.Errorf("participant writes = %d, want 1", store.creates)
	}
	if s.ParticipantID() == uuid.Nil {
		t.Error("participant ID not recorded")
	}
}

func TestRegisterValidationFailureIsRetryable(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(testExam(10, singleQ(nil)), store, zerolog.Nop())

	err := s.Register(context.Background(), Identity{Name: "Ana"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if s.State() != StateRegistration {
		t.Errorf("state = %s, want REGISTRATION", s.State())
	}
	if store.creates != 0 {
		t.Errorf("failed attempt produced %d participant writes", store.creates)
	}

	// Retry with the missing field supplied.
	if err := s.Register(context.Background(), Identity{Name: "Ana", Phone: "0812"}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.State() != StateStart {
		t.Errorf("state after retry = %s, want START", s.State())
	}
}

func TestRegisterDeniedBlocksPermanently(t *testing.T) {
	store := &fakeStore{}
	exam := testExam(10, singleQ(nil))
	exam.Restricted = true
	exam.AllowList = []string{"user@example.com"}
	s := NewSession(exam, store, zerolog.Nop())

	err := s.Register(context.Background(), Identity{Email: "other@x.com"})
	var denied *AccessDeniedError
	if !errors.As(err, &denied) || denied.Reason != DenyNotAuthorized {
		t.Fatalf("expected NOT_AUTHORIZED denial, got %v", err)
	}
	if s.State() != StateBlocked {
		t.Fatalf("state = %s, want BLOCKED", s.State())
	}

	// Blocked is terminal: even a valid identity cannot register now.
	err = s.Register(context.Background(), Identity{Email: "user@example.com"})
	var es *ErrSessionState
	if !errors.As(err, &es) {
		t.Fatalf("expected state error, got %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed for a blocked session")
	}
}

func TestRegisterStorageFailureIsRetryable(t *testing.T) {
	store := &fakeStore{createErr: errors.New("db down")}
	s := NewSession(testExam(10, singleQ(nil)), store, zerolog.Nop())

	err := s.Register(context.Background(), Identity{Name: "Ana", Phone: "0812"})
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if s.State() != StateRegistration {
		t.Errorf("state = %s, want REGISTRATION", s.State())
	}

	store.createErr = nil
	if err := s.Register(context.Background(), Identity{Name: "Ana", Phone: "0812"}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.State() != StateStart {
		t.Errorf("state after retry = %s, want START", s.State())
	}
}

func TestBeginArmsBothTimers(t *testing.T) {
	limit := 45
	store := &fakeStore{}
	s := startedSession(t, testExam(10, singleQ(&limit), singleQ(nil)), store)

	if s.State() != StateInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", s.State())
	}
	sess, q := s.Remaining()
	if sess != 600 {
		t.Errorf("session remaining = %d, want 600", sess)
	}
	if q != 45 {
		t.Errorf("question remaining = %d, want 45", q)
	}
}

func TestBeginRequiresStartState(t *testing.T) {
	s := NewSession(testExam(10, singleQ(nil)), &fakeStore{}, zerolog.Nop())
	var es *ErrSessionState
	if err := s.Begin(); !errors.As(err, &es) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestTickDecrementsBothCountdowns(t *testing.T) {
	limit := 30
	s := startedSession(t, testExam(2, singleQ(&limit), singleQ(&limit)), &fakeStore{})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Tick(ctx)
	}
	sess, q := s.Remaining()
	if sess != 115 {
		t.Errorf("session remaining = %d, want 115", sess)
	}
	if q != 25 {
		t.Errorf("question remaining = %d, want 25", q)
	}
}

func TestQuestionExpiryAdvancesAndResetsToNewLimit(t *testing.T) {
	l1, l2 := 2, 50
	s := startedSession(t, testExam(10, singleQ(&l1), singleQ(&l2)), &fakeStore{})

	ctx := context.Background()
	s.Tick(ctx)
	s.Tick(ctx) // first question's 2s elapse

	if got := s.CurrentIndex(); got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
	// Reset reflects the new question's own limit, not leftover time.
	if _, q := s.Remaining(); q != 50 {
		t.Errorf("question remaining = %d, want 50", q)
	}
}

func TestNavigationResetsQuestionTimer(t *testing.T) {
	l1, l2 := 40, 10
	s := startedSession(t, testExam(10, singleQ(&l1), singleQ(&l2)), &fakeStore{})

	ctx := context.Background()
	s.Tick(ctx)
	s.Tick(ctx)

	if err := s.Navigate(1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if _, q := s.Remaining(); q != 10 {
		t.Errorf("question remaining = %d, want 10", q)
	}

	// Going back re-arms with the first question's full limit.
	if err := s.Navigate(0); err != nil {
		t.Fatalf("navigate back: %v", err)
	}
	if _, q := s.Remaining(); q != 40 {
		t.Errorf("question remaining = %d, want 40", q)
	}

	var ve *ValidationError
	if err := s.Navigate(7); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for out-of-range index, got %v", err)
	}
}

func TestZeroLimitQuestionTimerStaysDormant(t *testing.T) {
	noLimit := 0
	s := startedSession(t, testExam(10, singleQ(&noLimit), singleQ(nil)), &fakeStore{})

	ctx := context.Background()
	for i := 0; i < 90; i++ {
		s.Tick(ctx)
	}
	// Dormant timer never forces an advance.
	if got := s.CurrentIndex(); got != 0 {
		t.Errorf("index = %d, want 0", got)
	}
	if _, q := s.Remaining(); q != 0 {
		t.Errorf("question remaining = %d, want 0 (dormant)", q)
	}
}

func TestDefaultLimitAppliedWhenAbsent(t *testing.T) {
	s := startedSession(t, testExam(10, singleQ(nil), singleQ(nil)), &fakeStore{})
	if _, q := s.Remaining(); q != model.DefaultQuestionSeconds {
		t.Errorf("question remaining = %d, want %d", q, model.DefaultQuestionSeconds)
	}
}

func TestLastQuestionExpiryCompletes(t *testing.T) {
	limit := 3
	store := &fakeStore{}
	s := startedSession(t, testExam(10, singleQ(&limit)), store)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Tick(ctx)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", s.State())
	}
	if store.savedCount() != 1 {
		t.Errorf("result saves = %d, want 1", store.savedCount())
	}
}

func TestSessionExpiryCompletesExactlyOnce(t *testing.T) {
	noLimit := 0
	store := &fakeStore{}
	s := startedSession(t, testExam(1, singleQ(&noLimit)), store)

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		s.Tick(ctx)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", s.State())
	}

	// A racing explicit submit and further ticks must not re-complete.
	var es *ErrSessionState
	if err := s.Submit(ctx); !errors.As(err, &es) {
		t.Errorf("expected state error on post-completion submit, got %v", err)
	}
	s.Tick(ctx)
	s.Tick(ctx)

	if store.savedCount() != 1 {
		t.Errorf("result saves = %d, want exactly 1", store.savedCount())
	}
}

func TestBothTimersExpiringSameTickSubmitOnce(t *testing.T) {
	// A 1-minute exam whose only question also takes 60s: both countdowns
	// reach zero on the same tick.
	limit := 60
	store := &fakeStore{}
	s := startedSession(t, testExam(1, singleQ(&limit)), store)

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		s.Tick(ctx)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", s.State())
	}
	if store.savedCount() != 1 {
		t.Errorf("result saves = %d, want exactly 1", store.savedCount())
	}
}

func TestNavigationPreservesAnswers(t *testing.T) {
	q1 := singleQ(nil)
	q2 := model.Question{
		ID:             uuid.New(),
		Type:           model.QuestionTypeMultiple,
		Options:        []string{"X", "Y", "Z"},
		CorrectIndices: []int{0, 2},
	}
	store := &fakeStore{}
	s := startedSession(t, testExam(10, q1, q2), store)

	if err := s.SetSingle(q1.ID, 0); err != nil {
		t.Fatalf("set single: %v", err)
	}
	if err := s.Navigate(1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := s.ToggleOption(q2.ID, 0); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := s.Navigate(0); err != nil {
		t.Fatalf("navigate back: %v", err)
	}

	ans, ok := s.sheet.Get(q1.ID)
	if !ok || len(ans.Selected) != 1 || ans.Selected[0] != 0 {
		t.Errorf("Q1 answer lost across navigation: %v", ans)
	}
	ans, ok = s.sheet.Get(q2.ID)
	if !ok || len(ans.Selected) != 1 {
		t.Errorf("Q2 answer lost across navigation: %v", ans)
	}
}

func TestAnswerValidation(t *testing.T) {
	q := singleQ(nil)
	s := startedSession(t, testExam(10, q), &fakeStore{})

	var ve *ValidationError
	if err := s.SetSingle(q.ID, 5); !errors.As(err, &ve) {
		t.Errorf("expected out-of-range error, got %v", err)
	}
	if err := s.SetSingle(uuid.New(), 0); !errors.As(err, &ve) {
		t.Errorf("expected unknown-question error, got %v", err)
	}
	if err := s.ToggleOption(q.ID, 0); !errors.As(err, &ve) {
		t.Errorf("expected type-mismatch error, got %v", err)
	}
}

func TestCompoundAllPartsAnsweredAdvances(t *testing.T) {
	compound := model.Question{
		ID:   uuid.New(),
		Type: model.QuestionTypeCompound,
		Parts: []model.QuestionPart{
			{Options: []string{"A", "B"}, CorrectIndex: 0},
			{Options: []string{"C", "D"}, CorrectIndex: 1},
		},
	}
	s := startedSession(t, testExam(10, compound, singleQ(nil)), &fakeStore{})

	if err := s.SetPart(compound.ID, 0, 0); err != nil {
		t.Fatalf("set part 0: %v", err)
	}
	if got := s.CurrentIndex(); got != 0 {
		t.Fatalf("advanced before all parts answered (index %d)", got)
	}
	if err := s.SetPart(compound.ID, 1, 1); err != nil {
		t.Fatalf("set part 1: %v", err)
	}
	if got := s.CurrentIndex(); got != 1 {
		t.Errorf("index = %d, want 1 after final part", got)
	}
}

func TestCompoundOnLastQuestionDoesNotComplete(t *testing.T) {
	compound := model.Question{
		ID:   uuid.New(),
		Type: model.QuestionTypeCompound,
		Parts: []model.QuestionPart{
			{Options: []string{"A", "B"}, CorrectIndex: 0},
		},
	}
	store := &fakeStore{}
	s := startedSession(t, testExam(10, compound), store)

	if err := s.SetPart(compound.ID, 0, 0); err != nil {
		t.Fatalf("set part: %v", err)
	}
	if s.State() != StateInProgress {
		t.Errorf("state = %s, want IN_PROGRESS (completion needs explicit submit)", s.State())
	}
	if store.savedCount() != 0 {
		t.Errorf("result saves = %d, want 0", store.savedCount())
	}
}

func TestSubmitComputesResult(t *testing.T) {
	q1 := singleQ(nil)
	q2 := model.Question{
		ID:             uuid.New(),
		Type:           model.QuestionTypeMultiple,
		Options:        []string{"X", "Y", "Z"},
		CorrectIndices: []int{0, 2},
	}
	store := &fakeStore{}
	s := startedSession(t, testExam(10, q1, q2), store)

	base := time.Now()
	s.mu.Lock()
	s.startedAt = base
	s.now = func() time.Time { return base.Add(95 * time.Second) }
	s.mu.Unlock()

	if err := s.SetSingle(q1.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleOption(q2.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := s.Result()
	if res == nil {
		t.Fatal("no result")
	}
	if res.Score != 1 || res.TotalQuestions != 2 || res.Percentage != 50 {
		t.Errorf("result = %d/%d (%d%%), want 1/2 (50%%)", res.Score, res.TotalQuestions, res.Percentage)
	}
	if res.ElapsedSeconds != 95 {
		t.Errorf("elapsed = %d, want 95", res.ElapsedSeconds)
	}
	if len(res.Answers) == 0 {
		t.Error("answers snapshot missing")
	}
	if store.savedCount() != 1 {
		t.Errorf("result saves = %d, want 1", store.savedCount())
	}
}

func TestResultSaveFailureStillCompletes(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("queue full")}
	s := startedSession(t, testExam(10, singleQ(nil)), store)

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %s, want COMPLETED despite save failure", s.State())
	}
	if s.Result() == nil {
		t.Error("result should be available even when the save failed")
	}
	var se *StorageError
	if err := s.SaveWarning(); !errors.As(err, &se) {
		t.Errorf("expected surfaced StorageError warning, got %v", err)
	}
}

func TestCloseCancelsTimers(t *testing.T) {
	store := &fakeStore{}
	s := startedSession(t, testExam(10, singleQ(nil)), store)

	s.Close()
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	// Ticks after teardown must not fire anything.
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		s.Tick(ctx)
	}
	if store.savedCount() != 0 {
		t.Errorf("abandoned session persisted %d results", store.savedCount())
	}
	sess, q := s.Remaining()
	if sess != 0 || q != 0 {
		t.Errorf("remaining after Close = %d/%d, want 0/0", sess, q)
	}
}

func TestAnswersRejectedOutsideInProgress(t *testing.T) {
	q := singleQ(nil)
	s := NewSession(testExam(10, q), &fakeStore{}, zerolog.Nop())

	var es *ErrSessionState
	if err := s.SetSingle(q.ID, 0); !errors.As(err, &es) {
		t.Errorf("expected state error before start, got %v", err)
	}
}
