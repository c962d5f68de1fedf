package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/config"
	"github.com/quizdrive/quizdrive-backend/internal/engine"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrSessionNotFound means no live session exists under the given ID.
	ErrSessionNotFound = errors.New("session not found")
)

// completedRetention is how long a finished session stays resolvable in
// memory, so a participant reloading right after submission still gets the
// final state from the engine instead of the database.
const completedRetention = 10 * time.Minute

// AutosavePayload is one answer-sheet snapshot queued for background
// persistence. Latest snapshot per session wins.
type AutosavePayload struct {
	SessionID uuid.UUID       `json:"session_id"`
	Answers   json.RawMessage `json:"answers"`
}

// SessionService owns the live in-memory exam sessions. It opens sessions
// against published exams, runs each session's tick loop, mirrors answers to
// Redis for crash recovery, and bridges the engine's persistence calls to
// the repositories and worker queues.
type SessionService struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*engine.Session
	cancels  map[uuid.UUID]context.CancelFunc

	examService     *ExamService
	resultService   *ResultService
	sessionRepo     *repository.SessionRepository
	rdb             *redis.Client
	log             zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	examService *ExamService,
	resultService *ResultService,
	sessionRepo *repository.SessionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:        make(map[uuid.UUID]*engine.Session),
		cancels:         make(map[uuid.UUID]context.CancelFunc),
		examService:     examService,
		resultService:   resultService,
		sessionRepo:     sessionRepo,
		rdb:             rdb,
		log:             log.With().Str("component", "session_service").Logger(),
	}
}

// Open fetches the published exam and creates a session in the registration
// state. A fetch failure is fatal here: no session exists without its exam
// payload, so the caller gets the error and nothing is retained.
func (s *SessionService) Open(ctx context.Context, examID uuid.UUID) (*engine.Session, error) {
	exam, err := s.examService.GetPublished(ctx, examID)
	if err != nil {
		return nil, err
	}

	sess := engine.NewSession(exam, &sessionStore{svc: s}, s.log)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", sess.ID().String()).
		Str("exam_id", examID.String()).
		Msg("Session opened")
	return sess, nil
}

// Get resolves a live session by ID.
func (s *SessionService) Get(id uuid.UUID) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Register runs the access gate for a live session.
func (s *SessionService) Register(ctx context.Context, id uuid.UUID, identity engine.Identity) (*engine.Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Register(ctx, identity); err != nil {
		return sess, err
	}
	return sess, nil
}

// Begin starts a registered session's clocks and its one-second tick loop.
// The loop runs detached from the request context; it stops when the session
// reaches a terminal state or the service shuts down.
func (s *SessionService) Begin(ctx context.Context, id uuid.UUID) (*engine.Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Begin(); err != nil {
		return sess, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	go sess.Run(runCtx)
	go s.reap(sess)

	if err := s.rdb.Set(ctx, config.CacheKey.SessionStartKey(id.String()),
		time.Now().UTC().Format(time.RFC3339), 24*time.Hour).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to cache session start time")
	}
	return sess, nil
}

// MirrorAnswers snapshots the session's answer sheet into Redis and queues
// it for background persistence. Called after every accepted answer action;
// failures are logged, never surfaced, since the in-memory sheet is the
// source of truth until completion.
func (s *SessionService) MirrorAnswers(ctx context.Context, sess *engine.Session) {
	raw, err := sess.AnswersJSON()
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID().String()).Msg("Failed to marshal answer sheet")
		return
	}

	key := config.CacheKey.SessionAnswersKey(sess.ID().String())
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, key, raw, 24*time.Hour)

	payload, err := json.Marshal(AutosavePayload{SessionID: sess.ID(), Answers: raw})
	if err == nil {
		pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID().String()).Msg("Answer mirror failed")
	}
}

// GetState returns the reload snapshot for a session. Live sessions answer
// from the engine plus the Redis answer mirror; for sessions no longer in
// memory the database row decides whether the exam is already over.
func (s *SessionService) GetState(ctx context.Context, id uuid.UUID) (*model.SessionState, error) {
	if sess, err := s.Get(id); err == nil {
		state := sess.Snapshot()
		state.AutosavedAnswers = s.loadAnswerMirror(ctx, id)
		return &state, nil
	}

	row, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrSessionNotFound
	}

	state := &model.SessionState{
		SessionID:        row.ID,
		ExamID:           row.ExamID,
		State:            string(row.Status),
		AutosavedAnswers: s.loadAnswerMirror(ctx, id),
	}
	if row.Status == model.SessionStatusInProgress {
		state.SessionRemaining = s.remainingFromCache(ctx, row)
	}
	return state, nil
}

// remainingFromCache recomputes the session countdown for a session that is
// no longer in memory, from the cached start time and exam duration. The
// database row and the exam record cover cache misses.
func (s *SessionService) remainingFromCache(ctx context.Context, row *model.ExamSession) int {
	start := row.StartedAt
	if raw, err := s.rdb.Get(ctx, config.CacheKey.SessionStartKey(row.ID.String())).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			start = t
		}
	}

	minutes := 0
	if raw, err := s.rdb.Get(ctx, config.CacheKey.ExamDurationKey(row.ExamID.String())).Result(); err == nil {
		minutes, _ = strconv.Atoi(raw)
	}
	if minutes == 0 {
		if exam, err := s.examService.GetByID(ctx, row.ExamID); err == nil {
			minutes = exam.DurationMinutes
		}
	}

	return remainingSeconds(start, minutes, time.Now())
}

// remainingSeconds is the countdown left at now for a session started at
// start with the given duration. Never negative.
func remainingSeconds(start time.Time, durationMinutes int, now time.Time) int {
	remaining := durationMinutes*60 - int(now.Sub(start).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Close tears down a live session without producing a result. Used for
// explicit abandonment; a completed session is unaffected.
func (s *SessionService) Close(id uuid.UUID) {
	s.mu.Lock()
	sess := s.sessions[id]
	cancel := s.cancels[id]
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		sess.Close()
	}
}

// Shutdown closes every live session. In-progress sessions are abandoned;
// their answer mirrors in Redis survive for post-mortem inspection.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*engine.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, cancel := range s.cancels {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, sess := range sessions {
		sess.Close()
	}
	s.log.Info().Int("count", len(sessions)).Msg("All sessions closed")
}

// reap waits for a session to finish, then removes it from the live map
// after the retention window.
func (s *SessionService) reap(sess *engine.Session) {
	<-sess.Done()

	time.AfterFunc(completedRetention, func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		if cancel, ok := s.cancels[sess.ID()]; ok {
			cancel()
			delete(s.cancels, sess.ID())
		}
		s.mu.Unlock()
	})
}

func (s *SessionService) loadAnswerMirror(ctx context.Context, id uuid.UUID) map[string]string {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionAnswersKey(id.String())).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to load answer mirror")
		}
		return map[string]string{}
	}

	var sheet map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &sheet); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Corrupt answer mirror")
		return map[string]string{}
	}

	out := make(map[string]string, len(sheet))
	for qid, ans := range sheet {
		out[qid] = string(ans)
	}
	return out
}

// ─── engine.Store bridge ────────────────────────────────────────────

// sessionStore adapts the service's persistence surface to the engine. The
// participant write is synchronous; the result write only enqueues.
type sessionStore struct {
	svc *SessionService
}

func (st *sessionStore) CreateParticipant(ctx context.Context, sessionID uuid.UUID, exam *model.Exam, id engine.Identity) (uuid.UUID, error) {
	p := &model.Participant{
		ExamID: exam.ID,
		Name:   strings.TrimSpace(id.Name),
		Phone:  strings.TrimSpace(id.Phone),
		Email:  engine.NormalizeEmail(id.Email),
	}
	row := &model.ExamSession{
		ID:     sessionID,
		ExamID: exam.ID,
	}
	// One transaction: a failed attempt leaves no participant row behind.
	if err := st.svc.sessionRepo.CreateWithParticipant(ctx, p, row); err != nil {
		return uuid.Nil, fmt.Errorf("persist registration: %w", err)
	}
	return p.ID, nil
}

func (st *sessionStore) SaveResult(ctx context.Context, res *model.Result) error {
	return st.svc.resultService.Enqueue(ctx, res)
}
