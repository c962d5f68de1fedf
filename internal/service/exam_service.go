package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/config"
	"github.com/quizdrive/quizdrive-backend/internal/engine"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNotExamOwner     = errors.New("not the organizer of this exam")
	ErrNoQuestions      = errors.New("exam has no questions")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam status is not PUBLISHED")
	ErrExamInUse        = errors.New("exam has active sessions")
)

// QuestionValidationError reports which authored question failed shape
// validation and why.
type QuestionValidationError struct {
	Index  int
	Reason string
}

func (e *QuestionValidationError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Index, e.Reason)
}

// Fields renders the error as field-level validation details.
func (e *QuestionValidationError) Fields() map[string]string {
	return map[string]string{fmt.Sprintf("questions[%d]", e.Index): e.Reason}
}

// ExamService handles exam authoring, fetching and Redis payload caching.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam with its questions.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// GetPublished retrieves an exam and verifies it is open for sessions.
func (s *ExamService) GetPublished(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}
	return exam, nil
}

// ListByOrganizer retrieves an organizer's exams.
func (s *ExamService) ListByOrganizer(ctx context.Context, organizerID int) ([]model.Exam, error) {
	exams, err := s.examRepo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// Create inserts a new DRAFT exam. Allow-list entries are normalized at
// write time so membership checks at registration are formatting-proof.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest, organizerID int) (*model.Exam, error) {
	exam := &model.Exam{
		Title:           req.Title,
		OrganizerID:     organizerID,
		DurationMinutes: req.DurationMinutes,
		Restricted:      req.Restricted,
		AllowList:       normalizeAllowList(req.AllowList),
		Status:          model.ExamStatusDraft,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// UpdateAllowList replaces a restricted exam's allow-list between sessions.
func (s *ExamService) UpdateAllowList(ctx context.Context, examID uuid.UUID, organizerID int, allowList []string) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.OrganizerID != organizerID {
		return ErrNotExamOwner
	}
	return s.examRepo.UpdateAllowList(ctx, examID, normalizeAllowList(allowList))
}

// ReplaceQuestions swaps the question set of a DRAFT exam after validating
// the scoring invariants of each declared shape.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, organizerID int, reqs []model.AddQuestionRequest) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.OrganizerID != organizerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}

	questions := make([]model.Question, 0, len(reqs))
	for i, req := range reqs {
		q, err := buildQuestion(examID, i, &req)
		if err != nil {
			return &QuestionValidationError{Index: i, Reason: err.Error()}
		}
		questions = append(questions, *q)
	}

	return s.examRepo.ReplaceQuestions(ctx, examID, questions)
}

// Publish moves a DRAFT exam to PUBLISHED and warms its Redis payload.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, organizerID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.OrganizerID != organizerID {
		return ErrNotExamOwner
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}
	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// GetPayload retrieves the cached participant payload (no correct answers),
// falling back to PostgreSQL and self-healing the cache on a miss.
func (s *ExamService) GetPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Result()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal([]byte(raw), payload); err == nil {
			return payload, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	exam, err := s.GetPublished(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Cache self-heal failed")
	}
	payload := buildPayload(exam)
	return &payload, nil
}

// WarmExamCache loads an exam's participant payload and duration into Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}

	payload := buildPayload(exam)
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID.String()), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(exam.ID.String()), strconv.Itoa(exam.DurationMinutes), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Exam cache warmed")
	return nil
}

// PrewarmAllCaches loads every published exam into Redis before the server
// accepts traffic, so lazy loading never races a thundering herd.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	warmed := 0
	for _, id := range ids {
		exam, err := s.examRepo.GetByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Prewarm fetch failed")
			continue
		}
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Prewarm cache failed")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("published", len(ids)).Msg("Exam caches prewarmed")
	return nil
}

// buildPayload strips correct indices from every question and part.
func buildPayload(exam *model.Exam) model.ExamPayload {
	questions := make([]model.QuestionForParticipant, len(exam.Questions))
	for i, q := range exam.Questions {
		parts := make([]model.PartForParticipant, len(q.Parts))
		for j, p := range q.Parts {
			parts[j] = model.PartForParticipant{Prompt: p.Prompt, Options: p.Options}
		}
		questions[i] = model.QuestionForParticipant{
			ID:               q.ID,
			Prompt:           q.Prompt,
			Type:             q.Type,
			Options:          q.Options,
			Parts:            parts,
			TimeLimitSeconds: q.TimeLimitSeconds,
			Explanation:      q.Explanation,
			MediaRef:         q.MediaRef,
			OrderNum:         q.OrderNum,
		}
	}
	return model.ExamPayload{
		ExamID:     exam.ID,
		Title:      exam.Title,
		Duration:   exam.DurationMinutes,
		Restricted: exam.Restricted,
		Questions:  questions,
	}
}

// buildQuestion validates one authoring request against the invariants its
// declared shape must satisfy before scoring can ever run on it.
func buildQuestion(examID uuid.UUID, order int, req *model.AddQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		ExamID:               examID,
		Prompt:               req.Prompt,
		Type:                 model.QuestionType(req.Type),
		Options:              req.Options,
		CorrectIndices:       req.CorrectIndices,
		TimeLimitSeconds:     req.TimeLimitSeconds,
		Explanation:          req.Explanation,
		MediaRef:             req.MediaRef,
		MediaDurationSeconds: req.MediaDurationSeconds,
		OrderNum:             order,
	}

	switch q.Type {
	case model.QuestionTypeSingle:
		if len(q.Options) < 2 {
			return nil, errors.New("at least 2 options required")
		}
		if len(q.CorrectIndices) != 1 {
			return nil, errors.New("single questions need exactly one correct index")
		}
		if q.CorrectIndices[0] < 0 || q.CorrectIndices[0] >= len(q.Options) {
			return nil, errors.New("correct index out of range")
		}
	case model.QuestionTypeMultiple:
		if len(q.Options) < 2 {
			return nil, errors.New("at least 2 options required")
		}
		if len(q.CorrectIndices) == 0 {
			return nil, errors.New("at least one correct index required")
		}
		// Scoring compares by set cardinality; a duplicate would make the
		// question impossible to answer correctly.
		seen := make(map[int]struct{}, len(q.CorrectIndices))
		for _, idx := range q.CorrectIndices {
			if idx < 0 || idx >= len(q.Options) {
				return nil, errors.New("correct index out of range")
			}
			if _, dup := seen[idx]; dup {
				return nil, errors.New("duplicate correct index")
			}
			seen[idx] = struct{}{}
		}
	case model.QuestionTypeCompound:
		if len(req.Parts) == 0 {
			return nil, errors.New("compound questions need at least one part")
		}
		q.Options = nil
		q.CorrectIndices = nil
		for j, part := range req.Parts {
			if len(part.Options) < 2 {
				return nil, fmt.Errorf("part %d: at least 2 options required", j)
			}
			if part.CorrectIndex < 0 || part.CorrectIndex >= len(part.Options) {
				return nil, fmt.Errorf("part %d: correct index out of range", j)
			}
			q.Parts = append(q.Parts, model.QuestionPart{
				Prompt:       part.Prompt,
				Options:      part.Options,
				CorrectIndex: part.CorrectIndex,
			})
		}
	default:
		return nil, fmt.Errorf("unknown type %q", req.Type)
	}

	return q, nil
}

// normalizeAllowList trims and lower-cases entries, dropping empties.
func normalizeAllowList(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if norm := engine.NormalizeEmail(e); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}
