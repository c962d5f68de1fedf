package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/config"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
	"github.com/quizdrive/quizdrive-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultService queues finalized results for persistence and fans them out
// to live organizer subscribers.
type ResultService struct {
	sessionRepo *repository.SessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(sessionRepo *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *ResultService {
	return &ResultService{
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "result_service").Logger(),
	}
}

// Enqueue hands a result to the persistence queue and publishes it on the
// exam's results channel. The queue push is the durable step; fan-out is
// best effort.
func (s *ResultService) Enqueue(ctx context.Context, res *model.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}

	channel := config.CacheKey.ExamResultsChannel(res.ExamID.String())
	if err := s.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", res.ExamID.String()).Msg("Result fan-out failed")
	}
	return nil
}

// Subscribe opens a stream of newly completed results for one exam.
// The caller must Close the returned PubSub.
func (s *ResultService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamResultsChannel(examID.String()))
}

// ListByExam retrieves paginated results for the organizer view.
func (s *ResultService) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]repository.SessionResult, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	results, total, err := s.sessionRepo.ListResultsByExam(ctx, examID, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []repository.SessionResult{}
	}

	totalPages := (int(total) + perPage - 1) / perPage
	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	}
	return results, pagination, nil
}
