package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdrive/quizdrive-backend/internal/config"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue, marks sessions completed and
// stores their result rows in batches.
type ResultWorker struct {
	pool        *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, sessionRepo *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool:        pool,
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.Result, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.Result
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// ----------------------------------------------------------------
// Batch persist wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.Result) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkPersist(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result persist failed, using fallback")

		for _, res := range batch {
			if err := w.sessionRepo.CompleteWithResult(ctx, res); err != nil {
				w.log.Error().Err(err).
					Str("session_id", res.SessionID.String()).
					Msg("single result persist failed, requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// Completed sessions no longer need their Redis mirrors.
	w.bulkClearMirrors(ctx, batch)
}

// ----------------------------------------------------------------
// BULK PostgreSQL writes using UNNEST + alias
// ----------------------------------------------------------------

func (w *ResultWorker) bulkPersist(ctx context.Context, batch []*model.Result) error {
	n := len(batch)

	sessionIDs := make([]uuid.UUID, 0, n)
	examIDs := make([]uuid.UUID, 0, n)
	participantIDs := make([]uuid.UUID, 0, n)
	scores := make([]int, 0, n)
	totals := make([]int, 0, n)
	percentages := make([]int, 0, n)
	elapsed := make([]int, 0, n)
	answers := make([]string, 0, n)
	completedAts := make([]time.Time, 0, n)

	for _, res := range batch {
		raw := res.Answers
		if len(raw) == 0 {
			raw = json.RawMessage("{}")
		}
		sessionIDs = append(sessionIDs, res.SessionID)
		examIDs = append(examIDs, res.ExamID)
		participantIDs = append(participantIDs, res.ParticipantID)
		scores = append(scores, res.Score)
		totals = append(totals, res.TotalQuestions)
		percentages = append(percentages, res.Percentage)
		elapsed = append(elapsed, res.ElapsedSeconds)
		answers = append(answers, string(raw))
		completedAts = append(completedAts, res.CompletedAt)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updateQuery := `
		UPDATE exam_sessions AS s
		SET status = 'COMPLETED',
		    final_score = t.score,
		    percentage = t.percentage,
		    finished_at = t.completed_at
		FROM (
			SELECT
				u.session_id,
				u.score,
				u.percentage,
				u.completed_at
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::int[],
				$4::timestamptz[]
			) AS u (session_id, score, percentage, completed_at)
		) AS t
		WHERE s.id = t.session_id
	`
	if _, err := tx.Exec(ctx, updateQuery, sessionIDs, scores, percentages, completedAts); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO results
		  (session_id, exam_id, participant_id, score, total_questions,
		   percentage, elapsed_seconds, answers, completed_at)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::uuid[],
			$4::int[],
			$5::int[],
			$6::int[],
			$7::int[],
			$8::jsonb[],
			$9::timestamptz[]
		)
		ON CONFLICT (session_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertQuery,
		sessionIDs, examIDs, participantIDs, scores, totals,
		percentages, elapsed, answers, completedAts,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ----------------------------------------------------------------
// BULK Redis DEL for clearing session mirrors
// ----------------------------------------------------------------

func (w *ResultWorker) bulkClearMirrors(ctx context.Context, batch []*model.Result) {
	pipe := w.rdb.Pipeline()

	for _, res := range batch {
		pipe.Del(ctx, config.CacheKey.SessionAnswersKey(res.SessionID.String()))
		pipe.Del(ctx, config.CacheKey.SessionStartKey(res.SessionID.String()))
	}

	_, _ = pipe.Exec(ctx)
}
