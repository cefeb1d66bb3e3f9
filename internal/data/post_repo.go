package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/data/database"
	"github.com/target/caption-pipeline/internal/domain/model"
	apperrors "github.com/target/caption-pipeline/internal/errors"
)

// Advisory lock keys for the stale-caption sweep (pg_try_advisory_xact_lock(major, minor)).
const (
	advisoryLockReaperMajor       = 1000
	advisoryLockReaperFailPending = 1
)

const postColumns = `
  id,
  author_id,
  media_type,
  media_url,
  mood,
  generated_caption,
  caption_status,
  current_job_id,
  caption_error,
  caption_requested_at,
  final_caption,
  finalized_at,
  created_at,
  updated_at
`

// PostRepoConfig holds configuration options for the post repository.
type PostRepoConfig struct {
	Dialect      database.Dialect
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// PostRepo is the durable caption state store. All caption transitions are single
// conditional UPDATE statements so concurrent callbacks and the reaper never race.
type PostRepo struct {
	DB           *sql.DB
	dialect      database.Dialect
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.PostRepository = (*PostRepo)(nil)

// NewPostRepo creates a PostRepo for the given connection.
func NewPostRepo(db *sql.DB, cfg PostRepoConfig) *PostRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	dialect := cfg.Dialect
	if !dialect.Valid() {
		dialect = database.Postgres
	}
	return &PostRepo{
		DB:           db,
		dialect:      dialect,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p           model.Post
		authorID    sql.NullString
		caption     sql.NullString
		jobID       sql.NullString
		captionErr  sql.NullString
		requestedAt sql.NullTime
		final       sql.NullString
		finalizedAt sql.NullTime
		mediaType   string
		status      string
	)
	if err := row.Scan(
		&p.ID,
		&authorID,
		&mediaType,
		&p.MediaURL,
		&p.Mood,
		&caption,
		&status,
		&jobID,
		&captionErr,
		&requestedAt,
		&final,
		&finalizedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.MediaType = model.MediaType(mediaType)
	p.CaptionStatus = model.CaptionStatus(status)
	p.AuthorID = nullStringPtr(authorID)
	p.GeneratedCaption = nullStringPtr(caption)
	p.CurrentJobID = nullStringPtr(jobID)
	p.CaptionError = nullStringPtr(captionErr)
	p.FinalCaption = nullStringPtr(final)
	p.CaptionRequestedAt = nullTimePtr(requestedAt)
	p.FinalizedAt = nullTimePtr(finalizedAt)
	return &p, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new post with caption status NONE.
func (r *PostRepo) Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error) {
	if req == nil {
		return nil, errors.New("create post request is required")
	}
	now := r.timeProvider.Now()
	var author sql.NullString
	if req.AuthorID != nil {
		author = nullable(*req.AuthorID)
	}

	query := r.dialect.Rebind(`
		INSERT INTO posts (id, author_id, media_type, media_url, mood, caption_status, created_at, updated_at)
		VALUES (` + database.Placeholders(1, 8) + `)
		RETURNING ` + postColumns)

	post, err := scanPost(r.DB.QueryRowContext(ctx, query,
		uuid.NewString(),
		author,
		string(req.MediaType),
		req.MediaURL,
		req.Mood,
		string(model.CaptionStatusNone),
		now,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", apperrors.MapDBError(err))
	}
	return post, nil
}

// GetByID loads a post by id.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrPostIDRequired
	}
	query := r.dialect.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE id = $1`)
	post, err := scanPost(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, apperrors.MapDBError(err))
	}
	return post, nil
}

// BeginCaptionJob re-opens the post for a new job. Any previous job id is replaced, which
// turns callbacks for the older job into no-ops.
func (r *PostRepo) BeginCaptionJob(ctx context.Context, params core.BeginCaptionJobParams) (*model.Post, error) {
	if params.PostID == "" || params.JobID == "" {
		return nil, errors.New("post id and job id are required")
	}
	now := r.timeProvider.Now()
	query := r.dialect.Rebind(`
		UPDATE posts
		SET caption_status = $2,
			generated_caption = NULL,
			caption_error = NULL,
			current_job_id = $3,
			media_url = $4,
			mood = $5,
			caption_requested_at = $6,
			updated_at = $6
		WHERE id = $1
		RETURNING ` + postColumns)

	post, err := scanPost(r.DB.QueryRowContext(ctx, query,
		params.PostID,
		string(model.CaptionStatusPending),
		params.JobID,
		params.MediaURL,
		params.Mood,
		now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("begin caption job for post %s: %w", params.PostID, apperrors.MapDBError(err))
	}
	return post, nil
}

// ApplyCaptionOutcome is the compare-and-swap used by the callback path. It only writes when
// the post is PENDING and still waiting on params.JobID.
func (r *PostRepo) ApplyCaptionOutcome(ctx context.Context, params core.ApplyCaptionOutcomeParams) (bool, error) {
	outcome := params.Outcome
	if !outcome.Status.Terminal() {
		return false, fmt.Errorf("caption outcome must be terminal, got %q", outcome.Status)
	}

	var caption, captionErr sql.NullString
	if outcome.Status == model.JobStatusCompleted {
		caption = nullable(outcome.Caption)
		if !caption.Valid {
			return false, model.ErrEmptyCaption
		}
	} else {
		captionErr = nullable(outcome.Error)
	}

	query := r.dialect.Rebind(`
		UPDATE posts
		SET caption_status = $3,
			generated_caption = $4,
			caption_error = $5,
			updated_at = $6
		WHERE id = $1
		  AND current_job_id = $2
		  AND caption_status = $7`)

	res, err := r.DB.ExecContext(ctx, query,
		params.PostID,
		params.JobID,
		string(outcome.Status.CaptionStatus()),
		caption,
		captionErr,
		r.timeProvider.Now(),
		string(model.CaptionStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("apply caption outcome: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// FinalizePost records the caption the user committed. The caption status and generated
// caption are left as the worker reported them. Posts with a PENDING job are refused with
// ErrCaptionPending.
func (r *PostRepo) FinalizePost(ctx context.Context, params core.FinalizePostParams) (*model.Post, error) {
	if strings.TrimSpace(params.PostID) == "" {
		return nil, ErrPostIDRequired
	}
	if params.FinalCaption == "" {
		return nil, apperrors.ValidationField("final_caption", "final_caption is required")
	}
	query := r.dialect.Rebind(`
		UPDATE posts
		SET final_caption = $2,
			finalized_at = $3,
			updated_at = $3
		WHERE id = $1
		  AND caption_status <> $4
		RETURNING ` + postColumns)

	post, err := scanPost(r.DB.QueryRowContext(ctx, query,
		params.PostID,
		params.FinalCaption,
		r.timeProvider.Now(),
		string(model.CaptionStatusPending),
	))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, params.PostID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrCaptionPending
	}
	if err != nil {
		return nil, fmt.Errorf("finalize post %s: %w", params.PostID, apperrors.MapDBError(err))
	}
	return post, nil
}

// FailStalePending marks posts that stayed PENDING longer than MaxAge as FAILED, up to BatchSize
// per call. On PostgreSQL an advisory lock keeps concurrent reapers from sweeping together.
func (r *PostRepo) FailStalePending(
	ctx context.Context,
	params core.FailStalePendingParams,
) ([]model.StaleCaption, error) {
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	reason := params.Reason
	if reason == "" {
		reason = "caption job timed out"
	}

	var stale []model.StaleCaption
	err := database.WithTx(ctx, r.DB, database.TxConfig{
		Fn: func(tx *sql.Tx) error {
			if r.dialect == database.Postgres {
				var locked bool
				if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
					advisoryLockReaperMajor, advisoryLockReaperFailPending).Scan(&locked); err != nil {
					return fmt.Errorf("acquire advisory lock: %w", err)
				}
				if !locked {
					return nil
				}
			}

			now := r.timeProvider.Now()
			query := r.dialect.Rebind(`
				UPDATE posts
				SET caption_status = $1,
					caption_error = $2,
					updated_at = $3
				WHERE caption_status = $4
				  AND id IN (
					SELECT id FROM posts
					WHERE caption_status = $4
					  AND caption_requested_at < $5
					ORDER BY caption_requested_at
					LIMIT $6
				  )
				RETURNING id, current_job_id`)

			rows, err := tx.QueryContext(ctx, query,
				string(model.CaptionStatusFailed),
				reason,
				now,
				string(model.CaptionStatusPending),
				now.Add(-params.MaxAge),
				params.BatchSize,
			)
			if err != nil {
				return fmt.Errorf("fail stale pending captions: %w", err)
			}
			defer func() {
				if cerr := rows.Close(); cerr != nil && r.logger != nil {
					r.logger.WarnContext(ctx, "close stale caption rows", "error", cerr)
				}
			}()

			for rows.Next() {
				var (
					postID string
					jobID  sql.NullString
				)
				if err := rows.Scan(&postID, &jobID); err != nil {
					return fmt.Errorf("scan stale caption: %w", err)
				}
				stale = append(stale, model.StaleCaption{PostID: postID, JobID: jobID.String})
			}
			return rows.Err()
		},
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// CountByCaptionStatus returns the number of posts in each caption status.
func (r *PostRepo) CountByCaptionStatus(ctx context.Context) (*model.CaptionStats, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT caption_status, COUNT(*) FROM posts GROUP BY caption_status`)
	if err != nil {
		return nil, fmt.Errorf("count posts by caption status: %w", apperrors.MapDBError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "close caption stats rows", "error", cerr)
		}
	}()

	stats := &model.CaptionStats{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan caption stats: %w", err)
		}
		switch model.CaptionStatus(status) {
		case model.CaptionStatusNone:
			stats.None = count
		case model.CaptionStatusPending:
			stats.Pending = count
		case model.CaptionStatusCompleted:
			stats.Completed = count
		case model.CaptionStatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caption stats: %w", err)
	}
	return stats, nil
}

// Health pings the underlying database.
func (r *PostRepo) Health(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
