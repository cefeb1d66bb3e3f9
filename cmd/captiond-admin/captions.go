package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/adapters/reaper"
	redisadapter "github.com/target/caption-pipeline/internal/adapters/redis"
	"github.com/target/caption-pipeline/internal/bootstrap"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/data"
	"github.com/target/caption-pipeline/internal/domain/model"
	"github.com/target/caption-pipeline/internal/service"
)

var errRegistryNotShared = errors.New(
	"job registry is in-process (CAPTION_REGISTRY_BACKEND=memory); query GET /api/caption-jobs/{job_id} on captiond instead",
)

func newPostRepo(cmdCtx *commandContext, db *sql.DB) *data.PostRepo {
	return data.NewPostRepo(db, data.PostRepoConfig{Dialect: cmdCtx.Config.DB.Driver, Logger: cmdCtx.Logger})
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations", "driver", cmdCtx.Config.DB.Driver)
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Config.DB.Driver, cmdCtx.Logger); err != nil {
			return err
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runPostStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseLookupFlags("post-status", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		post, err := newPostRepo(cmdCtx, db).GetByID(ctx, opts.ID)
		if err != nil {
			return fmt.Errorf("load post %s: %w", opts.ID, err)
		}
		if opts.JSON {
			return printJSON(cmdCtx.Out, postStatusJSON{Post: post, CaptionError: post.CaptionError})
		}
		return printPost(cmdCtx.Out, post)
	})
}

// postStatusJSON includes caption_error, which the public JSON form of a post hides.
type postStatusJSON struct {
	*model.Post
	CaptionError *string `json:"caption_error,omitempty"`
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseLookupFlags("job-status", args)
	if err != nil {
		return err
	}
	if cmdCtx.Config.Caption.RegistryBackend != config.RegistryBackendRedis {
		return errRegistryNotShared
	}
	return withRedis(cmdCtx, defaultCommandTimeout, func(ctx context.Context, client redis.UniversalClient) error {
		reg, err := redisadapter.NewJobRegistry(redisadapter.JobRegistryOptions{
			Client: client,
			Prefix: cmdCtx.Config.Caption.RegistryKeyPrefix,
			TTL:    cmdCtx.Config.Caption.RegistryTTL,
		})
		if err != nil {
			return err
		}
		job, err := reg.Get(ctx, opts.ID)
		if errors.Is(err, core.ErrJobNotRegistered) {
			return fmt.Errorf("job %s is not registered (unknown or expired)", opts.ID)
		}
		if err != nil {
			return fmt.Errorf("load job %s: %w", opts.ID, err)
		}
		if opts.JSON {
			return printJSON(cmdCtx.Out, job)
		}
		return printJob(cmdCtx.Out, job)
	})
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseOutputFlags("stats", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		stats, err := newPostRepo(cmdCtx, db).CountByCaptionStatus(ctx)
		if err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		if opts.JSON {
			return printJSON(cmdCtx.Out, stats)
		}
		return printStats(cmdCtx.Out, stats)
	})
}

func runReap(cmdCtx *commandContext, args []string) error {
	opts, err := parseOutputFlags("reap", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		sweep := func(reg core.JobRegistry) error {
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				Posts:    newPostRepo(cmdCtx, db),
				Registry: reg,
				Config:   cmdCtx.Config.Reaper,
				Logger:   cmdCtx.Logger,
			})
			if err != nil {
				return err
			}
			res, err := runner.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("reap: %w", err)
			}
			if opts.JSON {
				return printJSON(cmdCtx.Out, res)
			}
			return printReapResult(cmdCtx.Out, res)
		}

		// Only a shared registry is worth updating from a separate process.
		if cmdCtx.Config.Caption.RegistryBackend != config.RegistryBackendRedis {
			return sweep(nil)
		}
		return withRedis(cmdCtx, defaultCommandTimeout, func(_ context.Context, client redis.UniversalClient) error {
			reg, err := bootstrap.NewJobRegistry(cmdCtx.Config.Caption, client)
			if err != nil {
				return err
			}
			return sweep(reg)
		})
	})
}

func runQueueDepth(cmdCtx *commandContext, _ []string) error {
	if cmdCtx.Config.Caption.QueueBackend != config.QueueBackendRedis {
		return fmt.Errorf("queue backend is %q; only the redis queue can be inspected", cmdCtx.Config.Caption.QueueBackend)
	}
	return withRedis(cmdCtx, defaultCommandTimeout, func(ctx context.Context, client redis.UniversalClient) error {
		queue := redisadapter.NewCaptionQueue(client, cmdCtx.Config.Caption.QueueName)
		depth, err := queue.Depth(ctx)
		if err != nil {
			return fmt.Errorf("queue depth: %w", err)
		}
		return writef(cmdCtx.Out, "%s\t%d\n", cmdCtx.Config.Caption.QueueName, depth)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPost(w io.Writer, p *model.Post) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Post", p.ID},
		{"Media", string(p.MediaType) + " " + p.MediaURL},
		{"Mood", p.Mood},
		{"Caption status", string(p.CaptionStatus)},
		{"Current job", deref(p.CurrentJobID)},
		{"Caption", deref(p.GeneratedCaption)},
		{"Final caption", deref(p.FinalCaption)},
		{"Caption error", deref(p.CaptionError)},
		{"Requested at", formatTime(p.CaptionRequestedAt)},
		{"Updated at", p.UpdatedAt.UTC().Format(time.RFC3339)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write %s: %w", row[0], err)
		}
	}
	return tw.Flush()
}

func printJob(w io.Writer, j *model.CaptionJob) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Job", j.ID},
		{"Post", j.PostID},
		{"Status", string(j.Status)},
		{"Caption", deref(j.Caption)},
		{"Error", deref(j.Error)},
		{"Created at", j.CreatedAt.UTC().Format(time.RFC3339)},
		{"Updated at", j.UpdatedAt.UTC().Format(time.RFC3339)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write %s: %w", row[0], err)
		}
	}
	return tw.Flush()
}

func printStats(w io.Writer, s *model.CaptionStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "Status\tPosts\n"); err != nil {
		return err
	}
	for _, row := range []struct {
		status model.CaptionStatus
		n      int64
	}{
		{model.CaptionStatusNone, s.None},
		{model.CaptionStatusPending, s.Pending},
		{model.CaptionStatusCompleted, s.Completed},
		{model.CaptionStatusFailed, s.Failed},
	} {
		if err := writef(tw, "%s\t%d\n", row.status, row.n); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printReapResult(w io.Writer, res *service.ReapResult) error {
	if err := writef(w, "Failed stale captions: %d\nPurged registry entries: %d\n", res.Failed, res.Purged); err != nil {
		return err
	}
	if res.Stats == nil {
		return nil
	}
	if err := writef(w, "\n"); err != nil {
		return err
	}
	return printStats(w, res.Stats)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
