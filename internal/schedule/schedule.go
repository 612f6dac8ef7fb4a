// Package schedule runs the bot's periodic jobs: the accuracy digest and
// the idle-session sweep.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"ticketbot/internal/report"
	"ticketbot/internal/session"
)

// Parse accepts a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 9 * * 1".
func Parse(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(expr))
}

// Loop sleeps until each activation of sched and runs job, until ctx is
// cancelled. Jobs run one at a time on the calling goroutine.
func Loop(ctx context.Context, name string, sched cron.Schedule, loc *time.Location, logger *zap.Logger, job func(context.Context)) error {
	if loc == nil {
		loc = time.Local
	}
	for {
		now := time.Now().In(loc)
		next := sched.Next(now)
		wait := next.Sub(now)
		logger.Debug("Next scheduled run", zap.String("job", name), zap.Time("at", next), zap.Duration("in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("Scheduler stopped", zap.String("job", name))
			return nil
		case <-timer.C:
		}
		job(ctx)
	}
}

// Poster is the slice of the Slack API the digest needs.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type DigestConfig struct {
	Schedule  string
	ChannelID string
	Location  *time.Location
}

// RunDigest posts the accuracy dashboard to cfg.ChannelID on cfg.Schedule.
// An empty schedule disables the digest and returns immediately.
func RunDigest(ctx context.Context, cfg DigestConfig, db *sql.DB, api Poster, logger *zap.Logger) error {
	expr := strings.TrimSpace(cfg.Schedule)
	if expr == "" {
		logger.Info("Accuracy digest disabled (stats_digest_schedule not set)")
		return nil
	}
	sched, err := Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid stats_digest_schedule '%s': %w", expr, err)
	}
	logger.Info("Accuracy digest scheduled", zap.String("cron", expr), zap.String("channel", cfg.ChannelID))

	return Loop(ctx, "digest", sched, cfg.Location, logger, func(ctx context.Context) {
		if err := PostDigest(ctx, db, api, cfg.ChannelID, time.Now().In(locOrLocal(cfg.Location)), logger); err != nil {
			logger.Error("Accuracy digest failed", zap.Error(err))
		}
	})
}

func PostDigest(ctx context.Context, db *sql.DB, api Poster, channelID string, now time.Time, logger *zap.Logger) error {
	d, err := report.BuildDashboard(db, now, logger)
	if err != nil {
		return err
	}
	if _, _, err := api.PostMessageContext(ctx, channelID, slack.MsgOptionText(report.FormatDashboard(d), false)); err != nil {
		return fmt.Errorf("posting digest: %w", err)
	}
	logger.Info("Accuracy digest posted", zap.String("channel", channelID), zap.Int("cycles", d.AllTime.TotalCycles))
	return nil
}

// RunSweeper drops idle sessions from pool once a minute.
func RunSweeper(ctx context.Context, pool *session.Pool, maxIdle time.Duration, logger *zap.Logger) error {
	return runSweeper(ctx, pool, maxIdle, cron.Every(time.Minute), logger)
}

func runSweeper(ctx context.Context, pool *session.Pool, maxIdle time.Duration, sched cron.Schedule, logger *zap.Logger) error {
	return Loop(ctx, "session-sweep", sched, time.Local, logger, func(context.Context) {
		if dropped := pool.Sweep(maxIdle); dropped > 0 {
			logger.Info("Idle sessions dropped", zap.Int("dropped", dropped), zap.Int("remaining", pool.Len()))
		}
	})
}

func locOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
