package cli

import (
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ticketbot/internal/app"
	slackbot "ticketbot/internal/integrations/slack"
	"ticketbot/internal/schedule"
	"ticketbot/internal/session"
	"ticketbot/internal/tui"
)

func (r *root) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Classify issues interactively in the terminal",
		Long: `Opens a terminal session: type an issue, press Enter, then answer y or n.
After n, pick the correct department from the list.

Logs go to ` + defaultTUILogFile + ` unless --log-file is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), r.cfg, r.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return tui.Run(cmd.Context(), a.NewController("tui"))
		},
	}
}

func (r *root) slackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "slack",
		Short: "Serve /classify over Slack Socket Mode",
		Args:  cobra.NoArgs,
		RunE:  r.runSlack,
	}
}

func (r *root) runSlack(cmd *cobra.Command, args []string) error {
	cfg := r.cfg
	if err := cfg.ValidateSlack(); err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, r.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)
	pool := session.NewPool(func() *session.Controller {
		return a.NewController("slack")
	})
	bot := slackbot.New(api, cfg, pool, a.DB, r.logger.Named("slack"))

	r.logger.Info("Starting ticket classification bot",
		zap.Int("managers", len(cfg.ManagerSlackIDs)),
		zap.Duration("session_idle", cfg.SessionIdle()),
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return bot.Run(ctx)
	})
	g.Go(func() error {
		return schedule.RunDigest(ctx, schedule.DigestConfig{
			Schedule:  cfg.StatsDigestSchedule,
			ChannelID: cfg.ReportChannelID,
			Location:  cfg.Location,
		}, a.DB, api, r.logger.Named("digest"))
	})
	g.Go(func() error {
		return schedule.RunSweeper(ctx, pool, cfg.SessionIdle(), r.logger.Named("sweeper"))
	})
	return g.Wait()
}
