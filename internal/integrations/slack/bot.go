// Package slackbot exposes the classify → confirm/correct cycle as Slack
// slash commands and interactive messages over Socket Mode.
package slackbot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"ticketbot/internal/config"
	"ticketbot/internal/domain"
	"ticketbot/internal/report"
	"ticketbot/internal/session"
)

const staleCycleText = "This prediction is no longer current."

type Bot struct {
	api    *slack.Client
	cfg    config.Config
	pool   *session.Pool
	db     *sql.DB
	logger *zap.Logger
}

// New wires a bot. db may be nil, in which case /classify-stats reports that
// statistics are unavailable.
func New(api *slack.Client, cfg config.Config, pool *session.Pool, db *sql.DB, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{api: api, cfg: cfg, pool: pool, db: db, logger: logger}
}

// Run connects via Socket Mode and serves events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	client := socketmode.New(b.api)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				b.dispatch(ctx, client, evt)
			}
		}
	}()

	b.logger.Info("Slack bot connecting via Socket Mode")
	err := client.RunContext(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bot) dispatch(ctx context.Context, client *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		b.logger.Info("Slack bot connected via Socket Mode")
	case socketmode.EventTypeSlashCommand:
		client.Ack(*evt.Request)
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.logger.Info("Slash command received",
			zap.String("command", cmd.Command),
			zap.String("user", cmd.UserID),
			zap.String("channel", cmd.ChannelID),
		)
		go b.handleSlashCommand(ctx, cmd)
	case socketmode.EventTypeEventsAPI:
		client.Ack(*evt.Request)
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		go b.handleEventsAPI(ctx, eventsAPIEvent)
	case socketmode.EventTypeInteractive:
		client.Ack(*evt.Request)
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		go b.handleInteraction(ctx, callback)
	}
}

func (b *Bot) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/classify":
		b.handleClassify(ctx, cmd)
	case "/classify-labels":
		b.handleLabels(ctx, cmd)
	case "/classify-stats":
		b.handleStats(ctx, cmd)
	case "/classify-help":
		b.handleHelp(ctx, cmd)
	}
}

func sessionKey(userID, channelID string) string {
	return userID + ":" + channelID
}

func (b *Bot) handleClassify(ctx context.Context, cmd slack.SlashCommand) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Usage: `/classify <describe your issue>`")
		return
	}

	ctrl := b.pool.Get(sessionKey(cmd.UserID, cmd.ChannelID))
	snap, err := ctrl.Submit(ctx, text)
	if errors.Is(err, session.ErrRequestInFlight) {
		b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Still classifying your previous issue, please wait a moment.")
		return
	}
	if err != nil {
		b.logger.Error("Classify failed", zap.String("user", cmd.UserID), zap.Error(err))
		b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.renderSession(ctx, ctrl, cmd.ChannelID, cmd.UserID, snap)
}

// renderSession posts whatever the current state asks the user for next.
func (b *Bot) renderSession(ctx context.Context, ctrl *session.Controller, channelID, userID string, snap session.Session) {
	switch snap.State {
	case domain.StatePredicted:
		b.postBlocks(ctx, channelID, userID, predictionBlocks(snap))
	case domain.StateAwaitingCorrection:
		b.postBlocks(ctx, channelID, userID, correctionBlocks(snap, ctrl.Registry()))
	case domain.StateFailed:
		b.postEphemeral(ctx, channelID, userID,
			fmt.Sprintf("Prediction failed: %s\nRun `/classify` again to retry.", snap.Error))
	case domain.StateIdle:
		b.postEphemeral(ctx, channelID, userID, acknowledgementText(snap))
	default:
		b.logger.Warn("Unexpected state after action", zap.String("state", snap.State.String()), zap.String("cycle_id", snap.CycleID))
	}
}

func (b *Bot) handleLabels(ctx context.Context, cmd slack.SlashCommand) {
	ctrl := b.pool.Get(sessionKey(cmd.UserID, cmd.ChannelID))
	lines := []string{"*Departments*"}
	for _, l := range ctrl.Registry().Labels() {
		lines = append(lines, "• "+l)
	}
	b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, strings.Join(lines, "\n"))
}

func (b *Bot) handleStats(ctx context.Context, cmd slack.SlashCommand) {
	if !b.cfg.IsManagerID(cmd.UserID) {
		b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Sorry, only managers can use this command.")
		b.logger.Info("classify-stats denied", zap.String("user", cmd.UserID))
		return
	}
	if b.db == nil {
		b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Statistics are not available: no outcome store is configured.")
		return
	}

	d, err := report.BuildDashboard(b.db, time.Now().In(b.location()), b.logger)
	if err != nil {
		b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Error loading stats: %v", err))
		b.logger.Error("classify-stats failed", zap.Error(err))
		return
	}
	b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, report.FormatDashboard(d))
	b.logger.Info("classify-stats sent", zap.String("user", cmd.UserID))
}

func (b *Bot) handleHelp(ctx context.Context, cmd slack.SlashCommand) {
	lines := []string{
		"*TicketBot Commands*",
		"",
		"`/classify <issue>` - Predict the department for an IT issue, then confirm or correct it.",
		">*Example:* `/classify cannot access VPN from home`",
		"`/classify-labels` - List the departments you can pick when correcting.",
		"`/classify-help` - Show this help.",
	}
	if b.cfg.IsManagerID(cmd.UserID) {
		lines = append(lines,
			"",
			"*Manager Commands*",
			"",
			"`/classify-stats` - Show the prediction accuracy dashboard.",
		)
	}
	b.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, strings.Join(lines, "\n"))
}

func (b *Bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ctx, ev)
	}
}

func (b *Bot) handleMemberJoined(ctx context.Context, ev *slackevents.MemberJoinedChannelEvent) {
	b.logger.Info("Member joined", zap.String("user", ev.User), zap.String("channel", ev.Channel))

	intro := "Welcome! I'm TicketBot. I route IT issues to the right department.\n\n" +
		"• `/classify <issue>` to get a prediction, then tell me if it was right\n" +
		"• `/classify-help` to see all commands\n\n" +
		"Your confirmations and corrections help the classifier learn."
	b.postEphemeral(ctx, ev.Channel, ev.User, intro)
}

func (b *Bot) handleInteraction(ctx context.Context, cb slack.InteractionCallback) {
	if cb.Type == slack.InteractionTypeBlockActions {
		b.handleBlockActions(ctx, cb)
	}
}

func (b *Bot) handleBlockActions(ctx context.Context, cb slack.InteractionCallback) {
	if len(cb.ActionCallback.BlockActions) == 0 {
		return
	}
	act := cb.ActionCallback.BlockActions[0]
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	userID := cb.User.ID

	var cycleID string
	switch act.ActionID {
	case actionConfirm, actionReject:
		cycleID = strings.TrimSpace(act.Value)
	case actionCorrectLabel:
		cycleID = cycleFromBlockID(act.BlockID)
	default:
		return
	}

	ctrl, ok := b.pool.Lookup(sessionKey(userID, channelID))
	if !ok {
		b.postEphemeral(ctx, channelID, userID, staleCycleText)
		return
	}

	var snap session.Session
	var err error
	switch act.ActionID {
	case actionConfirm:
		snap, err = ctrl.ConfirmCycle(ctx, cycleID)
	case actionReject:
		snap, err = ctrl.RejectCycle(cycleID)
	case actionCorrectLabel:
		snap, err = ctrl.CorrectCycle(ctx, cycleID, strings.TrimSpace(act.SelectedOption.Value))
	}

	var verr *session.ValidationError
	switch {
	case errors.Is(err, session.ErrStaleCycle), errors.Is(err, session.ErrInvalidTransition):
		b.logger.Info("Stale interaction",
			zap.String("action", act.ActionID),
			zap.String("cycle_id", cycleID),
			zap.String("user", userID),
		)
		b.postEphemeral(ctx, channelID, userID, staleCycleText)
		return
	case errors.As(err, &verr):
		b.renderSession(ctx, ctrl, channelID, userID, snap)
		return
	case err != nil:
		b.postEphemeral(ctx, channelID, userID, fmt.Sprintf("Error: %v", err))
		return
	}

	if snap.Error != "" && (snap.State == domain.StatePredicted || snap.State == domain.StateAwaitingCorrection) {
		b.logger.Warn("Feedback not recorded", zap.String("cycle_id", snap.CycleID), zap.String("error", snap.Error))
	}
	b.renderSession(ctx, ctrl, channelID, userID, snap)
}

func (b *Bot) location() *time.Location {
	if b.cfg.Location == nil {
		return time.Local
	}
	return b.cfg.Location
}

func (b *Bot) postEphemeral(ctx context.Context, channelID, userID, text string) {
	_, err := b.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		b.logger.Error("Error posting ephemeral", zap.String("channel", channelID), zap.Error(err))
	}
}

func (b *Bot) postBlocks(ctx context.Context, channelID, userID string, blocks []slack.Block) {
	_, err := b.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		b.logger.Error("Error posting blocks", zap.String("channel", channelID), zap.Error(err))
	}
}
