package slackbot

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"ticketbot/internal/labels"
	"ticketbot/internal/session"
)

const (
	actionConfirm      = "classify_confirm"
	actionReject       = "classify_reject"
	actionCorrectLabel = "classify_correct_label"

	// Correction selects carry their cycle in the block ID since the option
	// values are the labels themselves.
	correctBlockPrefix = "classify_correct:"
)

func predictionBlocks(snap session.Session) []slack.Block {
	header := fmt.Sprintf("*Predicted department:* %s\n>%s\nIs this correct?", snap.Prediction, quoteIssue(snap.Text))
	if snap.Error != "" {
		header = fmt.Sprintf(":warning: %s\n\n%s", snap.Error, header)
	}

	confirm := slack.NewButtonBlockElement(actionConfirm, snap.CycleID,
		slack.NewTextBlockObject(slack.PlainTextType, "Correct", false, false))
	confirm.Style = slack.StylePrimary
	reject := slack.NewButtonBlockElement(actionReject, snap.CycleID,
		slack.NewTextBlockObject(slack.PlainTextType, "Wrong", false, false))
	reject.Style = slack.StyleDanger

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, header, false, false), nil, nil),
		slack.NewActionBlock("classify_feedback", confirm, reject),
	}
}

func correctionBlocks(snap session.Session, registry *labels.Registry) []slack.Block {
	header := fmt.Sprintf("Predicted *%s* was wrong. Pick the correct department:", snap.Prediction)
	if snap.Error != "" {
		header = fmt.Sprintf(":warning: %s\n\n%s", snap.Error, header)
	}

	var options []*slack.OptionBlockObject
	for _, l := range registry.Labels() {
		options = append(options, slack.NewOptionBlockObject(
			l,
			slack.NewTextBlockObject(slack.PlainTextType, l, false, false),
			nil,
		))
	}
	sel := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, "Select the correct label", false, false),
		actionCorrectLabel,
		options...,
	)

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, header, false, false), nil, nil),
		slack.NewActionBlock(correctBlockPrefix+snap.CycleID, sel),
	}
}

func cycleFromBlockID(blockID string) string {
	return strings.TrimPrefix(blockID, correctBlockPrefix)
}

// quoteIssue keeps the echoed issue on one quoted line and short enough for
// a section block.
func quoteIssue(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 280 {
		text = text[:277] + "..."
	}
	if text == "" {
		return "(empty)"
	}
	return text
}

func acknowledgementText(snap session.Session) string {
	if snap.Acknowledgement == "" {
		return "Thanks! Feedback recorded."
	}
	return "Thanks! Feedback recorded: " + snap.Acknowledgement
}
