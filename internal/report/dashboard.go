// Package report renders the classification accuracy dashboard shared by
// the Slack bot, the CLI and the scheduled digest.
package report

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticketbot/internal/domain"
	"ticketbot/internal/storage/sqlite"
)

type Dashboard struct {
	AllTime     domain.OutcomeStats
	Recent      domain.OutcomeStats
	MostCorrect []domain.LabelCorrectionStat
	Pairs       []domain.CorrectionPair
	Trend       []domain.WeeklyTrend
}

// BuildDashboard loads all-time and last-4-weeks figures. Only the all-time
// query is fatal; the breakdowns degrade to empty sections.
func BuildDashboard(db *sql.DB, now time.Time, logger *zap.Logger) (Dashboard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var d Dashboard

	allTime, err := sqlite.GetOutcomeStats(db, time.Time{})
	if err != nil {
		return d, fmt.Errorf("loading stats: %w", err)
	}
	d.AllTime = allTime

	fourWeeksAgo := now.AddDate(0, 0, -28)
	if d.Recent, err = sqlite.GetOutcomeStats(db, fourWeeksAgo); err != nil {
		logger.Warn("Recent stats unavailable", zap.Error(err))
		d.Recent = domain.OutcomeStats{}
	}
	if d.MostCorrect, err = sqlite.GetMostCorrectedLabels(db, fourWeeksAgo, 5); err != nil {
		logger.Warn("Most corrected labels unavailable", zap.Error(err))
	}
	if d.Pairs, err = sqlite.GetCorrectionPairs(db, fourWeeksAgo, 5); err != nil {
		logger.Warn("Correction pairs unavailable", zap.Error(err))
	}
	if d.Trend, err = sqlite.GetWeeklyTrend(db, now.AddDate(0, 0, -56)); err != nil {
		logger.Warn("Weekly trend unavailable", zap.Error(err))
	}
	return d, nil
}

// FormatDashboard renders d as Slack mrkdwn. The same text reads fine in a
// terminal.
func FormatDashboard(d Dashboard) string {
	var sb strings.Builder
	sb.WriteString("*Classification Accuracy Dashboard*\n\n")

	sb.WriteString("*All-time Overview*\n")
	writeStats(&sb, d.AllTime)

	sb.WriteString("\n*Last 4 Weeks*\n")
	writeStats(&sb, d.Recent)
	if d.Recent.PredictFailures > 0 || d.Recent.FeedbackFailures > 0 {
		fmt.Fprintf(&sb, "- Failed requests: %d predict, %d feedback\n", d.Recent.PredictFailures, d.Recent.FeedbackFailures)
	}

	if len(d.MostCorrect) > 0 {
		sb.WriteString("\n*Most Corrected Predictions (last 4 weeks)*\n")
		for _, s := range d.MostCorrect {
			fmt.Fprintf(&sb, "- %s: %d corrections\n", s.PredictedLabel, s.CorrectionCount)
		}
	}

	if len(d.Pairs) > 0 {
		sb.WriteString("\n*Common Mix-ups (last 4 weeks)*\n")
		for _, p := range d.Pairs {
			fmt.Fprintf(&sb, "- %s → %s: %d\n", p.PredictedLabel, p.CorrectedLabel, p.Count)
		}
	}

	if len(d.Trend) > 0 {
		sb.WriteString("\n*Weekly Trend (last 8 weeks)*\n")
		for _, t := range d.Trend {
			fmt.Fprintf(&sb, "- %s: %d reviewed, %d corrected\n", t.WeekStart, t.Cycles, t.Corrections)
		}
	}
	return sb.String()
}

func writeStats(sb *strings.Builder, s domain.OutcomeStats) {
	fmt.Fprintf(sb, "- Reviewed predictions: %d\n", s.TotalCycles)
	fmt.Fprintf(sb, "- Confirmed: %d\n", s.TotalConfirmations)
	fmt.Fprintf(sb, "- Corrected: %d\n", s.TotalCorrections)
	if s.TotalCycles > 0 {
		fmt.Fprintf(sb, "- Accuracy: %.1f%%\n", s.Accuracy())
	}
}
