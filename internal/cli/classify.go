package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ticketbot/internal/app"
	"ticketbot/internal/domain"
	"ticketbot/internal/labels"
	"ticketbot/internal/report"
	"ticketbot/internal/session"
)

const sourceCLI = "cli"

func (r *root) classifyCommand() *cobra.Command {
	var (
		confirm bool
		label   string
	)
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Predict the department for one issue",
		Long: `Sends the issue text to the classifier and prints the prediction.

With --confirm the prediction is reported as correct. With --label the
prediction is reported as wrong and the given label is sent as the true one.

Example:
  ticketbot classify "cannot access VPN" --confirm
  ticketbot classify "laptop screen flickers" --label Hardware`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runClassify(cmd, strings.Join(args, " "), confirm, label)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "report the prediction as correct")
	cmd.Flags().StringVar(&label, "label", "", "report the prediction as wrong; the correct label")
	cmd.MarkFlagsMutuallyExclusive("confirm", "label")
	return cmd
}

func (r *root) runClassify(cmd *cobra.Command, text string, confirm bool, label string) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, r.cfg, r.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if label != "" && !a.Registry.Contains(label) {
		return fmt.Errorf("%w (known labels: %s)", &session.ValidationError{Label: label}, strings.Join(a.Registry.Labels(), ", "))
	}

	ctrl := a.NewController(sourceCLI)
	snap, err := ctrl.Submit(ctx, text)
	if err != nil {
		return err
	}
	if snap.State == domain.StateFailed {
		return errors.New(snap.Error)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Prediction: %s\n", snap.Prediction)

	switch {
	case confirm:
		snap, err = ctrl.ConfirmCorrect(ctx)
	case label != "":
		if _, err := ctrl.RejectPrediction(); err != nil {
			return err
		}
		snap, err = ctrl.SubmitCorrection(ctx, label)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if snap.State != domain.StateIdle {
		return fmt.Errorf("feedback failed: %s", snap.Error)
	}
	if snap.Acknowledgement != "" {
		fmt.Fprintf(out, "Feedback recorded: %s\n", snap.Acknowledgement)
	} else {
		fmt.Fprintln(out, "Feedback recorded.")
	}
	return nil
}

func (r *root) labelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List the labels a prediction can be corrected to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := labels.New(r.cfg.Labels)
			if err != nil {
				return err
			}
			for _, l := range registry.Labels() {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
}

func (r *root) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the classification accuracy dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), r.cfg, r.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := report.BuildDashboard(a.DB, time.Now().In(r.cfg.Location), r.logger)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.FormatDashboard(d))
			return nil
		},
	}
}
