package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"ticketbot/internal/domain"
	"ticketbot/internal/labels"
	"ticketbot/internal/session"
)

type fakeService struct {
	mu          sync.Mutex
	feedback    []domain.FeedbackRecord
	feedbackErr error
}

func (f *fakeService) Predict(_ context.Context, text string) (string, error) {
	switch {
	case strings.Contains(text, "VPN"):
		return "Access", nil
	case strings.Contains(text, "disk"):
		return "Storage", nil
	case strings.Contains(text, "boom"):
		return "", errors.New("connection refused")
	}
	return "Miscellaneous", nil
}

func (f *fakeService) SendFeedback(_ context.Context, rec domain.FeedbackRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, rec)
	if f.feedbackErr != nil {
		return "", f.feedbackErr
	}
	return "Thanks", nil
}

func newTestModel(svc *fakeService) Model {
	ctrl := session.NewController(svc, labels.MustDefault(), session.WithSource("tui"))
	return New(context.Background(), ctrl)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// results runs cmd and collects the request results it produces, skipping
// spinner ticks and other UI messages.
func results(cmd tea.Cmd) []resultMsg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case resultMsg:
		return []resultMsg{msg}
	case tea.BatchMsg:
		var out []resultMsg
		for _, c := range msg {
			out = append(out, results(c)...)
		}
		return out
	}
	return nil
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// settle feeds every result produced by cmd back into the model.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, r := range results(cmd) {
		m, _ = update(t, m, r)
	}
	return m
}

func TestSubmitShowsPrediction(t *testing.T) {
	m := newTestModel(&fakeService{})
	m = typeText(t, m, "cannot access VPN")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, domain.StateRequesting, m.snap.State)
	require.Contains(t, m.View(), "Classifying")

	m = settle(t, m, cmd)
	require.Equal(t, domain.StatePredicted, m.snap.State)
	require.Equal(t, "Access", m.snap.Prediction)
	require.Contains(t, m.View(), "Access")
}

func TestConfirmResetsWithAcknowledgement(t *testing.T) {
	svc := &fakeService{}
	m := newTestModel(svc)
	m = typeText(t, m, "cannot access VPN")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	require.Equal(t, domain.StateSubmittingFeedback, m.snap.State)
	m = settle(t, m, cmd)

	require.Equal(t, domain.StateIdle, m.snap.State)
	require.Empty(t, m.input.Value())
	require.Equal(t, "Feedback recorded: Thanks", m.notice)
	require.Len(t, svc.feedback, 1)
	require.Equal(t, domain.FeedbackRecord{Text: "cannot access VPN", Prediction: "Access", TrueLabel: "Access"}, svc.feedback[0])
}

func TestRejectAndPickLabel(t *testing.T) {
	svc := &fakeService{}
	m := newTestModel(svc)
	m = typeText(t, m, "cannot access VPN")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.Equal(t, domain.StateAwaitingCorrection, m.snap.State)
	require.Empty(t, svc.feedback)

	// Default order: Access, Administrative rights, HR Support, Hardware.
	for i := 0; i < 3; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	require.Contains(t, m.View(), "> Hardware")

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	require.Equal(t, domain.StateIdle, m.snap.State)
	require.Len(t, svc.feedback, 1)
	require.Equal(t, "Hardware", svc.feedback[0].TrueLabel)
}

func TestCorrectionFailureStaysInList(t *testing.T) {
	svc := &fakeService{feedbackErr: errors.New("feedback returned status 500")}
	m := newTestModel(svc)
	m = typeText(t, m, "cannot access VPN")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	require.Equal(t, domain.StateAwaitingCorrection, m.snap.State)
	require.Contains(t, m.View(), "feedback returned status 500")
}

func TestLateResultIsDropped(t *testing.T) {
	m := newTestModel(&fakeService{})
	m = typeText(t, m, "cannot access VPN")
	m, oldCmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	// Start over before the first answer arrives.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, domain.StateIdle, m.snap.State)
	m = typeText(t, m, "disk full")
	m, newCmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, newCmd)
	require.Equal(t, "Storage", m.snap.Prediction)

	m = settle(t, m, oldCmd)
	require.Equal(t, "Storage", m.snap.Prediction)
	require.Equal(t, "disk full", m.snap.Text)
}

func TestPredictFailureShowsErrorAndAllowsRetry(t *testing.T) {
	m := newTestModel(&fakeService{})
	m = typeText(t, m, "boom")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	require.Equal(t, domain.StateFailed, m.snap.State)
	require.Contains(t, m.View(), "Error: connection refused")

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, domain.StateRequesting, m.snap.State)
	m = settle(t, m, cmd)
	require.Equal(t, domain.StateFailed, m.snap.State)
}

func TestKeysIgnoredWhileRequesting(t *testing.T) {
	m := newTestModel(&fakeService{})
	m = typeText(t, m, "cannot access VPN")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Equal(t, domain.StateRequesting, m.snap.State)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}
