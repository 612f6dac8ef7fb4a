// Package tui is an interactive terminal front end for one classification
// session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"ticketbot/internal/domain"
	"ticketbot/internal/session"
)

// resultMsg carries a finished request back into the update loop, where it
// is applied or dropped as stale.
type resultMsg struct {
	res session.Result
}

type Model struct {
	ctx  context.Context
	ctrl *session.Controller

	input   textarea.Model
	spinner spinner.Model
	snap    session.Session
	cursor  int
	notice  string
	width   int
}

func New(ctx context.Context, ctrl *session.Controller) Model {
	ta := textarea.New()
	ta.Placeholder = "Describe the IT issue... (Enter to classify, Ctrl+J for newline)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(4)
	ta.KeyMap.InsertNewline.SetKeys("ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		input:   ta,
		spinner: sp,
		snap:    ctrl.Snapshot(),
	}
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, ctrl *session.Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) execute(req session.Request) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return resultMsg{res: ctrl.Execute(ctx, req)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 4 {
			m.input.SetWidth(msg.Width - 4)
		}
		return m, nil

	case resultMsg:
		snap, applied := m.ctrl.Apply(m.ctx, msg.res)
		if !applied {
			return m, nil
		}
		m.snap = snap
		if snap.State == domain.StateIdle {
			m.input.Reset()
			m.input.Focus()
			m.notice = ackNotice(snap)
		}
		if snap.State == domain.StateFailed {
			m.input.Focus()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.snap.State.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.snap.State {
	case domain.StateIdle, domain.StateFailed:
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
		if msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case domain.StateRequesting, domain.StateSubmittingFeedback:
		if msg.Type == tea.KeyEsc {
			return m.startOver("Request abandoned.")
		}
		return m, nil

	case domain.StatePredicted:
		switch msg.String() {
		case "y", "Y":
			req, err := m.ctrl.BeginConfirm()
			return m.dispatch(req, err)
		case "n", "N":
			snap, err := m.ctrl.RejectPrediction()
			m.snap = snap
			m.cursor = 0
			if err != nil {
				m.notice = err.Error()
			}
			return m, nil
		case "esc":
			return m.startOver("")
		}
		return m, nil

	case domain.StateAwaitingCorrection:
		n := m.ctrl.Registry().Len()
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < n-1 {
				m.cursor++
			}
		case "enter":
			label := m.ctrl.Registry().Labels()[m.cursor]
			req, err := m.ctrl.BeginCorrection(label)
			return m.dispatch(req, err)
		case "esc":
			return m.startOver("")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	req, err := m.ctrl.BeginPrediction(strings.TrimSpace(m.input.Value()))
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.input.Blur()
	m.notice = ""
	m.snap = m.ctrl.Snapshot()
	return m, tea.Batch(m.spinner.Tick, m.execute(req))
}

func (m Model) dispatch(req session.Request, err error) (tea.Model, tea.Cmd) {
	m.snap = m.ctrl.Snapshot()
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.notice = ""
	return m, tea.Batch(m.spinner.Tick, m.execute(req))
}

func (m Model) startOver(notice string) (tea.Model, tea.Cmd) {
	m.snap = m.ctrl.Reset()
	m.input.Reset()
	m.input.Focus()
	m.cursor = 0
	m.notice = notice
	return m, nil
}

func ackNotice(snap session.Session) string {
	if snap.Acknowledgement == "" {
		return "Feedback recorded."
	}
	return "Feedback recorded: " + snap.Acknowledgement
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TicketBot · IT issue classifier"))
	b.WriteString("\n")

	switch m.snap.State {
	case domain.StateIdle, domain.StateFailed:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if m.snap.State == domain.StateFailed {
			b.WriteString(errorStyle.Render(m.snap.Prediction))
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("enter classify · ctrl+j newline · esc quit"))

	case domain.StateRequesting:
		fmt.Fprintf(&b, "%s Classifying...\n", m.spinner.View())
		b.WriteString(dimStyle.Render(m.snap.Text))
		b.WriteString(helpStyle.Render("\nesc start over"))

	case domain.StateSubmittingFeedback:
		fmt.Fprintf(&b, "%s Sending feedback...\n", m.spinner.View())
		b.WriteString(helpStyle.Render("esc start over"))

	case domain.StatePredicted:
		b.WriteString(dimStyle.Render(m.snap.Text))
		b.WriteString("\n\n")
		b.WriteString(predictionStyle.Render(m.snap.Prediction))
		b.WriteString("\n")
		if m.snap.Error != "" {
			b.WriteString(errorStyle.Render("Feedback failed: " + m.snap.Error))
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("Is this correct?  y yes · n no · esc start over"))

	case domain.StateAwaitingCorrection:
		fmt.Fprintf(&b, "Predicted %s. Pick the correct department:\n\n", m.snap.Prediction)
		for i, l := range m.ctrl.Registry().Labels() {
			if i == m.cursor {
				b.WriteString(cursorStyle.Render("> " + l))
			} else {
				b.WriteString("  " + l)
			}
			b.WriteString("\n")
		}
		if m.snap.Error != "" {
			b.WriteString(errorStyle.Render(m.snap.Error))
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("↑/↓ move · enter submit · esc start over"))
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")
	return b.String()
}
