// Package review is an interactive console for resolving plan approval
// and run confirmation gates.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	wsclient "github.com/okvist/foreman/clients/ws"
	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/run"
)

type mode int

const (
	modeWaiting mode = iota
	modeReviewing
	modeFeedback
)

// Model is the root bubbletea model for the review console.
type Model struct {
	client *wsclient.Client

	mode    mode
	queue   []GateMsg
	current *GateMsg

	viewport viewport.Model
	feedback textarea.Model
	spin     spinner.Model

	width   int
	height  int
	status  string
	lastErr error
}

// NewModel creates the review console model.
func NewModel(client *wsclient.Client) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ta := textarea.New()
	ta.Placeholder = "What should change?"
	ta.SetHeight(4)

	return Model{
		client:   client,
		mode:     modeWaiting,
		viewport: viewport.New(80, 20),
		feedback: ta,
		spin:     sp,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.feedback.SetWidth(msg.Width - 4)
		if m.current != nil {
			m.viewport.SetContent(m.renderGate(*m.current))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case GateMsg:
		m.queue = append(m.queue, msg)
		if m.current == nil {
			return m.nextGate()
		}
		return m, nil

	case ResolvedMsg:
		// Drop gates resolved elsewhere.
		m.queue = dropToken(m.queue, msg.Token)
		if m.current != nil && m.current.Token == msg.Token {
			m.status = fmt.Sprintf("gate resolved elsewhere (%s)", msg.Outcome)
			m.current = nil
			m.mode = modeWaiting
			return m.nextGate()
		}
		return m, nil

	case DisconnectedMsg:
		m.lastErr = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.mode == modeFeedback {
		var cmd tea.Cmd
		m.feedback, cmd = m.feedback.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeWaiting:
		if msg.String() == "q" {
			return m, tea.Quit
		}

	case modeReviewing:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "a":
			if m.current != nil && m.current.Kind == events.GateApproval {
				return m.resolve(run.OutcomeApprove, "")
			}
		case "c":
			if m.current != nil && m.current.Kind == events.GateConfirmation {
				return m.resolve(run.OutcomeConfirm, "")
			}
		case "r":
			m.mode = modeFeedback
			m.feedback.Reset()
			return m, m.feedback.Focus()
		}

	case modeFeedback:
		switch msg.Type {
		case tea.KeyEsc:
			m.mode = modeReviewing
			m.feedback.Blur()
			return m, nil
		case tea.KeyCtrlD:
			text := strings.TrimSpace(m.feedback.Value())
			if text == "" {
				m.status = "feedback must not be empty"
				return m, nil
			}
			m.feedback.Blur()
			return m.resolve(run.OutcomeReject, text)
		}
		var cmd tea.Cmd
		m.feedback, cmd = m.feedback.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) resolve(outcome, feedback string) (tea.Model, tea.Cmd) {
	if m.current == nil {
		return m, nil
	}
	if err := m.client.Decide(m.current.Token, outcome, feedback); err != nil {
		m.status = errorStyle.Render(fmt.Sprintf("decide: %v", err))
		return m, nil
	}
	m.status = fmt.Sprintf("%s sent for %s", outcome, m.current.RunID)
	m.current = nil
	m.mode = modeWaiting
	return m.nextGate()
}

func (m Model) nextGate() (tea.Model, tea.Cmd) {
	if len(m.queue) == 0 {
		return m, nil
	}
	gate := m.queue[0]
	m.queue = m.queue[1:]
	m.current = &gate
	m.mode = modeReviewing
	m.viewport.SetContent(m.renderGate(gate))
	m.viewport.GotoTop()
	return m, nil
}

func (m Model) renderGate(gate GateMsg) string {
	var b strings.Builder
	b.WriteString(renderMarkdown(gate.Body, m.viewport.Width))
	if gate.Delta != "" {
		b.WriteString("\n\n")
		b.WriteString(titleStyle.Render("Changes since last revision"))
		b.WriteString("\n")
		for _, line := range strings.Split(gate.Delta, "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				b.WriteString(deltaAddStyle.Render(line))
			case strings.HasPrefix(line, "-"):
				b.WriteString(deltaDelStyle.Render(line))
			default:
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) View() string {
	var b strings.Builder

	switch m.mode {
	case modeWaiting:
		b.WriteString(fmt.Sprintf("%s waiting for gates... (q to quit)\n", m.spin.View()))

	case modeReviewing:
		header := "Plan approval"
		help := "a approve · r request changes · q quit"
		if m.current.Kind == events.GateConfirmation {
			header = "Run confirmation"
			help = "c confirm · r reject with feedback · q quit"
		}
		title := fmt.Sprintf("%s · %s", header, m.current.RunID)
		if m.current.Revision > 1 {
			title += fmt.Sprintf(" · revision %d", m.current.Revision)
		}
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(gateBorderStyle.Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(help))
		b.WriteString("\n")

	case modeFeedback:
		b.WriteString(titleStyle.Render("Feedback"))
		b.WriteString("\n")
		b.WriteString(m.feedback.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("ctrl+d send · esc cancel"))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	if len(m.queue) > 0 {
		b.WriteString(statusStyle.Render(fmt.Sprintf("%d more gate(s) queued", len(m.queue))))
		b.WriteString("\n")
	}
	return b.String()
}

func dropToken(queue []GateMsg, token string) []GateMsg {
	out := queue[:0]
	for _, g := range queue {
		if g.Token != token {
			out = append(out, g)
		}
	}
	return out
}

// renderMarkdown renders markdown for the terminal, falling back to the
// raw content on error.
func renderMarkdown(content string, width int) string {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// Run connects to the gateway and drives the review console until the
// operator quits or the connection drops.
func Run(ctx context.Context, gatewayURL string) error {
	client, err := wsclient.Dial(ctx, gatewayURL)
	if err != nil {
		return err
	}
	defer client.Close()

	p := tea.NewProgram(NewModel(client), tea.WithAltScreen())

	go func() {
		for {
			frame, err := client.ReadFrame()
			if err != nil {
				p.Send(DisconnectedMsg{Err: err})
				return
			}
			if msg := translateFrame(frame); msg != nil {
				p.Send(msg)
			}
		}
	}()

	_, err = p.Run()
	return err
}
