package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lexiqai/consent-recorder/internal/recorder"
	"github.com/lexiqai/consent-recorder/internal/sentiment"
)

// TUI message types
type stateMsg recorder.State
type transcriptMsg string
type notificationMsg recorder.Notification
type analysisMsg sentiment.State
type savedMsg struct {
	Path string
	Size int
	Err  error
}
type actionDoneMsg struct{ Err error }

// controls is the part of the controller the TUI drives
type controls interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type tuiModel struct {
	ctrl       controls
	state      recorder.State
	busy       bool
	transcript string
	notice     *recorder.Notification
	analysis   sentiment.State
	saved      *savedMsg
	width      int
	quitting   bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	stopStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sentiColors = map[string]lipgloss.Color{
		sentiment.Positive: "35",
		sentiment.Negative: "196",
		sentiment.Neutral:  "245",
		sentiment.Mixed:    "214",
	}
)

func newTUIModel(ctrl controls) tuiModel {
	return tuiModel{ctrl: ctrl}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "r", " ", "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.toggle()
		}

	case actionDoneMsg:
		m.busy = false

	case stateMsg:
		m.state = recorder.State(msg)

	case transcriptMsg:
		m.transcript = string(msg)

	case notificationMsg:
		n := recorder.Notification(msg)
		m.notice = &n

	case analysisMsg:
		m.analysis = sentiment.State(msg)

	case savedMsg:
		m.saved = &msg
	}
	return m, nil
}

// toggle starts or stops recording off the UI loop
func (m tuiModel) toggle() tea.Cmd {
	ctrl := m.ctrl
	recording := m.state == recorder.StateRecording
	return func() tea.Msg {
		ctx := context.Background()
		if recording {
			return actionDoneMsg{Err: ctrl.Stop(ctx)}
		}
		return actionDoneMsg{Err: ctrl.Start(ctx)}
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Consent Recorder"))
	b.WriteString("\n\n")

	switch m.state {
	case recorder.StateRecording:
		b.WriteString(recStyle.Render("● REC"))
	case recorder.StateNonConsentStopped:
		b.WriteString(stopStyle.Render("■ stopped: no consent"))
	default:
		b.WriteString(idleStyle.Render("○ idle"))
	}
	b.WriteString("\n\n")

	if m.notice != nil {
		style := infoStyle
		if m.notice.Kind == recorder.KindError {
			style = errorStyle
		}
		b.WriteString(style.Render(m.notice.Message))
		b.WriteString("\n\n")
	}

	transcript := m.transcript
	if transcript == "" {
		transcript = dimStyle.Render("(no speech yet)")
	}
	box := boxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(transcript))
	b.WriteString("\n")

	if m.saved != nil {
		if m.saved.Err != nil {
			b.WriteString(errorStyle.Render("Failed to save recording: " + m.saved.Err.Error()))
		} else {
			b.WriteString(dimStyle.Render(fmt.Sprintf("Saved %s (%d bytes)", m.saved.Path, m.saved.Size)))
		}
		b.WriteString("\n")
	}

	b.WriteString(renderAnalysis(m.analysis))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r: start/stop  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func renderAnalysis(s sentiment.State) string {
	switch {
	case s.InFlight:
		return dimStyle.Render("Analyzing...") + "\n"
	case s.Err != "":
		return errorStyle.Render(s.Err) + "\n"
	case s.Result == nil:
		return ""
	}

	var b strings.Builder
	overall := s.Result.Sentiment.Overall
	color, ok := sentiColors[overall]
	if !ok {
		color = "245"
	}
	b.WriteString("Sentiment: ")
	b.WriteString(lipgloss.NewStyle().Foreground(color).Bold(true).Render(overall))
	b.WriteString("\n")

	labels := make([]string, 0, len(s.Result.Sentiment.Scores))
	for label := range s.Result.Sentiment.Scores {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		b.WriteString(fmt.Sprintf("  %-9s %5.1f%%\n", label, s.Result.Sentiment.Scores[label]*100))
	}

	if len(s.Result.KeyPhrases) > 0 {
		phrases := make([]string, 0, len(s.Result.KeyPhrases))
		for _, p := range s.Result.KeyPhrases {
			phrases = append(phrases, p.Text)
		}
		b.WriteString("Key phrases: " + strings.Join(phrases, ", ") + "\n")
	}
	if len(s.Result.Entities) > 0 {
		entities := make([]string, 0, len(s.Result.Entities))
		for _, e := range s.Result.Entities {
			entities = append(entities, fmt.Sprintf("%s (%s)", e.Text, e.Type))
		}
		b.WriteString("Entities: " + strings.Join(entities, ", ") + "\n")
	}
	return b.String()
}
