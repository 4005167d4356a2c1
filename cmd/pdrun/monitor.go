package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	dspOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <patch.pd>",
	Short: "Watch a patch's events and send messages interactively",
	Long: `Opens the patch and shows incoming events in a terminal UI with a prompt for
sending messages ("receiver message..."). When stdout is not a terminal it
falls back to line output like "run".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetStringSlice("listen")
		tui := term.IsTerminal(int(os.Stdout.Fd()))

		log := app.log
		if logFile, _ := cmd.Flags().GetString("log-file"); tui && logFile == "" {
			// stderr output would tear the alternate screen
			log = zap.NewNop()
		}

		s, err := openSession(app.cfg, log, app.metrics, args[0], listen)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if !tui {
			return runLines(ctx, s, cmd.OutOrStdout())
		}
		return runMonitor(ctx, s, args[0])
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringSliceP("listen", "l", nil, "receiver names to subscribe to (repeatable)")
}

const maxEvents = 500

type monitorModel struct {
	ctx    context.Context
	err    error
	s      *session
	patch  string
	events []event
	input  textinput.Model
	height int
	width  int
	dsp    bool
}

type eventMsg event

type sendResultMsg struct {
	err error
}

type dspMsg struct {
	err error
	on  bool
}

func newMonitorModel(ctx context.Context, s *session, patch string) *monitorModel {
	ti := textinput.New()
	ti.Placeholder = "receiver message..."
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()
	return &monitorModel{
		ctx:    ctx,
		s:      s,
		patch:  patch,
		input:  ti,
		height: 24,
		dsp:    s.pd.AudioActive(),
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitEvent)
}

func (m *monitorModel) waitEvent() tea.Msg {
	select {
	case e := <-m.s.events:
		return eventMsg(e)
	case <-m.ctx.Done():
		return tea.Quit()
	}
}

func (m *monitorModel) sendLine(line string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{err: m.s.do(m.ctx, func() error { return m.s.sendLine(line) })}
	}
}

func (m *monitorModel) toggleDSP() tea.Cmd {
	on := !m.dsp
	return func() tea.Msg {
		err := m.s.do(m.ctx, func() error { return m.s.pd.ActivateAudio(on) })
		return dspMsg{on: on, err: err}
	}
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "ctrl+d":
			return m, m.toggleDSP()

		case "ctrl+l":
			m.events = nil
			return m, nil

		case "esc":
			m.input.SetValue("")
			m.err = nil
			return m, nil

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.sendLine(line)
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-4)

	case eventMsg:
		m.events = append(m.events, event(msg))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, m.waitEvent

	case sendResultMsg:
		m.err = msg.err

	case dspMsg:
		m.err = msg.err
		if msg.err == nil {
			m.dsp = msg.on
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pdrun"))
	b.WriteString(" ")
	b.WriteString(m.patch)
	b.WriteString(fmt.Sprintf("  instance %d  ", m.s.pd.InstanceNumber()))
	if m.dsp {
		b.WriteString(dspOnStyle.Render("DSP on"))
	} else {
		b.WriteString(helpStyle.Render("DSP off"))
	}
	b.WriteString("\n\n")

	// title, blank, prompt, status and help take six lines
	rows := max(1, m.height-6)
	start := max(0, len(m.events)-rows)
	for _, e := range m.events[start:] {
		b.WriteString(helpStyle.Render(e.at.Format("15:04:05.000")))
		b.WriteString(" ")
		b.WriteString(categoryStyle.Render(fmt.Sprintf("%-14s", e.category)))
		if e.source != "" {
			b.WriteString(sourceStyle.Render(e.source))
			b.WriteString(": ")
		}
		b.WriteString(e.text)
		b.WriteString("\n")
	}
	for i := len(m.events) - start; i < rows; i++ {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • ctrl+d toggle DSP • ctrl+l clear • esc reset • ctrl+c quit"))
	return b.String()
}

func runMonitor(ctx context.Context, s *session, patch string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() { loopErr <- s.loop(ctx) }()

	p := tea.NewProgram(newMonitorModel(ctx, s, patch), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	interrupted := ctx.Err() != nil
	cancel()
	if lerr := <-loopErr; lerr != nil {
		return lerr
	}
	if err != nil && !interrupted {
		return err
	}
	return nil
}
