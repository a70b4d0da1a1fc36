package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"agenticos/cmd/agentic/ui"
	"agenticos/internal/generation"
	"agenticos/internal/store"
	"agenticos/internal/types"
)

// shellCmd starts the interactive shell
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell (default)",
	Long: `Type a request and press Enter to generate an app. Each app is saved to
history and exported to .agentic/apps/.

Keys:
  Enter   generate (a new request stops the one in progress)
  Esc     stop the current generation
  Tab     cycle the agent type
  Ctrl+C  quit

Commands:
  /agent <app|utility|widget|game|info>
  /clear
  /quit`,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	m := newShellModel(a.orch, a.db.History(), appsDir(a.ws), ui.DefaultStyles())
	_, err = tea.NewProgram(m).Run()
	return err
}

// generator is the part of the orchestrator the shell drives.
type generator interface {
	Run(ctx context.Context, req types.GenerationRequest) (*generation.Result, error)
}

// generationDoneMsg reports a finished generation.
type generationDoneMsg struct {
	id       uint64
	req      types.GenerationRequest
	res      *generation.Result
	err      error
	recordID string
	exported string
	elapsed  time.Duration
}

type shellModel struct {
	gen     generator
	history *store.History
	outDir  string
	styles  ui.Styles

	session *generation.Session
	current uint64
	busy    bool
	started time.Time

	input   textinput.Model
	spinner spinner.Model
	agent   types.AgentType
	lines   []string
	width   int
	height  int
}

func newShellModel(gen generator, history *store.History, outDir string, styles ui.Styles) shellModel {
	ti := textinput.New()
	ti.Placeholder = "Describe an app... (Enter to generate, Esc to stop, Tab to switch agent)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return shellModel{
		gen:     gen,
		history: history,
		outDir:  outDir,
		styles:  styles,
		session: &generation.Session{},
		input:   ti,
		spinner: sp,
		agent:   types.AgentApp,
		width:   80,
		height:  24,
	}
}

func (m shellModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.session.Cancel()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.busy && m.session.Cancel() {
				m.lines = append(m.lines, m.styles.Muted.Render("Stopping..."))
			}
			return m, nil
		case tea.KeyTab:
			m.agent = nextAgent(m.agent)
			return m, nil
		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if value == "" {
				return m, nil
			}
			if strings.HasPrefix(value, "/") {
				return m.command(value)
			}
			var cmd tea.Cmd
			m, cmd = m.submit(value)
			return m, tea.Batch(cmd, m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case generationDoneMsg:
		return m.finish(msg), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a generation for text, stopping any generation in progress.
func (m shellModel) submit(text string) (shellModel, tea.Cmd) {
	ctx, id := m.session.Begin(context.Background())
	m.current = id
	m.busy = true
	m.started = time.Now()
	m.lines = append(m.lines, m.styles.Prompt.Render("> ")+text+" "+m.styles.Badge.Render(m.agent.Label()))

	req := types.GenerationRequest{Prompt: text, Agent: m.agent}
	gen, history, outDir, session := m.gen, m.history, m.outDir, m.session
	return m, func() tea.Msg {
		defer session.End(id)
		if history != nil {
			req.Context = history.ContextFor(ctx)
		}
		start := time.Now()
		res, err := gen.Run(ctx, req)
		done := generationDoneMsg{id: id, req: req, res: res, err: err, elapsed: time.Since(start)}
		if err != nil {
			return done
		}
		if history != nil {
			// The app is kept even if a newer request superseded this one.
			done.recordID = saveResult(context.Background(), history, req, res).ID
		}
		if outDir != "" {
			path := filepath.Join(outDir, slugify(res.Artifact.Name)+".html")
			if err := exportDocument(path, res.Artifact); err == nil {
				done.exported = path
			}
		}
		return done
	}
}

func (m shellModel) finish(msg generationDoneMsg) shellModel {
	// A superseded generation was cancelled by the request that replaced it.
	if msg.id != m.current {
		return m
	}
	m.busy = false

	if msg.err != nil {
		style := m.styles.Error
		if generation.KindOf(msg.err) == generation.KindCancelled {
			style = m.styles.Warning
		}
		m.lines = append(m.lines, style.Render(userMessage(msg.err)))
		return m
	}
	summary := summaryMarkdown(msg.res, msg.recordID, msg.exported)
	m.lines = append(m.lines, strings.TrimRight(ui.RenderMarkdown(summary, m.width-4, m.styles.Theme), "\n"))
	m.lines = append(m.lines, m.styles.Muted.Render(fmt.Sprintf("done in %s", msg.elapsed.Round(100*time.Millisecond))))
	return m
}

func (m shellModel) command(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		m.session.Cancel()
		return m, tea.Quit
	case "/clear":
		m.lines = nil
	case "/agent":
		if len(fields) < 2 {
			m.lines = append(m.lines, m.styles.Muted.Render("agent: "+m.agent.Label()))
			break
		}
		agent, err := types.ParseAgentType(fields[1])
		if err != nil {
			m.lines = append(m.lines, m.styles.Error.Render(err.Error()))
			break
		}
		m.agent = agent
	default:
		m.lines = append(m.lines, m.styles.Error.Render("unknown command "+fields[0]))
	}
	return m, nil
}

func nextAgent(a types.AgentType) types.AgentType {
	for i, candidate := range types.AllAgents {
		if candidate == a {
			return types.AllAgents[(i+1)%len(types.AllAgents)]
		}
	}
	return types.AgentApp
}

func (m shellModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("agentic"))
	b.WriteString(" ")
	b.WriteString(m.styles.Badge.Render(m.agent.Label()))
	b.WriteString("\n\n")

	// Keep the transcript tail that fits above the input.
	transcript := strings.Split(strings.Join(m.lines, "\n"), "\n")
	if room := m.height - 7; room > 0 && len(transcript) > room {
		transcript = transcript[len(transcript)-room:]
	}
	if len(m.lines) > 0 {
		b.WriteString(strings.Join(transcript, "\n"))
		b.WriteString("\n\n")
	}

	if m.busy {
		b.WriteString(m.spinner.View())
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" generating... %s (Esc to stop)", time.Since(m.started).Round(time.Second))))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render("Enter generate · Esc stop · Tab agent · Ctrl+C quit"))
	return b.String()
}
