package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfqa/internal/domain"
	"pdfqa/internal/service"
)

// AnswerPort is the TUI-facing subset of the retrieval pipeline.
type AnswerPort interface {
	Answer(ctx context.Context, query string, k int) (domain.Answer, error)
}

// Options controls how many matches are fetched and how much of each is shown.
type Options struct {
	TopK            int
	MaxSnippetChars int
	DocsDir         string
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   AnswerPort
	opts      Options
	info      service.Status
	input     textinput.Model
	viewport  viewport.Model
	answer    *domain.Answer
	status    string
	cursor    int
	ready     bool
	pending   bool
	lastQuery string
}

// answerMsg carries the result of a query issued by askCmd.
type answerMsg struct {
	query  string
	answer domain.Answer
	err    error
}

// New creates a new TUI model instance.
func New(svc AnswerPort, info service.Status, opts Options) Model {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxSnippetChars <= 0 {
		opts.MaxSnippetChars = 1000
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Ready. Type a question."
	if !info.Available {
		status = "No documents indexed."
	}
	return Model{service: svc, opts: opts, info: info, input: ti, viewport: vp, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + corpus line
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case answerMsg:
		m.pending = false
		m = m.apply(msg)
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.pending {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.pending = true
				m.status = "Searching..."
				return m, m.askCmd(q)
			}
		case "down":
			if m.matchCount() > 0 {
				m.cursor = (m.cursor + 1) % m.matchCount()
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if m.matchCount() > 0 {
				m.cursor = (m.cursor - 1 + m.matchCount()) % m.matchCount()
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// askCmd runs the query off the update loop and reports back with an answerMsg.
func (m Model) askCmd(q string) tea.Cmd {
	svc, k := m.service, m.opts.TopK
	return func() tea.Msg {
		ans, err := svc.Answer(context.Background(), q, k)
		return answerMsg{query: q, answer: ans, err: err}
	}
}

func (m Model) apply(msg answerMsg) Model {
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
		m.answer = nil
		return m
	}
	q, ans := msg.query, msg.answer
	m.answer = &ans
	m.cursor = 0
	m.lastQuery = q
	switch {
	case !ans.Available:
		m.status = "No documents indexed."
	case len(ans.Results) == 0:
		m.status = fmt.Sprintf("No matches for %q", q)
	default:
		m.status = fmt.Sprintf("%d matches for %q (up/down to browse)", len(ans.Results), q)
	}
	return m
}

func (m Model) matchCount() int {
	if m.answer == nil {
		return 0
	}
	return len(m.answer.Results)
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF Q&A")
	corpus := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.corpusLine())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + corpus + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) corpusLine() string {
	if !m.info.Available {
		return "index unavailable"
	}
	origin := "built"
	if m.info.FromDisk {
		origin = "loaded from " + m.info.IndexDir
	}
	return fmt.Sprintf("%d documents, %d chunks (%s)", m.info.Documents, m.info.Chunks, origin)
}

func (m Model) renderCurrentResult() string {
	if !m.info.Available || (m.answer != nil && !m.answer.Available) {
		msg := "No documents indexed."
		if m.opts.DocsDir != "" {
			msg += fmt.Sprintf(" Add PDF files to %s and restart.", m.opts.DocsDir)
		}
		return msg
	}
	if m.answer == nil {
		return "No results yet."
	}
	if len(m.answer.Results) == 0 {
		return "No results found for your question."
	}
	r := m.answer.Results[m.cursor]
	title := fmt.Sprintf("Match %d/%d  distance=%.3f", m.cursor+1, len(m.answer.Results), r.Distance)
	source := filepath.Base(r.Chunk.Source)
	if r.Chunk.Page > 0 {
		source += fmt.Sprintf("  page %d", r.Chunk.Page)
	}
	body := highlightBestSentence(truncate(r.Chunk.Text, m.opts.MaxSnippetChars), m.lastQuery)
	return title + "\n" + sourceStyle.Render(source) + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	locs := sentenceRe.FindAllStringIndex(text, -1)
	sentences := make([]string, 0, len(locs)+1)
	end := 0
	for _, loc := range locs {
		sentences = append(sentences, text[loc[0]:loc[1]])
		end = loc[1]
	}
	// snippets are often cut mid-sentence
	if tail := text[end:]; strings.TrimSpace(tail) != "" {
		sentences = append(sentences, tail)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(trimAll(sentences), " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx && bestScore > 0 {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
