package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/budget"
	"github.com/tiger/pitchroom/internal/runtime/capture"
	"github.com/tiger/pitchroom/internal/runtime/coaching"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/runtime/scoring"
	"github.com/tiger/pitchroom/internal/runtime/session"
)

// interruptEvery is how many typed words pass between interruption pre-checks.
const interruptEvery = 40

type (
	replyMsg struct {
		reply session.Reply
		text  string
		err   error
	}
	advanceMsg struct {
		result session.AdvanceResult
		err    error
	}
	feedbackMsg struct {
		text string
		err  error
	}
	concludeMsg struct {
		outcome coaching.Outcome
		err     error
	}
	interruptMsg struct {
		decision scoring.InterruptDecision
	}
	interimMsg struct {
		text   string
		stream *capture.Stream
	}
	transcriptMsg struct {
		text string
		ok   bool
		err  error
	}
)

type practiceDeps struct {
	machine     *session.Machine
	transcriber contracts.Transcriber
	gate        *capture.Gate
	deckTitle   string
	play        func([]byte)
	speak       bool
}

// note is a line shown in the timeline but never recorded in the ledger.
type note struct {
	after int
	who   string
	text  string
}

type theme struct {
	header    lipgloss.Style
	founder   lipgloss.Style
	investor  lipgloss.Style
	scripted  lipgloss.Style
	aside     lipgloss.Style
	badges    lipgloss.Style
	warning   lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	help      lipgloss.Style
	panel     lipgloss.Style
}

func newTheme() theme {
	mint := lipgloss.Color("#05ffa1")
	blue := lipgloss.Color("#7aa2f7")
	pink := lipgloss.Color("#ff6ac1")
	amber := lipgloss.Color("#ffd166")
	muted := lipgloss.Color("#7f849c")
	return theme{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0def4")).Background(lipgloss.Color("#3b3f5c")).Padding(0, 1),
		founder:   lipgloss.NewStyle().Foreground(mint).Bold(true),
		investor:  lipgloss.NewStyle().Foreground(blue).Bold(true),
		scripted:  lipgloss.NewStyle().Foreground(blue).Italic(true),
		aside:     lipgloss.NewStyle().Foreground(amber),
		badges:    lipgloss.NewStyle().Foreground(amber),
		warning:   lipgloss.NewStyle().Foreground(pink),
		status:    lipgloss.NewStyle().Foreground(blue),
		errStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:      lipgloss.NewStyle().Foreground(muted),
		panel:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
	}
}

type practiceModel struct {
	ctx  context.Context
	deps practiceDeps

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	styles   theme

	width  int
	height int

	busy       bool
	busyLabel  string
	status     string
	statusErr  bool
	notes      []note
	nextCheck  int
	checking   bool
	concluding bool

	outcome           *coaching.Outcome
	concludedSnapshot session.Snapshot
	concludeErr       error
}

func newPracticeModel(ctx context.Context, deps practiceDeps) practiceModel {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Talk through the slide. ctrl+n next slide, ctrl+f coaching."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	m := practiceModel{
		ctx:       ctx,
		deps:      deps,
		input:     input,
		timeline:  timeline,
		spinner:   sp,
		styles:    newTheme(),
		nextCheck: interruptEvery,
		status:    "presenting slide 1",
	}
	if intro := strings.TrimSpace(deps.machine.Intro()); intro != "" {
		m.notes = append(m.notes, note{who: deps.machine.Persona().Name, text: intro})
	}
	return m
}

func (m practiceModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.speakCmd(m.deps.machine.Intro()))
}

func (m practiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		cmd, quit := m.handleKey(msg)
		if quit {
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)
	case replyMsg:
		m.idle()
		cmds = append(cmds, m.onReply(msg))
	case advanceMsg:
		m.idle()
		cmds = append(cmds, m.onAdvance(msg))
	case feedbackMsg:
		m.idle()
		if msg.err != nil {
			m.setError("coaching unavailable", msg.err)
			break
		}
		m.addNote("Coach", msg.text)
		m.setStatus("coaching received")
	case interruptMsg:
		m.checking = false
		if msg.decision.Interrupt {
			m.addNote(m.deps.machine.Persona().Name+" (interjects)", msg.decision.Question)
			cmds = append(cmds, m.speakCmd(msg.decision.Question))
		}
	case interimMsg:
		m.setStatus("heard: " + msg.text)
		cmds = append(cmds, waitTranscript(msg.stream))
	case transcriptMsg:
		cmds = append(cmds, m.onTranscript(msg))
	case concludeMsg:
		m.idle()
		m.concluding = false
		if msg.err != nil {
			m.concludeErr = msg.err
			m.setError("results failed, press enter to retry", msg.err)
			break
		}
		outcome := msg.outcome
		m.outcome = &outcome
		m.concludedSnapshot = m.deps.machine.Snapshot()
		m.concludeErr = nil
		m.setStatus("results ready · ctrl+r to try again · esc to quit")
	}

	if !m.busy && m.outcome == nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *practiceModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return nil, true
	}
	if m.busy {
		if msg.Type == tea.KeyEnter {
			m.setStatus("waiting for the investor")
		}
		return nil, false
	}
	snap := m.deps.machine.Snapshot()

	switch msg.String() {
	case "ctrl+n":
		if snap.Phase != pitch.PhasePresenting {
			return nil, false
		}
		label := "next slide"
		if snap.OnLastSlide() {
			label = "starting Q&A"
		}
		return m.start(label, m.advanceCmd()), false
	case "ctrl+p":
		res, err := m.deps.machine.Previous()
		if err != nil {
			m.setError("can't go back", err)
			return nil, false
		}
		m.setStatus(fmt.Sprintf("back to slide %d", res.SlideIndex+1))
		return nil, false
	case "ctrl+e":
		if _, err := m.deps.machine.EndQA(); err != nil {
			m.setError("end Q&A only works during Q&A", err)
			return nil, false
		}
		return m.conclude(), false
	case "ctrl+f":
		return m.start("the investor is stepping out of character", m.feedbackCmd()), false
	case "ctrl+r":
		m.deps.machine.Reset(true)
		m.notes = nil
		m.outcome = nil
		m.concludeErr = nil
		m.nextCheck = interruptEvery
		m.input.Reset()
		m.input.Focus()
		m.setStatus(fmt.Sprintf("attempt #%d: presenting slide 1", m.deps.machine.Snapshot().Attempt))
		return nil, false
	case "enter":
		if snap.Phase == pitch.PhaseDone {
			if m.outcome == nil && !m.concluding {
				return m.conclude(), false
			}
			return nil, false
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return nil, false
		}
		if m.checking {
			m.setStatus("hold on, the investor is listening")
			return nil, false
		}
		m.input.Reset()
		m.nextCheck = interruptEvery
		if path, ok := strings.CutPrefix(text, "/audio "); ok {
			return m.transcribe(strings.TrimSpace(path)), false
		}
		return m.submit(text), false
	}

	if snap.Phase == pitch.PhasePresenting {
		if words := budget.WordCount(m.input.Value()); words >= m.nextCheck {
			m.nextCheck = words + interruptEvery
			return m.interruptCmd(m.input.Value()), false
		}
	}
	return nil, false
}

func (m *practiceModel) onReply(msg replyMsg) tea.Cmd {
	if msg.err != nil {
		if errors.Is(msg.err, session.ErrTurnInFlight) {
			if strings.TrimSpace(m.input.Value()) == "" {
				m.input.SetValue(msg.text)
			}
			m.setStatus("the investor is still answering")
			return nil
		}
		m.setError("turn rejected", msg.err)
		return nil
	}
	r := msg.reply
	var cmds []tea.Cmd
	switch {
	case r.Discarded:
		m.setStatus("reply dropped after reset")
		return nil
	case r.Fallback:
		m.setError("the investor lost the thread, try again", nil)
	default:
		m.setStatus(m.phaseStatus())
	}
	cmds = append(cmds, m.speakCmd(r.Text))
	if r.ShouldAutoAdvancePhase {
		cmds = append(cmds, m.speakCmd(r.Closing), m.conclude())
		return tea.Batch(cmds...)
	}
	if text, ok := m.deps.gate.TakeDeferred(); ok {
		cmds = append(cmds, m.submit(text))
	}
	return tea.Batch(cmds...)
}

func (m *practiceModel) onAdvance(msg advanceMsg) tea.Cmd {
	if msg.err != nil {
		m.setError("can't advance", msg.err)
		return nil
	}
	res := msg.result
	if res.Transition.To != pitch.PhaseQA {
		m.setStatus(fmt.Sprintf("presenting slide %d", res.SlideIndex+1))
		return nil
	}
	cmds := []tea.Cmd{m.speakCmd(res.Opener)}
	if res.QuestionErr != nil {
		m.setError("no first question, answer anyway or ask for one", res.QuestionErr)
	} else {
		m.setStatus(m.phaseStatus())
		cmds = append(cmds, m.speakCmd(res.Question))
	}
	return tea.Batch(cmds...)
}

func (m *practiceModel) onTranscript(msg transcriptMsg) tea.Cmd {
	if msg.err != nil {
		m.setError("transcription failed", msg.err)
		return nil
	}
	if !msg.ok {
		m.setStatus("no speech detected")
		return nil
	}
	switch m.deps.gate.Offer(msg.text) {
	case capture.Deliver:
		return m.submit(msg.text)
	case capture.Deferred:
		m.setStatus("answer held until the investor finishes")
	default:
		m.setStatus("answer discarded, the investor was still talking")
	}
	return nil
}

func (m *practiceModel) submit(text string) tea.Cmd {
	machine := m.deps.machine
	ctx := m.ctx
	return m.start("the investor is thinking", func() tea.Msg {
		reply, err := machine.SubmitUserTurn(ctx, text)
		return replyMsg{reply: reply, text: text, err: err}
	})
}

func (m *practiceModel) conclude() tea.Cmd {
	m.concluding = true
	machine := m.deps.machine
	ctx := m.ctx
	return m.start("preparing your results", func() tea.Msg {
		outcome, err := machine.Conclude(ctx)
		return concludeMsg{outcome: outcome, err: err}
	})
}

func (m *practiceModel) transcribe(path string) tea.Cmd {
	if m.deps.transcriber == nil {
		m.setError("speech-to-text is not configured (PITCHROOM_STT_DEEPGRAM_API_KEY)", nil)
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		m.setError("can't open recording", err)
		return nil
	}
	m.setStatus("transcribing " + path)
	src := capture.FromTranscriber(m.deps.transcriber, f, audioMIME(path))
	stream := capture.Start(m.ctx, func(ctx context.Context, interim func(string)) (string, error) {
		defer f.Close()
		return src(ctx, interim)
	})
	return waitTranscript(stream)
}

// waitTranscript delivers the next interim value, or the final result once
// the stream ends.
func waitTranscript(stream *capture.Stream) tea.Cmd {
	return func() tea.Msg {
		if text, ok := <-stream.Interim(); ok {
			return interimMsg{text: text, stream: stream}
		}
		final, ok := stream.Final()
		err := stream.Err()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return transcriptMsg{text: final, ok: ok, err: err}
	}
}

func (m *practiceModel) advanceCmd() tea.Cmd {
	machine := m.deps.machine
	ctx := m.ctx
	return func() tea.Msg {
		res, err := machine.Advance(ctx)
		return advanceMsg{result: res, err: err}
	}
}

func (m *practiceModel) feedbackCmd() tea.Cmd {
	machine := m.deps.machine
	ctx := m.ctx
	return func() tea.Msg {
		text, err := machine.RequestFeedback(ctx)
		return feedbackMsg{text: text, err: err}
	}
}

// interruptCmd holds the in-flight gate until its interruptMsg arrives, so
// Enter keeps the typed answer while it runs.
func (m *practiceModel) interruptCmd(words string) tea.Cmd {
	m.checking = true
	machine := m.deps.machine
	ctx := m.ctx
	return func() tea.Msg {
		return interruptMsg{decision: machine.CheckInterruption(ctx, words)}
	}
}

func (m practiceModel) speakCmd(text string) tea.Cmd {
	if !m.deps.speak || strings.TrimSpace(text) == "" {
		return nil
	}
	done := m.deps.machine.Speak(m.ctx, text, m.deps.play)
	return func() tea.Msg {
		<-done
		return nil
	}
}

// start marks the model busy and returns cmd with the spinner running.
func (m *practiceModel) start(label string, cmd tea.Cmd) tea.Cmd {
	m.busy = true
	m.busyLabel = label
	m.input.Blur()
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *practiceModel) idle() {
	m.busy = false
	m.busyLabel = ""
	if m.outcome == nil {
		m.input.Focus()
	}
}

func (m *practiceModel) addNote(who, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.notes = append(m.notes, note{after: len(m.deps.machine.Snapshot().Turns), who: who, text: text})
}

func (m *practiceModel) setStatus(text string) {
	m.status = text
	m.statusErr = false
}

func (m *practiceModel) setError(text string, err error) {
	if err != nil {
		text = fmt.Sprintf("%s: %v", text, err)
	}
	m.status = text
	m.statusErr = true
}

func (m practiceModel) phaseStatus() string {
	snap := m.deps.machine.Snapshot()
	switch snap.Phase {
	case pitch.PhaseQA:
		return fmt.Sprintf("Q&A: %d of %d answered", snap.Counters.QAExchangeCount, budget.MaxQAExchanges)
	case pitch.PhaseDone:
		return "session complete"
	default:
		return fmt.Sprintf("presenting slide %d", snap.SlideIndex+1)
	}
}

func (m *practiceModel) resize() {
	m.timeline.Width = max(20, m.width-2)
	m.timeline.Height = max(3, m.height-7)
	m.input.Width = max(10, m.width-6)
}

func (m *practiceModel) refresh() {
	if m.outcome != nil {
		m.timeline.SetContent(renderOutcome(*m.outcome, m.styles, m.timeline.Width))
		return
	}
	m.timeline.SetContent(m.renderTimeline())
	m.timeline.GotoBottom()
}

func (m practiceModel) renderTimeline() string {
	snap := m.deps.machine.Snapshot()
	name := m.deps.machine.Persona().Name
	width := max(20, m.timeline.Width-2)
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	notes := m.notes
	flush := func(upTo int) {
		for len(notes) > 0 && notes[0].after <= upTo {
			b.WriteString(m.styles.aside.Render(notes[0].who+": ") + wrap.Render(notes[0].text) + "\n\n")
			notes = notes[1:]
		}
	}
	lastSlide := -1
	for i, t := range snap.Turns {
		flush(i)
		if t.Phase == pitch.PhasePresenting && t.SlideAtTime != lastSlide {
			lastSlide = t.SlideAtTime
			b.WriteString(m.styles.help.Render(fmt.Sprintf("── slide %d ──", t.SlideAtTime+1)) + "\n")
		}
		switch {
		case t.Speaker == pitch.SpeakerUser:
			b.WriteString(m.styles.founder.Render("You: ") + wrap.Render(t.Text))
		case t.Scripted:
			b.WriteString(m.styles.investor.Render(name+": ") + m.styles.scripted.Render(t.Text))
		default:
			b.WriteString(m.styles.investor.Render(name+": ") + wrap.Render(t.Text))
		}
		b.WriteString("\n\n")
	}
	flush(len(snap.Turns))
	if snap.Phase == pitch.PhasePresenting && len(snap.Turns) == 0 {
		b.WriteString(m.styles.help.Render(snap.CurrentSlide.Context()) + "\n")
	}
	return b.String()
}

func (m practiceModel) View() string {
	snap := m.deps.machine.Snapshot()
	header := m.styles.header.Render(m.headerText(snap))

	var signal []string
	if snap.LiveFeedback != "" {
		signal = append(signal, m.styles.badges.Render(snap.LiveFeedback))
	}
	if snap.SlideWarning {
		signal = append(signal, m.styles.warning.Render("lots of back-and-forth on this slide, consider ctrl+n"))
	}
	signalLine := strings.Join(signal, "  ")

	status := m.styles.status.Render(m.status)
	if m.statusErr {
		status = m.styles.errStatus.Render(m.status)
	}
	if m.busy {
		status = m.spinner.View() + " " + m.styles.status.Render(m.busyLabel)
	}

	input := m.input.View()
	if m.outcome != nil {
		input = m.styles.help.Render("ctrl+r try again · esc quit")
	}
	footer := m.styles.help.Render("enter send · ctrl+n next · ctrl+p back · ctrl+e end Q&A · ctrl+f coaching · ctrl+r retry · esc quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.timeline.View(),
		signalLine,
		m.styles.panel.Width(max(10, m.width-4)).Render(input),
		status+"  "+footer,
	)
}

func (m practiceModel) headerText(snap session.Snapshot) string {
	parts := []string{m.deps.machine.Persona().Name}
	if m.deps.deckTitle != "" {
		parts = append(parts, m.deps.deckTitle)
	}
	switch snap.Phase {
	case pitch.PhasePresenting:
		parts = append(parts, fmt.Sprintf("slide %d/%d", snap.SlideIndex+1, snap.SlideCount))
	case pitch.PhaseQA:
		parts = append(parts, fmt.Sprintf("Q&A %d/%d", snap.Counters.QAExchangeCount, budget.MaxQAExchanges))
	case pitch.PhaseDone:
		parts = append(parts, "done")
	}
	parts = append(parts, fmt.Sprintf("attempt #%d", snap.Attempt), "mood: "+string(snap.Sentiment))
	return strings.Join(parts, " · ")
}

func renderOutcome(out coaching.Outcome, styles theme, width int) string {
	wrap := lipgloss.NewStyle().Width(max(20, width-2))
	var b strings.Builder
	sc := out.Scorecard
	b.WriteString(styles.investor.Render("Scorecard") + "\n")
	fmt.Fprintf(&b, "  Business quality  %3.0f  %s\n", sc.BusinessQuality.OverallScore, sc.BusinessQuality.OverallLabel)
	for _, d := range pitch.BusinessDimensions {
		fmt.Fprintf(&b, "    %-20s %3.0f\n", d.Label(), sc.BusinessQuality.Dimensions()[d])
	}
	fmt.Fprintf(&b, "  Pitch delivery    %3.0f  %s\n", sc.PitchDelivery.OverallScore, sc.PitchDelivery.OverallLabel)
	for _, d := range pitch.DeliveryDimensions {
		fmt.Fprintf(&b, "    %-20s %3.0f\n", d.Label(), sc.PitchDelivery.Dimensions()[d])
	}
	if sc.Verdict != "" {
		b.WriteString("\n" + wrap.Render("Verdict: "+sc.Verdict) + "\n")
	}

	c := out.Coaching
	b.WriteString("\n" + styles.investor.Render("Coaching") + "\n")
	b.WriteString(wrap.Render(c.OverallFeedback) + "\n")
	for i, tm := range c.ToughMoments {
		b.WriteString("\n" + styles.aside.Render(fmt.Sprintf("%d. %s", i+1, tm.VCQuestion)) + "\n")
		b.WriteString(wrap.Render("You said: "+tm.FounderAnswer) + "\n")
		b.WriteString(wrap.Render("Stronger: "+tm.WhatGoodLooksLike) + "\n")
	}
	for _, s := range c.Strengths {
		b.WriteString(styles.founder.Render("+ ") + s + "\n")
	}
	for _, s := range c.Improvements {
		b.WriteString(styles.warning.Render("- ") + s + "\n")
	}
	return b.String()
}
