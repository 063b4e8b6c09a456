// Package session runs one pitch practice attempt: phases, turns, budgets and
// the live counterpart signal.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/observability/telemetry"
	"github.com/tiger/pitchroom/internal/persona"
	"github.com/tiger/pitchroom/internal/runtime/budget"
	"github.com/tiger/pitchroom/internal/runtime/coaching"
	"github.com/tiger/pitchroom/internal/runtime/ledger"
	"github.com/tiger/pitchroom/internal/runtime/prompt"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/runtime/scoring"
	"github.com/tiger/pitchroom/internal/runtime/sentiment"
)

// Scripted counterpart lines.
const (
	OpenerText          = "Okay, thanks for walking me through the deck. I have some questions. Let me start with the thing I'm most curious about..."
	ClosingText         = "I think that's a good place to stop. Let me give you my overall thoughts."
	FallbackText        = "Sorry, I lost my train of thought. Could you repeat that?"
	NothingToReviewText = "Nothing to give feedback on yet. Say something about your first slide, then ask again."
)

const emittedBy = "session"

// Concurrency selects what a second request does while one is in flight.
type Concurrency int

const (
	// RejectConcurrent fails the second request with ErrTurnInFlight.
	RejectConcurrent Concurrency = iota
	// SerializeConcurrent blocks the second request until the first finishes.
	SerializeConcurrent
)

// Options configures a Machine.
type Options struct {
	ID       string
	Persona  persona.Persona
	Industry string
	Slides   []pitch.Slide
	// Attempt defaults to 1.
	Attempt int

	Generator contracts.Generator
	// Synthesizer is optional; Speak does nothing without it.
	Synthesizer   contracts.Synthesizer
	VoiceProvider string

	Emitter     telemetry.Emitter
	Concurrency Concurrency
}

// Reply is the outcome of one user turn.
type Reply struct {
	Text                   string
	ShouldAutoAdvancePhase bool
	ShouldInterrupt        bool
	Scores                 pitch.ScoreDelta
	Fallback               bool
	// Closing is set when this reply used up the Q&A round.
	Closing string
	// Late marks a reply that arrived after the attempt ended. It was
	// recorded but changed no counters.
	Late bool
	// Discarded marks a reply whose attempt was reset while it was in flight.
	Discarded bool
}

// AdvanceResult describes a slide move or the start of Q&A.
type AdvanceResult struct {
	Transition Transition
	SlideIndex int
	// Opener, Question and Scores are set when the advance started Q&A.
	Opener   string
	Question string
	Scores   pitch.ScoreDelta
	// QuestionErr reports a failed first question. The opener stays recorded.
	QuestionErr error
}

// Machine is the phase state machine for one session. All methods are safe
// for concurrent use; at most one generation request runs at a time.
type Machine struct {
	gen           contracts.Generator
	synth         contracts.Synthesizer
	voiceProvider string
	emitter       telemetry.Emitter
	concurrency   Concurrency

	gate     sync.Mutex
	inFlight atomic.Bool
	speech   sync.WaitGroup

	mu           sync.Mutex
	id           string
	persona      persona.Persona
	industry     string
	slides       []pitch.Slide
	attempt      int
	phase        pitch.Phase
	slideIndex   int
	epoch        int
	ledger       *ledger.Ledger
	budget       *budget.Tracker
	sentiment    *sentiment.Aggregator
	lastCoaching string
	lastFlag     bool
}

// NewMachine starts a session in the presenting phase on the first slide.
func NewMachine(opts Options) (*Machine, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if err := opts.Persona.Validate(); err != nil {
		return nil, err
	}
	industry := strings.TrimSpace(opts.Industry)
	if opts.Persona.RequiresIndustry && industry == "" {
		return nil, fmt.Errorf("%w: %s", ErrIndustryRequired, opts.Persona.ID)
	}
	if err := pitch.ValidateDeck(opts.Slides); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	attempt := opts.Attempt
	if attempt < 1 {
		attempt = 1
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = telemetry.DefaultEmitter()
	}
	slides := make([]pitch.Slide, len(opts.Slides))
	copy(slides, opts.Slides)

	return &Machine{
		gen:           opts.Generator,
		synth:         opts.Synthesizer,
		voiceProvider: opts.VoiceProvider,
		emitter:       emitter,
		concurrency:   opts.Concurrency,
		id:            id,
		persona:       opts.Persona,
		industry:      industry,
		slides:        slides,
		attempt:       attempt,
		phase:         pitch.PhasePresenting,
		ledger:        ledger.New(),
		budget:        budget.NewTracker(),
		sentiment:     sentiment.NewAggregator(),
	}, nil
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	return m.id
}

// Persona returns the counterpart persona.
func (m *Machine) Persona() persona.Persona {
	return m.persona
}

// InFlight reports whether a generation request is outstanding.
func (m *Machine) InFlight() bool {
	return m.inFlight.Load()
}

func (m *Machine) acquire() bool {
	if m.concurrency == SerializeConcurrent {
		m.gate.Lock()
	} else if !m.gate.TryLock() {
		return false
	}
	m.inFlight.Store(true)
	return true
}

func (m *Machine) release() {
	m.inFlight.Store(false)
	m.gate.Unlock()
}

type turnRequest struct {
	transcript []pitch.Message
	system     string
	epoch      int
	corr       telemetry.Correlation
}

// SubmitUserTurn records a founder turn, asks the counterpart for a reply and
// records it. A failed generation is answered with FallbackText and a nil error.
func (m *Machine) SubmitUserTurn(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyTurn
	}
	if !m.acquire() {
		return Reply{}, ErrTurnInFlight
	}
	defer m.release()

	m.mu.Lock()
	req, err := m.prepareTurnLocked(text)
	m.mu.Unlock()
	if err != nil {
		return Reply{}, err
	}

	raw, genErr := m.generate(ctx, req.transcript, req.system, req.corr)

	m.mu.Lock()
	defer m.mu.Unlock()
	if req.epoch != m.epoch {
		return Reply{Discarded: true}, nil
	}
	if genErr != nil {
		m.appendCounterpartLocked(FallbackText, false, true)
		return Reply{Text: FallbackText, Fallback: true, Late: m.phase == pitch.PhaseDone}, nil
	}
	return m.recordReplyLocked(raw, req.corr), nil
}

func (m *Machine) prepareTurnLocked(text string) (turnRequest, error) {
	if m.phase == pitch.PhaseDone {
		return turnRequest{}, ErrSessionDone
	}
	words := m.budget.Counters().WordsOnSlide
	if m.phase == pitch.PhasePresenting {
		words += budget.WordCount(text)
	}
	system, err := prompt.SystemContext(prompt.Params{
		Persona:      m.persona,
		Industry:     m.industry,
		Phase:        m.phase,
		SlideText:    m.slideContextLocked(),
		WordsOnSlide: words,
		Attempt:      m.attempt,
		Ongoing:      true,
	})
	if err != nil {
		return turnRequest{}, err
	}

	turn, err := m.ledger.Append(pitch.Turn{
		Speaker:     pitch.SpeakerUser,
		Text:        text,
		Phase:       m.phase,
		SlideAtTime: m.slideIndex,
	})
	if err != nil {
		return turnRequest{}, err
	}
	if m.phase == pitch.PhasePresenting {
		m.budget.AddWords(text)
	}
	corr := m.correlationLocked(turn.Seq)
	m.emitter.EmitLog(telemetry.EventTurnSubmitted, telemetry.SeverityInfo, "founder turn recorded", map[string]string{
		"words": strconv.Itoa(budget.WordCount(text)),
		"slide": strconv.Itoa(m.slideIndex),
	}, corr)
	if m.phase == pitch.PhasePresenting {
		m.emitter.EmitMetric(telemetry.MetricWordsOnSlide, float64(words), "count", nil, corr)
	}
	return turnRequest{
		transcript: m.ledger.Transcript(),
		system:     system,
		epoch:      m.epoch,
		corr:       corr,
	}, nil
}

// recordReplyLocked applies a successful generation to the ledger, the
// sentiment history and the exchange counters. A reply made only of tags still
// counts; FallbackText stands in for its missing display text.
func (m *Machine) recordReplyLocked(raw string, corr telemetry.Correlation) Reply {
	res := scoring.Extract(raw)
	text, blank := displayText(res)
	reply := Reply{Text: text, ShouldInterrupt: res.ShouldInterrupt, Scores: res.Scores, Fallback: blank}
	if m.phase == pitch.PhaseDone {
		m.appendCounterpartLocked(text, false, blank)
		reply.Late = true
		return reply
	}

	m.appendCounterpartLocked(text, false, blank)
	m.sentiment.Push(res.Scores)
	m.lastFlag = res.ShouldInterrupt

	switch m.phase {
	case pitch.PhasePresenting:
		m.budget.RecordSlideExchange()
	case pitch.PhaseQA:
		n := m.budget.RecordQAExchange()
		m.emitter.EmitMetric(telemetry.MetricQAExchanges, float64(n), "count", nil, corr)
		if m.budget.QAExhausted() {
			m.closeQALocked(corr)
			reply.ShouldAutoAdvancePhase = true
			reply.Closing = ClosingText
		}
	}
	return reply
}

func displayText(res scoring.Result) (string, bool) {
	if res.CleanText == "" {
		return FallbackText, true
	}
	return res.CleanText, false
}

func (m *Machine) closeQALocked(corr telemetry.Correlation) {
	tr, err := Next(m.phase, TriggerQACapped)
	if err != nil {
		return
	}
	m.appendCounterpartLocked(ClosingText, true, false)
	m.phase = tr.To
	corr.Phase = string(tr.To)
	m.emitter.EmitLog(telemetry.EventQACapped, telemetry.SeverityInfo, "q&a round complete", map[string]string{
		"exchanges": strconv.Itoa(m.budget.Counters().QAExchangeCount),
	}, corr)
	m.emitTransition(tr, corr)
}

func (m *Machine) appendCounterpartLocked(text string, scripted bool, fallback bool) {
	_, err := m.ledger.Append(pitch.Turn{
		Speaker:     pitch.SpeakerCounterpart,
		Text:        text,
		Phase:       m.phase,
		SlideAtTime: m.slideIndex,
		Scripted:    scripted,
		Fallback:    fallback,
	})
	if err != nil {
		m.emitter.EmitLog(telemetry.EventTurnRejected, telemetry.SeverityError, err.Error(), nil, m.correlationLocked(0))
	}
}

// generate calls the generator once.
func (m *Machine) generate(ctx context.Context, transcript []pitch.Message, system string, corr telemetry.Correlation) (string, error) {
	start := time.Now()
	raw, err := m.gen.GenerateReply(ctx, transcript, system)
	elapsed := float64(time.Since(start).Milliseconds())

	outcome := string(contracts.OutcomeSuccess)
	if err != nil {
		genErr := contracts.AsGenerationError("", err)
		outcome = string(genErr.Outcome.Class)
		m.emitter.EmitLog(telemetry.EventGenerationFailed, telemetry.SeverityWarn, genErr.Error(), map[string]string{
			"outcome": outcome,
			"reason":  genErr.Outcome.Reason,
		}, corr)
		err = genErr
	}
	m.emitter.EmitMetric(telemetry.MetricProviderRTTMS, elapsed, "ms", map[string]string{"outcome": outcome}, corr)
	return raw, err
}

// Advance moves to the next slide. On the last slide it starts Q&A: the
// scripted opener is recorded first, then the first question is requested
// with the whole deck as context. The first question does not count as a
// Q&A exchange.
func (m *Machine) Advance(ctx context.Context) (AdvanceResult, error) {
	if !m.acquire() {
		return AdvanceResult{}, ErrTurnInFlight
	}
	defer m.release()

	m.mu.Lock()
	if m.phase == pitch.PhasePresenting && m.slideIndex < len(m.slides)-1 {
		defer m.mu.Unlock()
		tr, err := Next(m.phase, TriggerAdvanceSlide)
		if err != nil {
			return AdvanceResult{}, err
		}
		m.slideIndex++
		m.budget.ResetSlide()
		m.emitSlideMove(tr)
		return AdvanceResult{Transition: tr, SlideIndex: m.slideIndex}, nil
	}

	tr, err := Next(m.phase, TriggerStartQA)
	if err != nil {
		m.mu.Unlock()
		return AdvanceResult{}, err
	}
	m.phase = tr.To
	m.budget.ResetQA()
	m.appendCounterpartLocked(OpenerText, true, false)
	corr := m.correlationLocked(0)
	m.emitTransition(tr, corr)

	result := AdvanceResult{Transition: tr, SlideIndex: m.slideIndex, Opener: OpenerText}
	system, err := prompt.SystemContext(prompt.Params{
		Persona:   m.persona,
		Industry:  m.industry,
		Phase:     pitch.PhaseQA,
		SlideText: prompt.DeckContext(m.slides),
		Attempt:   m.attempt,
		Ongoing:   true,
	})
	if err != nil {
		m.mu.Unlock()
		result.QuestionErr = err
		return result, nil
	}
	transcript := append(m.ledger.Transcript(), pitch.Message{Role: pitch.RoleUser, Text: prompt.QAKickoff})
	epoch := m.epoch
	m.mu.Unlock()

	raw, genErr := m.generate(ctx, transcript, system, corr)

	m.mu.Lock()
	defer m.mu.Unlock()
	if genErr != nil {
		result.QuestionErr = genErr
		return result, nil
	}
	if epoch != m.epoch {
		return result, nil
	}
	res := scoring.Extract(raw)
	question, blank := displayText(res)
	m.appendCounterpartLocked(question, false, blank)
	if m.phase == pitch.PhaseQA {
		m.sentiment.Push(res.Scores)
		m.lastFlag = res.ShouldInterrupt
	}
	result.Question = question
	result.Scores = res.Scores
	return result, nil
}

// Previous moves back one slide while presenting.
func (m *Machine) Previous() (AdvanceResult, error) {
	if !m.acquire() {
		return AdvanceResult{}, ErrTurnInFlight
	}
	defer m.release()

	m.mu.Lock()
	defer m.mu.Unlock()
	tr, err := Next(m.phase, TriggerPreviousSlide)
	if err != nil {
		return AdvanceResult{}, err
	}
	if m.slideIndex == 0 {
		return AdvanceResult{}, fmt.Errorf("%w: already on the first slide", ErrInvalidPhaseTransition)
	}
	m.slideIndex--
	m.budget.ResetSlide()
	m.emitSlideMove(tr)
	return AdvanceResult{Transition: tr, SlideIndex: m.slideIndex}, nil
}

// EndQA finishes the attempt from Q&A. A reply already in flight is still
// recorded when it returns but changes nothing else.
func (m *Machine) EndQA() (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, err := Next(m.phase, TriggerEndQA)
	if err != nil {
		return Transition{}, err
	}
	m.phase = tr.To
	m.emitTransition(tr, m.correlationLocked(0))
	return tr, nil
}

// RequestFeedback asks for out-of-character coaching. It never touches the
// ledger, counters, slide or phase. With no founder turns yet it returns
// NothingToReviewText without calling the generator.
func (m *Machine) RequestFeedback(ctx context.Context) (string, error) {
	if !m.acquire() {
		return "", ErrTurnInFlight
	}
	defer m.release()

	m.mu.Lock()
	if m.phase == pitch.PhaseDone {
		m.mu.Unlock()
		return "", ErrSessionDone
	}
	corr := m.correlationLocked(0)
	if m.ledger.UserTurnCount() == 0 {
		m.mu.Unlock()
		m.emitter.EmitLog(telemetry.EventFeedbackRequested, telemetry.SeverityInfo, "nothing to review", map[string]string{"outcome": "empty"}, corr)
		return NothingToReviewText, nil
	}
	system, err := prompt.SystemContext(prompt.Params{
		Persona:  m.persona,
		Industry: m.industry,
		Phase:    pitch.PhaseFeedback,
		Attempt:  m.attempt,
		Ongoing:  true,
	})
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	transcript := []pitch.Message{{Role: pitch.RoleUser, Text: prompt.FeedbackMessage(m.ledger.RenderTranscript())}}
	epoch := m.epoch
	m.mu.Unlock()

	m.emitter.EmitLog(telemetry.EventFeedbackRequested, telemetry.SeverityInfo, "coaching requested", nil, corr)
	raw, err := m.generate(ctx, transcript, system, corr)
	if err != nil {
		return "", err
	}
	text := scoring.Extract(raw).CleanText
	if text == "" {
		return "", contracts.NewGenerationError("", contracts.Outcome{Class: contracts.OutcomeMalformedResponse, Reason: "empty_reply"}, "coaching carried no text")
	}

	m.mu.Lock()
	if epoch == m.epoch {
		m.lastCoaching = text
	}
	m.mu.Unlock()
	return text, nil
}

// Reset clears the attempt and returns to the first slide. newAttempt bumps
// the attempt number ("try again"); false restarts the same attempt. A reply
// in flight during a reset is dropped.
func (m *Machine) Reset(newAttempt bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, err := Next(m.phase, TriggerReset)
	if err != nil {
		return
	}
	if newAttempt {
		m.attempt++
	}
	m.epoch++
	m.phase = tr.To
	m.slideIndex = 0
	m.ledger.Reset()
	m.budget.Reset()
	m.sentiment.Reset()
	m.lastCoaching = ""
	m.lastFlag = false

	corr := m.correlationLocked(0)
	m.emitter.EmitLog(telemetry.EventSessionReset, telemetry.SeverityInfo, "session reset", map[string]string{
		"new_attempt": strconv.FormatBool(newAttempt),
	}, corr)
	if tr.From != tr.To {
		m.emitTransition(tr, corr)
	}
}

// CheckInterruption runs the standalone interruption pre-check against the
// current slide. It never waits: while another request is in flight, or
// outside the presenting phase, it reports no interruption.
func (m *Machine) CheckInterruption(ctx context.Context, founderWords string) scoring.InterruptDecision {
	if !m.gate.TryLock() {
		return scoring.InterruptDecision{}
	}
	m.inFlight.Store(true)
	defer m.release()

	m.mu.Lock()
	if m.phase != pitch.PhasePresenting {
		m.mu.Unlock()
		return scoring.InterruptDecision{}
	}
	style := m.persona.InterruptionStyle
	slide := m.slideContextLocked()
	m.mu.Unlock()

	return scoring.CheckInterruption(ctx, m.gen, style, slide, founderWords)
}

// Speak synthesizes text in the persona's voice on its own goroutine. play,
// when set, receives the audio. Failures are logged and never affect the
// session. The returned channel closes when the attempt finishes.
func (m *Machine) Speak(ctx context.Context, text string, play func([]byte)) <-chan struct{} {
	done := make(chan struct{})
	text = strings.TrimSpace(text)
	if m.synth == nil || text == "" {
		close(done)
		return done
	}
	m.mu.Lock()
	corr := m.correlationLocked(0)
	m.mu.Unlock()
	voice := m.persona.VoiceFor(m.voiceProvider)

	m.speech.Add(1)
	go func() {
		defer m.speech.Done()
		defer close(done)
		audio, err := m.synth.SynthesizeSpeech(ctx, text, voice)
		if err != nil {
			m.emitter.EmitLog(telemetry.EventSynthesisFailed, telemetry.SeverityWarn, err.Error(), map[string]string{"voice": voice}, corr)
			return
		}
		if play != nil {
			play(audio)
		}
	}()
	return done
}

// WaitSpeech blocks until every Speak call has finished.
func (m *Machine) WaitSpeech() {
	m.speech.Wait()
}

// Conclude produces the coaching report and scorecard for a finished attempt.
func (m *Machine) Conclude(ctx context.Context) (coaching.Outcome, error) {
	m.mu.Lock()
	if m.phase != pitch.PhaseDone {
		phase := m.phase
		m.mu.Unlock()
		return coaching.Outcome{}, fmt.Errorf("%w: conclude from %s", ErrInvalidPhaseTransition, phase)
	}
	in := coaching.Input{
		PersonaName:        m.persona.Name,
		PersonaDescription: m.persona.Description,
		Slides:             m.slides,
		Turns:              m.ledger.Turns(),
		Attempt:            m.attempt,
	}
	corr := m.correlationLocked(0)
	m.mu.Unlock()

	start := time.Now()
	out, err := coaching.Synthesize(ctx, m.gen, in)
	attrs := map[string]string{"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10)}
	if err != nil {
		m.emitter.EmitLog(telemetry.EventConcluded, telemetry.SeverityError, err.Error(), attrs, corr)
		return coaching.Outcome{}, err
	}
	attrs["business_score"] = strconv.FormatFloat(out.Scorecard.BusinessQuality.OverallScore, 'f', 0, 64)
	attrs["delivery_score"] = strconv.FormatFloat(out.Scorecard.PitchDelivery.OverallScore, 'f', 0, 64)
	m.emitter.EmitLog(telemetry.EventConcluded, telemetry.SeverityInfo, "results ready", attrs, corr)
	return out, nil
}

func (m *Machine) slideContextLocked() string {
	switch m.phase {
	case pitch.PhasePresenting:
		return m.slides[m.slideIndex].Context()
	case pitch.PhaseQA:
		return prompt.DeckContext(m.slides)
	default:
		return ""
	}
}

func (m *Machine) correlationLocked(seq int) telemetry.Correlation {
	corr := telemetry.Correlation{
		SessionID: m.id,
		Phase:     string(m.phase),
		Attempt:   m.attempt,
		EmittedBy: emittedBy,
	}
	if seq > 0 {
		corr.TurnID = "turn-" + strconv.Itoa(seq)
	}
	return corr
}

func (m *Machine) emitTransition(tr Transition, corr telemetry.Correlation) {
	m.emitter.EmitLog(telemetry.EventPhaseChanged, telemetry.SeverityInfo, "phase changed", map[string]string{
		"from":    string(tr.From),
		"to":      string(tr.To),
		"trigger": string(tr.Trigger),
	}, corr)
}

func (m *Machine) emitSlideMove(tr Transition) {
	m.emitter.EmitLog(telemetry.EventSlideAdvanced, telemetry.SeverityInfo, "slide changed", map[string]string{
		"slide":   strconv.Itoa(m.slideIndex),
		"trigger": string(tr.Trigger),
	}, m.correlationLocked(0))
}
