package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/config"
	"github.com/tiger/pitchroom/internal/observability/telemetry"
	"github.com/tiger/pitchroom/internal/persona"
	"github.com/tiger/pitchroom/internal/runtime/capture"
	"github.com/tiger/pitchroom/internal/runtime/coaching"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/runtime/session"
)

func testOutcome() coaching.Outcome {
	return coaching.Outcome{
		Coaching: coaching.Report{
			OverallFeedback: "Lead with traction.",
			ToughMoments: []coaching.ToughMoment{{
				VCQuestion:        "Why now?",
				FounderAnswer:     "Because.",
				WhatGoodLooksLike: "Name the regulatory change.",
			}},
			Strengths:    []string{"clear problem"},
			Improvements: []string{"quantify the market"},
		},
		Scorecard: coaching.Scorecard{
			Attempt:         2,
			BusinessQuality: coaching.BusinessQuality{OverallScore: 71, OverallLabel: "Almost There", Traction: 40},
			PitchDelivery:   coaching.PitchDelivery{OverallScore: 50, OverallLabel: "Needs Work", Clarity: 62},
			Verdict:         "Come back with revenue.",
		},
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "reports", "attempt.json")
	snap := session.Snapshot{
		ID:        "s-1",
		PersonaID: "metrics-hawk",
		Attempt:   2,
		Turns:     []pitch.Turn{{Seq: 1, Speaker: pitch.SpeakerUser, Text: "hi", Phase: pitch.PhasePresenting}},
	}
	summaryPath, err := writeReport(out, newSessionReport(snap, "Acme", testOutcome()))
	if err != nil {
		t.Fatalf("unexpected report write error: %v", err)
	}
	if summaryPath != strings.TrimSuffix(out, ".json")+".md" {
		t.Fatalf("unexpected summary path %q", summaryPath)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	var report sessionReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unexpected json error: %v", err)
	}
	if report.SessionID != "s-1" || report.Attempt != 2 || len(report.Turns) != 1 || report.Scorecard.Verdict != "Come back with revenue." {
		t.Fatalf("unexpected report %+v", report)
	}

	summary, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	for _, want := range []string{"# Acme: attempt 2", "| Business quality | 71 | Almost There |", "- Traction: 40", "**Why now?**", "### Improvements"} {
		if !strings.Contains(string(summary), want) {
			t.Fatalf("expected %q in summary:\n%s", want, summary)
		}
	}
}

func TestSelectPersona(t *testing.T) {
	t.Parallel()

	catalog := &persona.Catalog{
		Industries: []string{"Fintech", "Healthcare"},
		Personas: []persona.Persona{
			{ID: "hawk", Name: "Hawk", SystemPrompt: "x"},
			{ID: "expert", Name: "Expert", SystemPrompt: "x", RequiresIndustry: true},
		},
	}
	tests := []struct {
		name     string
		id       string
		industry string
		wantErr  string
	}{
		{name: "plain", id: "hawk"},
		{name: "industry", id: "expert", industry: "fintech"},
		{name: "unknown", id: "nobody", wantErr: "available: hawk, expert"},
		{name: "missing industry", id: "expert", wantErr: "needs --industry"},
		{name: "bad industry", id: "expert", industry: "Mining", wantErr: "Fintech, Healthcare"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := selectPersona(catalog, tc.id, tc.industry)
			if tc.wantErr == "" {
				if err != nil || p.ID != tc.id {
					t.Fatalf("unexpected result %+v err=%v", p, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRenderCatalog(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderCatalog(&out, persona.Builtin())
	for _, want := range []string{"metrics-hawk", "industry-expert", "requires --industry", "industries:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in catalog listing:\n%s", want, out.String())
		}
	}
}

func TestAudioMIME(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]string{
		"a.webm": "audio/webm",
		"a.WAV":  "audio/wav",
		"a.mp3":  "audio/mpeg",
		"a.zzz":  "application/octet-stream",
	} {
		if got := audioMIME(path); got != want {
			t.Fatalf("audioMIME(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestBuildCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := buildGenerator(config.Config{LLMProvider: "nope"}); err == nil {
		t.Fatalf("expected unsupported llm provider error")
	}
	synth, err := buildSynthesizer(config.Config{TTSProvider: config.TTSNone})
	if err != nil || synth != nil {
		t.Fatalf("expected no synthesizer when voice is off, got %v err=%v", synth, err)
	}
	if _, err := buildSynthesizer(config.Config{TTSProvider: "nope"}); err == nil {
		t.Fatalf("expected unsupported tts provider error")
	}
	if concurrencyFor(config.Config{RejectConcurrent: true}) != session.RejectConcurrent {
		t.Fatalf("expected reject concurrency")
	}
	if concurrencyFor(config.Config{}) != session.SerializeConcurrent {
		t.Fatalf("expected serialize concurrency")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if parseLevel(" DEBUG ") != slog.LevelDebug || parseLevel("warn") != slog.LevelWarn || parseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}

func TestOpenProcessWritesJSONLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "pitch.log")
	proc, err := openProcess(context.Background(), config.Config{
		LLMProvider: config.LLMAnthropic,
		LogFile:     logPath,
		LogLevel:    "info",
		Telemetry:   config.TelemetryConfig{QueueCapacity: 16, ExportTimeout: 100 * time.Millisecond, LogSampleRate: 1},
	})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	proc.pipeline.EmitLog(telemetry.EventSessionReset, telemetry.SeverityInfo, "reset", nil, telemetry.Correlation{SessionID: "s-1"})
	if err := proc.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	for _, want := range []string{`"msg":"pitchctl started"`, `"session_reset"`, `"msg":"pitchctl stopped"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in log:\n%s", want, data)
		}
	}
}

func TestAudioWriter(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	play, err := audioWriter("", logger)
	if err != nil || play != nil {
		t.Fatalf("expected no writer without a directory")
	}
	dir := filepath.Join(t.TempDir(), "audio")
	play, err = audioWriter(dir, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	play([]byte("one"))
	play([]byte("two"))
	if data, err := os.ReadFile(filepath.Join(dir, "reply-002.mp3")); err != nil || string(data) != "two" {
		t.Fatalf("unexpected second reply file %q err=%v", data, err)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no warnings, got %s", logs.String())
	}

	if err := os.Mkdir(filepath.Join(dir, "reply-003.mp3"), 0o755); err != nil {
		t.Fatalf("unexpected mkdir error: %v", err)
	}
	play([]byte("three"))
	if !strings.Contains(logs.String(), "saving reply audio failed") || !strings.Contains(logs.String(), "reply-003.mp3") {
		t.Fatalf("expected write failure to be logged, got %s", logs.String())
	}
}

func newTestPracticeModel(t *testing.T, policy capture.Policy) practiceModel {
	t.Helper()
	gen := contracts.StaticGenerator{GenerateFn: func(context.Context, []pitch.Message, string) (string, error) {
		return "Go on.", nil
	}}
	machine, err := session.NewMachine(session.Options{
		Persona:   persona.Persona{ID: "hawk", Name: "Hawk", SystemPrompt: "x", IntroMessage: "Hello."},
		Slides:    []pitch.Slide{{Ordinal: 1, DisplayText: "Problem"}, {Ordinal: 2, DisplayText: "Ask"}},
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("unexpected machine error: %v", err)
	}
	m := newPracticeModel(context.Background(), practiceDeps{machine: machine, gate: capture.NewGate(machine, policy), deckTitle: "Acme"})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(practiceModel)
}

func TestPracticeModelShowsIntroAndSlide(t *testing.T) {
	t.Parallel()

	m := newTestPracticeModel(t, capture.DiscardWhileBusy)
	view := m.View()
	for _, want := range []string{"Hawk", "Acme", "slide 1/2", "attempt #1", "Hello."} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestPracticeModelReplyFlow(t *testing.T) {
	t.Parallel()

	m := newTestPracticeModel(t, capture.DiscardWhileBusy)
	reply, err := m.deps.machine.SubmitUserTurn(context.Background(), "We fix invoices.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.busy = true
	updated, _ := m.Update(replyMsg{reply: reply})
	m = updated.(practiceModel)
	if m.busy || m.statusErr || m.status != "presenting slide 1" {
		t.Fatalf("unexpected state after reply busy=%v status=%q", m.busy, m.status)
	}
	if !strings.Contains(m.timeline.View(), "We fix invoices.") {
		t.Fatalf("expected founder turn in timeline")
	}

	updated, _ = m.Update(replyMsg{reply: session.Reply{Text: session.FallbackText, Fallback: true}})
	m = updated.(practiceModel)
	if !m.statusErr {
		t.Fatalf("expected fallback to surface as an error status")
	}
}

func TestPracticeModelAutoConclude(t *testing.T) {
	t.Parallel()

	m := newTestPracticeModel(t, capture.DiscardWhileBusy)
	updated, cmd := m.Update(replyMsg{reply: session.Reply{Text: "ok", ShouldAutoAdvancePhase: true, Closing: session.ClosingText}})
	m = updated.(practiceModel)
	if !m.concluding || !m.busy || cmd == nil {
		t.Fatalf("expected conclusion to start, concluding=%v busy=%v", m.concluding, m.busy)
	}

	outcome := testOutcome()
	updated, _ = m.Update(concludeMsg{outcome: outcome})
	m = updated.(practiceModel)
	if m.outcome == nil || m.busy {
		t.Fatalf("expected results to be shown")
	}
	if !strings.Contains(m.timeline.View(), "Business quality") {
		t.Fatalf("expected scorecard in results view")
	}
}

func TestPracticeModelTranscriptGate(t *testing.T) {
	t.Parallel()

	m := newTestPracticeModel(t, capture.DiscardWhileBusy)
	updated, _ := m.Update(transcriptMsg{})
	m = updated.(practiceModel)
	if m.status != "no speech detected" {
		t.Fatalf("unexpected status %q", m.status)
	}

	updated, cmd := m.Update(transcriptMsg{text: "our churn is 2%", ok: true})
	m = updated.(practiceModel)
	if !m.busy || cmd == nil {
		t.Fatalf("expected idle machine to accept the transcript")
	}
}

func TestPracticeModelKeepsAnswerDuringInterruptCheck(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	gen := contracts.StaticGenerator{GenerateFn: func(context.Context, []pitch.Message, string) (string, error) {
		calls++
		if calls == 1 {
			close(entered)
			<-release
			return `{"interrupt": false, "question": ""}`, nil
		}
		return "Who pays?", nil
	}}
	machine, err := session.NewMachine(session.Options{
		Persona:   persona.Persona{ID: "hawk", Name: "Hawk", SystemPrompt: "x"},
		Slides:    []pitch.Slide{{Ordinal: 1, DisplayText: "Problem"}, {Ordinal: 2, DisplayText: "Ask"}},
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("unexpected machine error: %v", err)
	}
	m := newPracticeModel(context.Background(), practiceDeps{machine: machine, gate: capture.NewGate(machine, capture.DiscardWhileBusy), deckTitle: "Acme"})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(practiceModel)

	m.input.SetValue(strings.Repeat("word ", interruptEvery))
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = updated.(practiceModel)
	if !m.checking || cmd == nil {
		t.Fatalf("expected typed words to start an interruption check")
	}

	decided := make(chan tea.Msg, 1)
	go func() {
		decided <- interruptMsg{decision: machine.CheckInterruption(context.Background(), "word word")}
	}()
	<-entered

	answer := "We fix invoices for plumbers."
	m.input.SetValue(answer)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(practiceModel)
	if m.busy || m.input.Value() != answer {
		t.Fatalf("expected answer to be kept while checking, busy=%v input=%q", m.busy, m.input.Value())
	}
	if !strings.Contains(m.status, "listening") {
		t.Fatalf("unexpected status %q", m.status)
	}

	close(release)
	updated, _ = m.Update(<-decided)
	m = updated.(practiceModel)
	if m.checking {
		t.Fatalf("expected check to finish")
	}
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(practiceModel)
	if !m.busy || m.input.Value() != "" {
		t.Fatalf("expected answer to be submitted, busy=%v input=%q", m.busy, m.input.Value())
	}
	if _, err := machine.SubmitUserTurn(context.Background(), answer); err != nil {
		t.Fatalf("expected gate to be free after the check, got %v", err)
	}
}

func TestPracticeModelRestoresRejectedAnswer(t *testing.T) {
	t.Parallel()

	m := newTestPracticeModel(t, capture.DiscardWhileBusy)
	m.busy = true
	updated, _ := m.Update(replyMsg{text: "Our churn is 2%.", err: session.ErrTurnInFlight})
	m = updated.(practiceModel)
	if m.input.Value() != "Our churn is 2%." {
		t.Fatalf("expected rejected answer back in the input, got %q", m.input.Value())
	}
}

func TestPracticeModelKeys(t *testing.T) {
	t.Parallel()

	m := newTestPracticeModel(t, capture.DiscardWhileBusy)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	m = updated.(practiceModel)
	if !m.statusErr {
		t.Fatalf("expected end Q&A to be rejected while presenting")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	m = updated.(practiceModel)
	if !m.statusErr || !strings.Contains(m.status, "can't go back") {
		t.Fatalf("unexpected status %q", m.status)
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	_ = updated
}

func TestRootCommands(t *testing.T) {
	t.Parallel()

	deckPath := filepath.Join(t.TempDir(), "deck.txt")
	if err := os.WriteFile(deckPath, []byte("Problem\n---\nAsk\n"), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{name: "version", args: []string{"version"}, want: "pitchctl dev"},
		{name: "validate deck", args: []string{"validate", "--deck", deckPath}, want: "deck ok: " + deckPath},
		{name: "validate nothing", args: []string{"validate"}, wantErr: "nothing to validate"},
		{name: "validate bad mode", args: []string{"validate", "--deck", deckPath, "--mode", "loose"}, wantErr: "unsupported validation mode"},
		{name: "practice needs deck", args: []string{"practice"}, wantErr: `"deck" not set`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tc.args)
			err := cmd.ExecuteContext(context.Background())
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tc.want) {
				t.Fatalf("expected %q in output %q", tc.want, out.String())
			}
		})
	}
}
