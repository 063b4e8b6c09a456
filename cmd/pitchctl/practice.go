package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tiger/pitchroom/internal/config"
	"github.com/tiger/pitchroom/internal/deck"
	"github.com/tiger/pitchroom/internal/persona"
	"github.com/tiger/pitchroom/internal/runtime/capture"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/runtime/session"
	"github.com/tiger/pitchroom/providers/stt/deepgram"
)

type practiceOptions struct {
	deckPath   string
	personaID  string
	industry   string
	reportPath string
	audioDir   string
	deferAudio bool
}

func newPracticeCmd() *cobra.Command {
	var opts practiceOptions
	cmd := &cobra.Command{
		Use:   "practice --deck FILE",
		Short: "Run an interactive practice session",
		Long: `Present a deck slide by slide to a simulated investor, answer up to six
Q&A questions, and get a coaching report and scorecard at the end.

Type to talk. Enter "/audio FILE" to answer with a recording instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPractice(cmd.Context(), cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.deckPath, "deck", "", "deck file (.yaml, or plain text with --- between slides)")
	flags.StringVar(&opts.personaID, "persona", "metrics-hawk", "investor persona id (see pitchctl personas)")
	flags.StringVar(&opts.industry, "industry", "", "startup vertical, for personas that need one")
	flags.StringVar(&opts.reportPath, "report", "", "write the results as JSON (plus a markdown summary) to this path")
	flags.StringVar(&opts.audioDir, "audio-dir", "", "save synthesized counterpart speech into this directory")
	flags.BoolVar(&opts.deferAudio, "defer-audio", false, "hold recorded answers that finish while the investor is replying")
	_ = cmd.MarkFlagRequired("deck")
	return cmd
}

func runPractice(ctx context.Context, cmd *cobra.Command, opts practiceOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	proc, err := openProcess(ctx, cfg)
	if err != nil {
		return err
	}
	defer proc.Close()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	p, err := selectPersona(catalog, opts.personaID, opts.industry)
	if err != nil {
		return err
	}
	d, err := deck.Load(opts.deckPath)
	if err != nil {
		return err
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		return err
	}
	synth, err := buildSynthesizer(cfg)
	if err != nil {
		return err
	}
	machine, err := session.NewMachine(session.Options{
		Persona:       p,
		Industry:      opts.industry,
		Slides:        d.Slides,
		Generator:     gen,
		Synthesizer:   synth,
		VoiceProvider: cfg.TTSProvider,
		Emitter:       proc.pipeline,
		Concurrency:   concurrencyFor(cfg),
	})
	if err != nil {
		return err
	}
	proc.logger.Info("session started", "session_id", machine.ID(), "persona", p.ID, "slides", len(d.Slides))

	policy := capture.DiscardWhileBusy
	if opts.deferAudio {
		policy = capture.DeferWhileBusy
	}
	play, err := audioWriter(opts.audioDir, proc.logger)
	if err != nil {
		return err
	}
	model := newPracticeModel(ctx, practiceDeps{
		machine:     machine,
		transcriber: transcriberFromEnv(),
		gate:        capture.NewGate(machine, policy),
		deckTitle:   d.Title,
		play:        play,
		speak:       synth != nil,
	})

	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	machine.WaitSpeech()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	result, ok := final.(practiceModel)
	if !ok || result.outcome == nil {
		return nil
	}

	out := cmd.OutOrStdout()
	sc := result.outcome.Scorecard
	fmt.Fprintf(out, "Business quality: %.0f (%s)\n", sc.BusinessQuality.OverallScore, sc.BusinessQuality.OverallLabel)
	fmt.Fprintf(out, "Pitch delivery:   %.0f (%s)\n", sc.PitchDelivery.OverallScore, sc.PitchDelivery.OverallLabel)
	if opts.reportPath == "" {
		return nil
	}
	summaryPath, err := writeReport(opts.reportPath, newSessionReport(result.concludedSnapshot, d.Title, *result.outcome))
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(out, "report written: %s\n", opts.reportPath)
	fmt.Fprintf(out, "summary written: %s\n", summaryPath)
	return nil
}

func selectPersona(catalog *persona.Catalog, id, industry string) (persona.Persona, error) {
	p, ok := catalog.Get(id)
	if !ok {
		ids := make([]string, 0, len(catalog.Personas))
		for _, c := range catalog.Personas {
			ids = append(ids, c.ID)
		}
		return persona.Persona{}, fmt.Errorf("unknown persona %q (available: %s)", id, strings.Join(ids, ", "))
	}
	if p.RequiresIndustry && !catalog.ValidIndustry(industry) {
		return persona.Persona{}, fmt.Errorf("persona %q needs --industry, one of: %s", id, strings.Join(catalog.Industries, ", "))
	}
	return p, nil
}

// transcriberFromEnv returns nil when no speech-to-text key is configured.
func transcriberFromEnv() contracts.Transcriber {
	cfg := deepgram.ConfigFromEnv()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	t, err := deepgram.NewTranscriber(cfg)
	if err != nil {
		return nil
	}
	return t
}

// audioWriter saves each synthesized reply as a numbered file. It returns nil
// when dir is empty. Write failures are logged and never stop the session.
func audioWriter(dir string, logger *slog.Logger) (func([]byte), error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio directory: %w", err)
	}
	var n atomic.Int64
	return func(audio []byte) {
		name := filepath.Join(dir, fmt.Sprintf("reply-%03d.mp3", n.Add(1)))
		if err := os.WriteFile(name, audio, 0o644); err != nil {
			logger.Warn("saving reply audio failed", "path", name, "error", err)
		}
	}, nil
}
