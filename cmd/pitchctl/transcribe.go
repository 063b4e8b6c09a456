package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiger/pitchroom/internal/runtime/capture"
	"github.com/tiger/pitchroom/providers/stt/deepgram"
)

func newTranscribeCmd() *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "transcribe AUDIO_FILE",
		Short: "Transcribe a recorded answer with the configured speech-to-text provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcriber, err := deepgram.NewTranscriberFromEnv()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening audio: %w", err)
			}
			defer f.Close()

			if mimeType == "" {
				mimeType = audioMIME(args[0])
			}
			var heard bool
			err = capture.Capture(cmd.Context(), capture.FromTranscriber(transcriber, f, mimeType),
				func(text string) { fmt.Fprintf(cmd.ErrOrStderr(), "… %s\n", text) },
				func(text string) {
					heard = true
					fmt.Fprintln(cmd.OutOrStdout(), text)
				},
			)
			if err != nil {
				return err
			}
			if !heard {
				fmt.Fprintln(cmd.ErrOrStderr(), "no speech detected")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "audio MIME type (default: from the file extension)")
	return cmd
}

func audioMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".webm":
		return "audio/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
