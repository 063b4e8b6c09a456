package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tiger/pitchroom/internal/tooling/validation"
)

func newValidateCmd() *cobra.Command {
	var (
		deckPath    string
		catalogPath string
		mode        string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a deck and/or persona catalog before a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deckPath == "" && catalogPath == "" {
				return errors.New("nothing to validate: pass --deck and/or --personas")
			}
			if _, err := validation.ParseValidationMode(mode); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if deckPath != "" {
				if err := validation.ValidateDeckFile(deckPath, mode); err != nil {
					return err
				}
				fmt.Fprintf(out, "deck ok: %s\n", deckPath)
			}
			if catalogPath != "" {
				if err := validation.ValidatePersonaCatalogFile(catalogPath, mode); err != nil {
					return err
				}
				fmt.Fprintf(out, "persona catalog ok: %s\n", catalogPath)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&deckPath, "deck", "", "deck file to check")
	flags.StringVar(&catalogPath, "personas", "", "persona catalog file to check")
	flags.StringVar(&mode, "mode", string(validation.ValidationModeStrict), "strict|relaxed")
	return cmd
}
