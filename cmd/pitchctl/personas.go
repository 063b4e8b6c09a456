package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tiger/pitchroom/internal/config"
	"github.com/tiger/pitchroom/internal/persona"
)

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the investor personas and industries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			renderCatalog(cmd.OutOrStdout(), catalog)
			return nil
		},
	}
}

func renderCatalog(w io.Writer, catalog *persona.Catalog) {
	name := lipgloss.NewStyle().Bold(true)
	muted := lipgloss.NewStyle().Faint(true)
	for _, p := range catalog.Personas {
		title := p.Name
		if p.Title != "" {
			title += ", " + p.Title
		}
		fmt.Fprintf(w, "%s  %s\n", name.Render(p.ID), title)
		if p.Description != "" {
			fmt.Fprintf(w, "    %s\n", muted.Render(p.Description))
		}
		if p.RequiresIndustry {
			fmt.Fprintf(w, "    requires --industry\n")
		}
	}
	if len(catalog.Industries) > 0 {
		fmt.Fprintf(w, "\nindustries: %s\n", strings.Join(catalog.Industries, ", "))
	}
}
