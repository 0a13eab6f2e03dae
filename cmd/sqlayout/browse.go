package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/sqlayout/internal/ui/browser"
)

func (c *cli) browseCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Explore the compiled statements of a document",
		Long: `Browse compiles the document and opens an interactive view of its
statements in creation order, with the SQL of the selected one on the
right. Press / to filter by name and ? for all keys.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, c.cfg); err != nil {
				return err
			}
			r, err := compileFile(args[0], c.cfg.CompileOptions())
			if err != nil {
				return err
			}

			p := tea.NewProgram(
				browser.New(r.path, r.out, c.theme),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running browser: %w", err)
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}
