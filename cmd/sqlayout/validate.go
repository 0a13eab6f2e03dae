package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/sqlayout/internal/ddl"
	"github.com/sadopc/sqlayout/internal/document"
)

func (c *cli) validateCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check schema documents without printing SQL",
		Long: `Validate decodes and checks every document and reports each one,
so a single run shows all the broken documents at once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, c.cfg); err != nil {
				return err
			}
			opts := c.cfg.CompileOptions()
			failed := 0
			for _, path := range args {
				r, err := compileFile(path, opts)
				if err != nil {
					failed++
					fmt.Fprintf(c.stdout, "%s %s\n", c.theme.ErrorText.Render("FAIL"), err)
					continue
				}
				fmt.Fprintf(c.stdout, "%s %s %s\n",
					c.theme.SuccessText.Render("ok  "),
					path,
					c.theme.MutedText.Render(summary(r.out)))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents are invalid", failed, len(args))
			}
			return nil
		},
	}
	f.bindResolve(cmd)
	return cmd
}

func (c *cli) orderCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "order <file>",
		Short: "Show the creation order of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, c.cfg); err != nil {
				return err
			}
			r, err := compileFile(args[0], c.cfg.CompileOptions())
			if err != nil {
				return err
			}
			c.printOrder(c.stdout, r.out)
			return nil
		},
	}
	f.bindResolve(cmd)
	return cmd
}

func (c *cli) printOrder(w io.Writer, out *ddl.Output) {
	th := c.theme
	for i, s := range out.Statements {
		style := th.ListTable
		if s.Kind == ddl.KindView {
			style = th.ListView
		}
		fmt.Fprintf(w, "%3d. %-5s %s\n", i+1, s.Kind, style.Render(s.Name))
	}
	if len(out.Forward) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, th.Heading.Render("Forward references (deferred):"))
	for _, e := range out.Forward {
		fmt.Fprintf(w, "  %s -> %s\n", e.From, e.To)
	}
}

func summary(out *ddl.Output) string {
	return fmt.Sprintf("(%d tables, %d views)", out.Tables(), out.Views())
}

func (c *cli) convertCmd() *cobra.Command {
	var (
		to      string
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Rewrite a document in another format",
		Long: `Convert reads a YAML or XML document and writes it in the other
format. Table and view documents are written as a schema holding that
entity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.DecodeFile(args[0])
			if err != nil {
				return err
			}
			target, err := targetFormat(args[0], to)
			if err != nil {
				return err
			}

			w := c.stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := document.Encode(w, doc.Schema(), target); err != nil {
				return fmt.Errorf("convert %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target format: yaml or xml (default: the other one)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the document to this file instead of stdout")
	return cmd
}

// targetFormat parses to, or picks the format path is not in.
func targetFormat(path, to string) (document.Format, error) {
	if strings.TrimSpace(to) != "" {
		return document.ParseFormat(to)
	}
	from, err := document.FormatOf(path)
	if err != nil {
		return 0, err
	}
	if from == document.FormatXML {
		return document.FormatYAML, nil
	}
	return document.FormatXML, nil
}
