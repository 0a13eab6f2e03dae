package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/sqlayout/internal/config"
	"github.com/sadopc/sqlayout/internal/ddl"
	"github.com/sadopc/sqlayout/internal/document"
	"github.com/sadopc/sqlayout/internal/highlight"
	"github.com/sadopc/sqlayout/internal/history"
)

// compileFlags are the compiler switches shared by the commands that
// compile documents. Each one overrides the config only when given.
type compileFlags struct {
	ifNotExists    bool
	transaction    bool
	pretty         bool
	strictChecks   bool
	deferredCycles string
}

// bindResolve adds the flags that affect validation and ordering.
func (f *compileFlags) bindResolve(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.strictChecks, "strict-checks", false, "Also reject multiple or misplaced primary keys (pk with fk or unique, WITHOUT ROWID without pk, AUTOINCREMENT off an INTEGER pk)")
	fs.StringVar(&f.deferredCycles, "deferred-cycles", "", "Cycles through deferrable references: allow or reject")
}

// bind adds every compiler flag.
func (f *compileFlags) bind(cmd *cobra.Command) {
	f.bindResolve(cmd)
	fs := cmd.Flags()
	fs.BoolVar(&f.ifNotExists, "if-not-exists", false, "Emit CREATE ... IF NOT EXISTS")
	fs.BoolVar(&f.transaction, "transaction", false, "Wrap the script in BEGIN/COMMIT")
	fs.BoolVar(&f.pretty, "pretty", false, "Put each column on its own line")
}

// apply copies the flags the user set onto cfg.
func (f *compileFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	bools := []struct {
		name string
		dst  *bool
		val  bool
	}{
		{"if-not-exists", &cfg.Compile.IfNotExists, f.ifNotExists},
		{"transaction", &cfg.Compile.Transaction, f.transaction},
		{"pretty", &cfg.Compile.Pretty, f.pretty},
		{"strict-checks", &cfg.Compile.StrictChecks, f.strictChecks},
	}
	for _, b := range bools {
		if fs.Changed(b.name) {
			*b.dst = b.val
		}
	}
	if fs.Changed("deferred-cycles") {
		cfg.Compile.DeferredCycles = f.deferredCycles
	}
	return cfg.Check()
}

// result is one compiled document.
type result struct {
	path string
	doc  *document.Document
	out  *ddl.Output
}

func compileFile(path string, opts []ddl.Option) (result, error) {
	doc, err := document.DecodeFile(path)
	if err != nil {
		return result{}, err
	}
	out, err := doc.Compile(opts...)
	if err != nil {
		return result{}, fmt.Errorf("%s: %w", path, err)
	}
	return result{path: path, doc: doc, out: out}, nil
}

// compileAll compiles paths concurrently. Results keep the order of paths;
// the first failure cancels the files not yet started.
func compileAll(ctx context.Context, paths []string, opts []ddl.Option) ([]result, error) {
	results := make([]result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := compileFile(path, opts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *cli) compileCmd() *cobra.Command {
	var (
		f         compileFlags
		outPath   string
		watch     bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "compile <file>...",
		Short: "Compile schema documents to SQL",
		Long: `Compile reads each document and prints its CREATE statements in
creation order. With several documents each script is preceded by a
comment naming its source.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, c.cfg); err != nil {
				return err
			}
			if noHistory {
				c.cfg.History.Enabled = false
			}
			if watch {
				return c.watch(cmd.Context(), args, outPath)
			}
			return c.compile(cmd.Context(), args, outPath)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the SQL to this file instead of stdout")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Recompile whenever a document changes")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the build in the history")
	return cmd
}

// compile compiles paths, writes the scripts and records them.
func (c *cli) compile(ctx context.Context, paths []string, outPath string) error {
	results, err := compileAll(ctx, paths, c.cfg.CompileOptions())
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := writeFile(outPath, results); err != nil {
			return err
		}
		c.log.Info("wrote script", "path", outPath, "documents", len(results))
	} else if err := writeScripts(c.stdout, results, highlight.New(c.theme)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	c.record(results)
	return nil
}

func writeFile(path string, results []result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	werr := writeScripts(f, results, nil)
	if err := f.Close(); err != nil && werr == nil {
		werr = err
	}
	if werr != nil {
		return fmt.Errorf("write output: %w", werr)
	}
	return nil
}

// writeScripts writes each script followed by a newline and returns the
// first write error. A nil highlighter writes plain SQL.
func writeScripts(w io.Writer, results []result, h *highlight.Highlighter) error {
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "-- %s\n", r.path); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, h.Highlight(r.out.SQL())); err != nil {
			return err
		}
	}
	return nil
}

// record adds the builds to the history. History problems never fail a
// compile; they are logged instead.
func (c *cli) record(results []result) {
	if !c.cfg.History.Enabled {
		return
	}
	path, err := c.cfg.HistoryPath()
	if err != nil {
		c.log.Warn("could not locate history", "error", err)
		return
	}
	hist, err := history.New(path)
	if err != nil {
		c.log.Warn("could not open history", "error", err)
		return
	}
	defer hist.Close()

	for _, r := range results {
		source := absPath(r.path)
		fp := r.out.Fingerprint()
		if last, ok, err := hist.Last(source); err == nil && ok && last.Fingerprint == fp {
			c.log.Debug("build unchanged", "source", source, "fingerprint", fp)
			continue
		}
		_, err := hist.Add(history.Entry{
			Source:      source,
			Root:        r.doc.Root.String(),
			Tables:      r.out.Tables(),
			Views:       r.out.Views(),
			Fingerprint: fp,
			SQL:         r.out.SQL(),
		})
		if err != nil {
			c.log.Warn("could not record build", "source", source, "error", err)
		}
	}
}
