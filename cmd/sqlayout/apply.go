package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sadopc/sqlayout/internal/adapter"
	"github.com/sadopc/sqlayout/internal/audit"
)

func (c *cli) applyCmd() *cobra.Command {
	var (
		f           compileFlags
		dsn         string
		adapterName string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Create the schema of a document in a database",
		Long: `Apply compiles the document and runs its statements against the
database in one transaction. If any statement fails nothing is created.
Every apply is written to the audit log when auditing is enabled.

Examples:
  sqlayout apply --db ./shop.db shop.yaml
  sqlayout apply --db "file:shop.db?_pragma=busy_timeout(5000)" shop.yaml
  sqlayout apply --db ./shop.db --dry-run shop.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, c.cfg); err != nil {
				return err
			}
			r, err := compileFile(args[0], c.cfg.CompileOptions())
			if err != nil {
				return err
			}
			stmts := r.out.Strings()
			if dryRun {
				for _, s := range stmts {
					fmt.Fprintln(c.stdout, s+";")
				}
				return nil
			}
			return c.applyStatements(cmd.Context(), adapterName, dsn, r, stmts)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&dsn, "db", "", "Database DSN or file path")
	cmd.Flags().StringVarP(&adapterName, "adapter", "a", "sqlite", "Database adapter ("+strings.Join(adapter.Names(), ", ")+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of running them")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (c *cli) applyStatements(ctx context.Context, adapterName, dsn string, r result, stmts []string) error {
	a, err := adapter.Lookup(adapterName)
	if err != nil {
		return err
	}
	conn, err := a.Connect(ctx, dsn, adapter.WithLogger(c.log))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	res, applyErr := conn.Apply(ctx, stmts)

	entry := audit.Entry{
		Source:       absPath(r.path),
		Adapter:      a.Name(),
		DatabaseName: conn.DatabaseName(),
		DSN:          dsn,
		Statements:   len(stmts),
		Fingerprint:  r.out.Fingerprint(),
	}
	if res != nil {
		entry.DurationMS = res.Duration.Milliseconds()
	}
	if applyErr != nil {
		entry.IsError = true
		entry.Error = applyErr.Error()
	}
	c.audit(entry)

	if applyErr != nil {
		var ae *adapter.ApplyError
		if errors.As(applyErr, &ae) {
			c.log.Debug("failed statement", "index", ae.Index, "statement", ae.Statement)
		}
		return fmt.Errorf("apply %s: %w (nothing was created)", r.path, applyErr)
	}

	fmt.Fprintln(c.stdout, c.theme.SuccessText.Render(fmt.Sprintf(
		"applied %d statements to %s in %s", res.Statements, conn.DatabaseName(), res.Duration.Round(time.Millisecond))))
	return nil
}

// audit writes e to the audit log when it is enabled. Audit problems are
// logged and never fail the command.
func (c *cli) audit(e audit.Entry) {
	if !c.cfg.Audit.Enabled {
		return
	}
	path, err := c.cfg.AuditPath()
	if err != nil {
		c.log.Warn("could not locate audit log", "error", err)
		return
	}
	l, err := audit.New(path, c.cfg.Audit.MaxSizeMB)
	if err != nil {
		c.log.Warn("could not open audit log", "error", err)
		return
	}
	defer l.Close()
	if err := l.Log(e); err != nil {
		c.log.Warn("could not write audit entry", "error", err)
	}
}

func (c *cli) inspectCmd() *cobra.Command {
	var (
		dsn         string
		adapterName string
	)
	cmd := &cobra.Command{
		Use:   "inspect [table]",
		Short: "List the objects of a database, or describe one table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := adapter.Lookup(adapterName)
			if err != nil {
				return err
			}
			conn, err := a.Connect(cmd.Context(), dsn, adapter.WithLogger(c.log))
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close()

			if len(args) == 0 {
				return c.listObjects(cmd.Context(), conn)
			}
			return c.describeTable(cmd.Context(), conn, args[0])
		},
	}
	cmd.Flags().StringVar(&dsn, "db", "", "Database DSN or file path")
	cmd.Flags().StringVarP(&adapterName, "adapter", "a", "sqlite", "Database adapter")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (c *cli) newTable(headers ...string) *table.Table {
	th := c.theme
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.MutedText).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.Heading.PaddingRight(1)
			}
			return lipgloss.NewStyle().PaddingRight(1)
		})
}

func (c *cli) listObjects(ctx context.Context, conn adapter.Connection) error {
	objs, err := conn.Objects(ctx)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		fmt.Fprintln(c.stdout, c.theme.MutedText.Render("no tables or views"))
		return nil
	}
	t := c.newTable("SCHEMA", "NAME", "TYPE", "COLUMNS", "OPTIONS")
	for _, o := range objs {
		var opts []string
		if o.Strict {
			opts = append(opts, "STRICT")
		}
		if o.WithoutRowid {
			opts = append(opts, "WITHOUT ROWID")
		}
		t.Row(o.Schema, o.Name, o.Type, strconv.Itoa(o.Columns), strings.Join(opts, ", "))
	}
	fmt.Fprintln(c.stdout, t.String())
	return nil
}

func (c *cli) describeTable(ctx context.Context, conn adapter.Connection, name string) error {
	cols, err := conn.Columns(ctx, name)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("no such table: %s", name)
	}
	th := c.theme

	ct := c.newTable("COLUMN", "TYPE", "NOT NULL", "DEFAULT", "PK", "GENERATED")
	for _, col := range cols {
		pk := ""
		if col.PKIndex > 0 {
			pk = strconv.Itoa(col.PKIndex)
		}
		ct.Row(col.Name, col.Type, yesNo(col.NotNull), col.Default, pk, generatedMode(col))
	}
	fmt.Fprintln(c.stdout, th.Heading.Render(name))
	fmt.Fprintln(c.stdout, ct.String())

	idx, err := conn.Indexes(ctx, name)
	if err != nil {
		return err
	}
	if len(idx) > 0 {
		it := c.newTable("INDEX", "UNIQUE", "ORIGIN", "COLUMNS")
		for _, i := range idx {
			it.Row(i.Name, yesNo(i.Unique), i.Origin, strings.Join(i.Columns, ", "))
		}
		fmt.Fprintln(c.stdout, it.String())
	}

	fks, err := conn.ForeignKeys(ctx, name)
	if err != nil {
		return err
	}
	if len(fks) > 0 {
		ft := c.newTable("FROM", "REFERENCES", "ON UPDATE", "ON DELETE")
		for _, fk := range fks {
			ft.Row(fk.From, fk.Table+"("+fk.To+")", fk.OnUpdate, fk.OnDelete)
		}
		fmt.Fprintln(c.stdout, ft.String())
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func generatedMode(col adapter.ColumnInfo) string {
	switch col.Hidden {
	case 2:
		return "virtual"
	case 3:
		return "stored"
	}
	return ""
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
