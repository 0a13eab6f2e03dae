package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/sqlayout/internal/highlight"
	"github.com/sadopc/sqlayout/internal/history"
)

func (c *cli) openHistory() (*history.History, error) {
	path, err := c.cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.New(path)
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		limit  int
		search string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent builds",
		Long: `History lists the scripts recorded by compile, newest first. Use
"history show" with a fingerprint prefix to print one of them again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := c.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			var entries []history.Entry
			if search != "" {
				entries, err = hist.Search("%"+search+"%", limit)
			} else {
				entries, err = hist.Recent(limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(c.stdout, c.theme.MutedText.Render("No history entries"))
				return nil
			}
			now := time.Now()
			for _, e := range entries {
				fmt.Fprintln(c.stdout, c.formatEntry(e, now))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only builds whose source contains this text")

	cmd.AddCommand(c.historyShowCmd(), c.historyLastCmd(), c.historyClearCmd())
	return cmd
}

func (c *cli) historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Print the script of a build",
		Long:  `Show prints the script whose fingerprint starts with the given prefix.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := c.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			entries, err := hist.Find(args[0])
			if err != nil {
				return err
			}
			e, err := pickEntry(args[0], entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, highlight.New(c.theme).Highlight(e.SQL))
			return nil
		},
	}
}

func (c *cli) historyLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last <file>",
		Short: "Print the last recorded script of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := c.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			e, ok, err := hist.Last(absPath(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no recorded build of %s", args[0])
			}
			fmt.Fprintln(c.stdout, highlight.New(c.theme).Highlight(e.SQL))
			return nil
		},
	}
}

func (c *cli) historyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := c.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()
			if err := hist.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, c.theme.SuccessText.Render("history cleared"))
			return nil
		},
	}
}

// pickEntry returns the newest of entries, which Find returned for prefix.
// Builds that share a fingerprint have the same script, so only distinct
// fingerprints make a prefix ambiguous.
func pickEntry(prefix string, entries []history.Entry) (history.Entry, error) {
	if len(entries) == 0 {
		return history.Entry{}, fmt.Errorf("no build matches %q", prefix)
	}
	distinct := map[string]bool{}
	for _, e := range entries {
		distinct[e.Fingerprint] = true
	}
	if len(distinct) > 1 {
		fps := make([]string, 0, len(distinct))
		for fp := range distinct {
			fps = append(fps, fp)
		}
		sort.Strings(fps)
		return history.Entry{}, fmt.Errorf("prefix %q is ambiguous: %s", prefix, strings.Join(fps, ", "))
	}
	return entries[0], nil
}

func (c *cli) formatEntry(e history.Entry, now time.Time) string {
	th := c.theme
	return fmt.Sprintf("%s  %-10s  %s %s",
		th.SQLNumber.Render(e.Fingerprint),
		relativeTime(now.Sub(e.BuiltAt)),
		e.Source,
		th.MutedText.Render(fmt.Sprintf("(%d tables, %d views)", e.Tables, e.Views)),
	)
}

// relativeTime formats the age of a build for humans.
func relativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
