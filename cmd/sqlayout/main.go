package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/sadopc/sqlayout/internal/adapter"
	"github.com/sadopc/sqlayout/internal/config"
	"github.com/sadopc/sqlayout/internal/theme"

	// Register database adapters
	_ "github.com/sadopc/sqlayout/internal/adapter/sqlite"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli holds the state shared by every subcommand once the root command has
// loaded the configuration.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
	color      string
	themeName  string

	cfg   *config.Config
	log   *slog.Logger
	theme *theme.Theme
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		th := c.theme
		if th == nil {
			th = theme.Default()
		}
		fmt.Fprintln(stderr, th.ErrorText.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlayout",
		Short: "Compile schema documents into SQLite DDL",
		Long: `sqlayout turns YAML or XML schema documents into SQLite CREATE
statements, ordered so every table exists before anything references it.

Examples:
  sqlayout compile shop.yaml                 # Print the DDL
  sqlayout compile -o shop.sql shop.yaml     # Write it to a file
  sqlayout compile --watch shop.yaml         # Recompile on every save
  sqlayout apply --db ./shop.db shop.yaml    # Create the schema in a database
  sqlayout browse shop.yaml                  # Explore the statements`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "Config file path")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Log debug output to stderr")
	pf.StringVar(&c.color, "color", "", "Color output: auto, always or never")
	pf.StringVar(&c.themeName, "theme", "", "Color theme ("+strings.Join(theme.Names(), ", ")+")")

	root.AddCommand(
		c.compileCmd(),
		c.validateCmd(),
		c.orderCmd(),
		c.convertCmd(),
		c.applyCmd(),
		c.inspectCmd(),
		c.browseCmd(),
		c.historyCmd(),
		c.configCmd(),
		c.versionCmd(),
	)
	return root
}

// setup loads the configuration, applies environment and flag overrides,
// and prepares logging and styling.
func (c *cli) setup(cmd *cobra.Command) error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.Load(c.configPath)
	} else {
		c.cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	if err := c.cfg.LoadEnv("."); err != nil {
		return err
	}

	pf := cmd.Flags()
	if pf.Changed("color") {
		c.cfg.Output.Color = c.color
	}
	if pf.Changed("theme") {
		c.cfg.Output.Theme = c.themeName
	}
	if err := c.cfg.Check(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.log = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))

	th, ok := theme.Lookup(c.cfg.Output.Theme)
	if !ok {
		c.log.Warn("unknown theme, using default", "theme", c.cfg.Output.Theme)
		th = theme.Default()
	}
	c.theme = th

	switch c.cfg.Output.Color {
	case "always":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return nil
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "sqlayout %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(c.stdout, "\nSupported adapters:")
			for _, name := range adapter.Names() {
				fmt.Fprintf(c.stdout, "  - %s\n", name)
			}
		},
	}
}
