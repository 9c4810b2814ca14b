// Package cli implements the compgraph command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matzehuels/compgraph/internal/config"
	"github.com/matzehuels/compgraph/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	v          *viper.Viper
	configPath string
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		v:      viper.New(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Config returns the configuration loaded for the running command.
func (c *CLI) Config() config.Config { return c.cfg }

// RootCommand creates the root cobra command with all subcommands registered.
// Configuration is loaded before any subcommand runs.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "compgraph manages persistent component reference graphs",
		Long: `compgraph stores hierarchical components that reference each other by id,
possibly in cycles, and moves subgraphs between stores as portable documents.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.v, c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/compgraph/config.toml)")
	flags.String("store", "", "store DSN: path, sqlite:<path>, memory:, redis://..., mongodb://...")
	flags.Bool("trace", false, "write OpenTelemetry spans to stderr")
	flags.Bool("no-cache", false, "disable the child reference cache")
	_ = c.v.BindPFlag("store", flags.Lookup("store"))
	_ = c.v.BindPFlag("trace", flags.Lookup("trace"))

	root.AddCommand(c.createCommand())
	root.AddCommand(c.linkCommand())
	root.AddCommand(c.unlinkCommand())
	root.AddCommand(c.lsCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.typesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// noCache reports whether --no-cache was given or caching is disabled in config.
func (c *CLI) noCache(cmd *cobra.Command) bool {
	if off, _ := cmd.Flags().GetBool("no-cache"); off {
		return true
	}
	return !c.cfg.Cache.Enabled
}
