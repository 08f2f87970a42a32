package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/model"
	"github.com/stratadb/strata/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB      string // database path (overrides config)
	Config  string // optional YAML config path
	Type    string // entity type to operate on
	Format  string // "json" | "text"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the strata CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "strata - versioned JSON documents on SQLite",
		Long:  "A hybrid store: relational metadata and indexes around schema-less, versioned JSON documents.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML config file path")
	cmd.PersistentFlags().StringVarP(&opts.Type, "type", "t", "Document", "entity type to operate on")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session bundles the open store and the versioned model a command
// operates on. Close releases the connection.
type session struct {
	store *store.Store
	model *model.VersionedModel
}

func (s *session) Close() error {
	return s.store.Close()
}

// open loads configuration, opens the database, and constructs the
// versioned model for the selected entity type.
func (o *RootOptions) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.DB != "" {
		cfg.Database = o.DB
	}

	slog.Debug("opening database", "path", cfg.Database, "type", o.Type)

	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	vm, err := model.NewVersioned(ctx, s, o.Type, cfg.ForeignKeys,
		model.WithTablePrefix(cfg.TablePrefix),
		model.WithMaxRetries(cfg.MaxRetries),
	)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "initialize model", err)
	}

	return &session{store: s, model: vm}, nil
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
