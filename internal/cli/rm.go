package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRmCommand creates the rm command. By default it pops the latest
// version ("undo the last write"); --version removes one specific
// version and --all removes every version of the name.
func NewRmCommand(opts *RootOptions) *cobra.Command {
	var version int64
	var all bool

	cmd := &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove the latest version, one version, or all versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if all && version > 0 {
				return NewExitError(ExitCommandError, "--all and --version are mutually exclusive")
			}

			sess, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			out := opts.formatter(cmd)
			ctx := cmd.Context()

			switch {
			case all:
				affected, err := sess.model.DeleteAllVersions(ctx, name)
				if err != nil {
					return WrapExitError(ExitFailure, "delete all versions", err)
				}
				return out.Success(fmt.Sprintf("removed %d version(s) of %q", affected, name))

			case version > 0:
				affected, err := sess.model.DeleteVersion(ctx, name, version)
				if err != nil {
					return WrapExitError(ExitFailure, "delete version", err)
				}
				return out.Success(fmt.Sprintf("removed %d version(s) of %q", affected, name))

			default:
				doc, err := sess.model.Delete(ctx, name)
				if err != nil {
					return WrapExitError(ExitFailure, "delete", err)
				}
				if doc == nil {
					return NewExitError(ExitFailure, fmt.Sprintf("document %q not found", name))
				}
				return out.Success(fmt.Sprintf("removed %s v%d", doc.Name, doc.Version))
			}
		},
	}

	cmd.Flags().Int64Var(&version, "version", 0, "remove this specific version")
	cmd.Flags().BoolVar(&all, "all", false, "remove every version of the name")
	return cmd
}
