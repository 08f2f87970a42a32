package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewLsCommand creates the ls command: list document names.
func NewLsCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List document names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			names, err := sess.model.GetAll(cmd.Context(), limit, offset)
			if err != nil {
				return WrapExitError(ExitFailure, "list", err)
			}
			count, err := sess.model.Count(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "count", err)
			}

			if opts.Format == "json" {
				return opts.formatter(cmd).Success(map[string]any{
					"count": count,
					"names": names,
				})
			}

			if len(names) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d document(s)\n", count)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max names to list (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "names to skip")
	return cmd
}
