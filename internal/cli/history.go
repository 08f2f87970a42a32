package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command: list versions of a
// named document, newest first.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history NAME",
		Short: "List versions of a document, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			sess, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			docs, err := sess.model.GetVersions(cmd.Context(), name, limit, offset)
			if err != nil {
				return WrapExitError(ExitFailure, "history", err)
			}

			views := make([]documentView, 0, len(docs))
			for _, doc := range docs {
				views = append(views, newDocumentView(doc))
			}

			if opts.Format == "json" {
				return opts.formatter(cmd).Success(views)
			}

			if len(views) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no versions of %q\n", name)
				return nil
			}
			lines := make([]string, 0, len(views))
			for _, v := range views {
				lines = append(lines, v.String())
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max versions to list (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "versions to skip")
	return cmd
}
