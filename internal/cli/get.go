package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/internal/model"
)

// NewGetCommand creates the get command: read the latest or a specific
// version of a named document.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	var version int64

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Read the latest (or a specific) version of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			sess, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			var doc *model.Document
			if version > 0 {
				doc, err = sess.model.GetVersion(cmd.Context(), name, version)
			} else {
				doc, err = sess.model.Get(cmd.Context(), name)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "get", err)
			}
			if doc == nil {
				return NewExitError(ExitFailure, fmt.Sprintf("document %q not found", name))
			}
			return opts.formatter(cmd).Success(newDocumentView(doc))
		},
	}

	cmd.Flags().Int64Var(&version, "version", 0, "specific version to read (default latest)")
	return cmd
}
