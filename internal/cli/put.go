package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratadb/strata/internal/model"
)

// NewPutCommand creates the put command: append a new version of a
// named document.
func NewPutCommand(opts *RootOptions) *cobra.Command {
	var fkPairs []string

	cmd := &cobra.Command{
		Use:   "put NAME [JSON]",
		Short: "Append a new version of a named document",
		Long:  "Appends a new version of NAME. Content is the JSON argument, or stdin when omitted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var raw []byte
			if len(args) == 2 {
				raw = []byte(args[1])
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return WrapExitError(ExitCommandError, "read stdin", err)
				}
				raw = data
			}

			var content model.Content
			if err := json.Unmarshal(raw, &content); err != nil {
				return WrapExitError(ExitCommandError, "parse content", err)
			}

			fks, err := parseFKPairs(fkPairs)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse foreign keys", err)
			}

			sess, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			doc, err := sess.model.Insert(cmd.Context(), name, content, fks)
			if err != nil {
				return WrapExitError(ExitFailure, "insert", err)
			}
			return opts.formatter(cmd).Success(newDocumentView(doc))
		},
	}

	cmd.Flags().StringArrayVar(&fkPairs, "fk", nil, "foreign key as key=value (repeatable)")
	return cmd
}

// parseFKPairs converts repeated key=value flags to foreign keys.
func parseFKPairs(pairs []string) (model.ForeignKeys, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fks := make(model.ForeignKeys, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed foreign key %q: want key=value", pair)
		}
		fks[key] = value
	}
	return fks, nil
}
