package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/stratadb/strata/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (document not found, etc.)
	ExitCommandError = 2 // Command error (invalid flags, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string `json:"status"`         // "ok" or "error"
	Data   any    `json:"data,omitempty"` // success payload
}

// Success outputs a successful result in the configured format.
// In text mode, data must implement fmt.Stringer or be printable.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// documentView is the stable wire shape for one document version.
type documentView struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	Version     int64             `json:"version"`
	CreatedAt   string            `json:"created_at"`
	ForeignKeys model.ForeignKeys `json:"foreign_keys,omitempty"`
	Content     model.Content     `json:"content"`
}

func newDocumentView(doc *model.Document) documentView {
	view := documentView{
		ID:        doc.ID,
		Type:      doc.Type,
		Name:      doc.Name,
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
		Content:   doc.Content,
	}
	if len(doc.ForeignKeys) > 0 {
		view.ForeignKeys = doc.ForeignKeys
	}
	return view
}

// String renders the text form: one header line plus the content.
func (v documentView) String() string {
	content, err := json.Marshal(v.Content)
	if err != nil {
		content = []byte("<unprintable>")
	}
	return fmt.Sprintf("%s v%d (%s)\n%s", v.Name, v.Version, v.CreatedAt, content)
}
