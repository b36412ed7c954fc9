package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// OutputFormatter handles three output modes: JSON, quiet, and human-readable
type OutputFormatter struct {
	JSON  bool
	Quiet bool

	// Out and Err default to os.Stdout and os.Stderr
	Out io.Writer
	Err io.Writer
}

func (f *OutputFormatter) out() io.Writer {
	if f.Out != nil {
		return f.Out
	}
	return os.Stdout
}

func (f *OutputFormatter) errOut() io.Writer {
	if f.Err != nil {
		return f.Err
	}
	return os.Stderr
}

// Success outputs successful operation result
func (f *OutputFormatter) Success(data any) error {
	if f.Quiet {
		// Extract ID if possible
		if idGetter, ok := data.(interface{ GetID() string }); ok {
			_, err := fmt.Fprintln(f.out(), idGetter.GetID())
			return err
		}
	}

	if f.JSON {
		return json.NewEncoder(f.out()).Encode(map[string]any{
			"success": true,
			"data":    data,
		})
	}

	// Human-readable format
	return f.prettyPrint(data)
}

// Error outputs error information
func (f *OutputFormatter) Error(code string, message string) error {
	return f.ErrorWithSuggestion(code, message, "")
}

// ErrorWithSuggestion outputs error information with an optional suggestion
func (f *OutputFormatter) ErrorWithSuggestion(code string, message string, suggestion string) error {
	if f.JSON {
		errData := map[string]any{
			"code":    code,
			"message": message,
		}
		if suggestion != "" {
			errData["suggestion"] = suggestion
		}
		return json.NewEncoder(f.out()).Encode(map[string]any{
			"success": false,
			"error":   errData,
		})
	}

	// Human-readable error
	fmt.Fprintf(f.errOut(), "❌ Error: %s\n", message)
	if suggestion != "" {
		fmt.Fprintf(f.errOut(), "💡 Suggestion: %s\n", suggestion)
	}
	return nil
}

// Fail reports err with its error code and returns it, so commands can
// `return formatter.Fail(err)`
func (f *OutputFormatter) Fail(err error) error {
	return f.FailWithSuggestion(err, "")
}

// FailWithSuggestion is Fail with a hint for the user
func (f *OutputFormatter) FailWithSuggestion(err error, suggestion string) error {
	if fmtErr := f.ErrorWithSuggestion(ErrorCode(err), err.Error(), suggestion); fmtErr != nil {
		slog.Error("failed to format error message", "error", fmtErr)
	}
	return &reportedError{err: err}
}

// reportedError marks an error the formatter already showed to the user
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already printed by an OutputFormatter
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// prettyPrint formats data for human-readable output
func (f *OutputFormatter) prettyPrint(data any) error {
	if s, ok := data.(fmt.Stringer); ok {
		_, err := fmt.Fprintln(f.out(), s.String())
		return err
	}
	_, err := fmt.Fprintf(f.out(), "%+v\n", data)
	return err
}
