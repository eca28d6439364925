package text

import "fmt"

// FormatError wraps a parse error with the source position it occurred at,
// formatted the way compiler diagnostics are ("line:col: cause").
type FormatError struct {
	Line, Col int
	cause     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%d:%d: %v", e.Line, e.Col, e.cause)
}

func (e *FormatError) Unwrap() error { return e.cause }

func wrapError(line, col int, cause error) error {
	if cause == nil {
		return nil
	}
	return &FormatError{Line: line, Col: col, cause: cause}
}
