package formulaengine

import "fmt"

// ParseError is returned by the lexer and parser. It carries a source span
// so callers (notably the reference rewriters) can report precisely where
// a formula failed to parse.
type ParseError struct {
	Message  string
	Position NodePosition
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (at %d:%d)", e.Message, e.Position.Start, e.Position.End)
}

// AppErrorCode enumerates application/API-level failures -- distinct from
// the in-cell ErrorCode taxonomy in value.go. These are reported through
// Go's normal error path; evaluation APIs never return one.
type AppErrorCode int

const (
	AppErrorUnknown AppErrorCode = iota
	AppErrorWorkbookNotFound
	AppErrorWorkbookExists
	AppErrorSheetNotFound
	AppErrorSheetExists
	AppErrorTableNotFound
	AppErrorTableExists
	AppErrorNamedRangeNotFound
	AppErrorNamedRangeExists
	AppErrorInvalidAddress
	AppErrorInvalidRange
)

// AppError is the error type returned by mutation APIs (sheet not found,
// name already taken, ...). It never represents an in-cell evaluation
// failure -- those are CellValue{Type: CellValueError} values instead.
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(code AppErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}
