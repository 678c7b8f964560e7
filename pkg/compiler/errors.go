package compiler

import "fmt"

// ErrorKind tells which pipeline stage rejected the source.
type ErrorKind int

const (
	ScanError ErrorKind = iota
	ParseError
	CodegenError
)

func (k ErrorKind) String() string {
	switch k {
	case ScanError:
		return "scan error"
	case ParseError:
		return "parse error"
	case CodegenError:
		return "codegen error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// atEnd is the Location reported when the parser runs out of tokens.
const atEnd = " at end"

// Error is a user-facing compile diagnostic. Location is empty for scan
// errors, the offending lexeme for parse errors, or " at end".
type Error struct {
	Kind     ErrorKind
	Line     int
	Location string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[line %d] Error %s: %s", e.Line, e.Location, e.Message)
}

func scanError(line int, msg string) *Error {
	return &Error{Kind: ScanError, Line: line, Message: msg}
}

// tokenError builds a parse error located at tok.
func tokenError(tok Token, msg string) *Error {
	loc := tok.Lexeme
	if tok.Type == EOF {
		loc = atEnd
	}
	return &Error{Kind: ParseError, Line: tok.Line, Location: loc, Message: msg}
}
