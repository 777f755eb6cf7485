package diag

import "fmt"

// Code identifies a diagnostic kind. Codes share the worker's numbering.
type Code uint32

const (
	UnknownCode Code = 0

	// Лексические / синтаксические
	CodeUnterminatedString Code = 1002
	CodeExpected           Code = 1005
	CodeCommentNotClosed   Code = 1010
	CodeStatementExpected  Code = 1128

	// Проектные
	CodeEmptyFile    Code = 1208
	CodeFileNotFound Code = 6053
)

var codeTitle = map[Code]string{
	UnknownCode:            "unknown error",
	CodeUnterminatedString: "Unterminated string literal.",
	CodeExpected:           "'%s' expected.",
	CodeCommentNotClosed:   "'*/' expected.",
	CodeStatementExpected:  "Declaration or statement expected.",
	CodeEmptyFile:          "File '%s' is empty.",
	CodeFileNotFound:       "File '%s' not found.",
}

// Title returns the message template registered for the code.
func (c Code) Title() string {
	if t, ok := codeTitle[c]; ok {
		return t
	}
	return codeTitle[UnknownCode]
}

// Message formats the code's template with args.
func (c Code) Message(args ...any) string {
	if len(args) == 0 {
		return c.Title()
	}
	return fmt.Sprintf(c.Title(), args...)
}

func (c Code) String() string {
	return fmt.Sprintf("TS%d", uint32(c))
}
