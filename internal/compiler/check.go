// Package compiler is the reference worker: a small checker over the
// package's source files and an image builder for the target artifact.
package compiler

import (
	"context"
	"strconv"
	"strings"

	"kside/internal/diag"
	"kside/internal/project"
	"kside/internal/source"
	"kside/internal/trace"
)

var closerFor = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// Check reports problems in every source file of opts, in SourceFiles order.
func Check(ctx context.Context, opts *project.CompileOptions) []diag.Diagnostic {
	diags := make([]diag.Diagnostic, 0)
	for _, name := range opts.SourceFiles {
		content, ok := opts.FileSystem[name]
		if !ok {
			diags = append(diags, diag.New(diag.CategoryError, diag.CodeFileNotFound, diag.CodeFileNotFound.Message(name)))
			continue
		}
		_, span := trace.StartSpan(ctx, trace.ScopeFile, "check:"+name)
		found := CheckFile(name, content)
		span.Attr("diagnostics", strconv.Itoa(len(found))).End("")
		diags = append(diags, found...)
	}
	return diags
}

// CheckFile scans one file. Spans are UTF-16 character offsets into content
// exactly as given, line endings and BOM included.
func CheckFile(name, content string) []diag.Diagnostic {
	text := content
	s := &scanner{file: source.NewFile(name, content), name: name}

	if strings.TrimSpace(strings.TrimPrefix(text, "\ufeff")) == "" {
		s.report(0, 0, diag.CategoryWarning, diag.CodeEmptyFile, diag.CodeEmptyFile.Message(name))
		return s.diags
	}

	var stack []int // offsets of open brackets
	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		switch {
		case c == '/' && i+1 < n && text[i+1] == '/':
			for i < n && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && text[i+1] == '*':
			start := i
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				s.report(start, 2, diag.CategoryError, diag.CodeCommentNotClosed, diag.CodeCommentNotClosed.Message())
				i = n
				break
			}
			i += 2 + end + 1
		case c == '"' || c == '\'' || c == '`':
			start := i
			closed := false
			for i++; i < n; i++ {
				ch := text[i]
				if ch == '\\' {
					i++
					continue
				}
				if ch == c {
					closed = true
					break
				}
				if ch == '\n' && c != '`' {
					break
				}
			}
			if !closed {
				s.report(start, min(i, n)-start, diag.CategoryError, diag.CodeUnterminatedString, diag.CodeUnterminatedString.Message())
				if i >= n {
					i = n
				}
			}
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, i)
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 {
				s.report(i, 1, diag.CategoryError, diag.CodeStatementExpected, diag.CodeStatementExpected.Message())
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if want := closerFor[text[open]]; want != c {
				s.report(i, 1, diag.CategoryError, diag.CodeExpected, diag.CodeExpected.Message(string(want)))
			}
		}
	}
	for j := len(stack) - 1; j >= 0; j-- {
		want := closerFor[text[stack[j]]]
		s.report(n, 0, diag.CategoryError, diag.CodeExpected, diag.CodeExpected.Message(string(want)))
	}
	return s.diags
}

type scanner struct {
	file  *source.File
	name  string
	diags []diag.Diagnostic
}

// report takes a byte span and records it in character offsets.
func (s *scanner) report(off, length int, cat diag.Category, code diag.Code, msg string) {
	start := s.file.CharOffset(off)
	end := s.file.CharOffset(off + length)
	pos := s.file.Position(start)
	s.diags = append(s.diags, diag.At(s.name, start, end-start,
		diag.Position{Line: int(pos.Line) - 1, Character: int(pos.Col) - 1},
		cat, code, msg))
}
