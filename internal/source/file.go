package source

import (
	"sort"
	"strings"

	"fortio.org/safecast"
)

const maxUint32 = ^uint32(0)

// File is a source text with a line index. The text is kept exactly as
// given: no BOM stripping and no line-ending rewrite, so character offsets
// from the compiler resolve against the same text the editor holds.
type File struct {
	Path string
	Text string

	lineStarts []int // byte offsets, lineStarts[0] == 0
}

// NewFile indexes text.
func NewFile(path, text string) *File {
	return &File{
		Path:       normalizePath(path),
		Text:       text,
		lineStarts: buildLineStarts(text),
	}
}

// Len returns the text length in UTF-16 code units.
func (f *File) Len() int {
	if f == nil {
		return 0
	}
	return UTF16Len(f.Text)
}

// CharOffset converts a byte offset into a character offset (UTF-16 code
// units). Byte offsets past the end clamp to the end.
func (f *File) CharOffset(byteOff int) int {
	byteOff = min(max(byteOff, 0), len(f.Text))
	return UTF16Len(f.Text[:byteOff])
}

// ByteOffset converts a character offset into a byte offset. An offset
// inside a surrogate pair moves to the end of the pair; offsets past the
// end clamp to the end.
func (f *File) ByteOffset(char int) int {
	units := 0
	for i, r := range f.Text {
		if units >= char {
			return i
		}
		units += runeUnits(r)
	}
	return len(f.Text)
}

// Position converts a character offset into a 1-based line and UTF-16
// column. Offsets past the end clamp to the end of the text.
func (f *File) Position(char int) LineCol {
	b := f.ByteOffset(char)
	line := sort.Search(len(f.lineStarts), func(i int) bool { return f.lineStarts[i] > b }) - 1
	col := UTF16Len(f.Text[f.lineStarts[line]:b])
	return LineCol{Line: safeUint32(line + 1), Col: safeUint32(col + 1)}
}

// Line returns the text of a 1-based line without its line break.
func (f *File) Line(n int) string {
	if f == nil || n < 1 || n > len(f.lineStarts) {
		return ""
	}
	end := len(f.Text)
	if n < len(f.lineStarts) {
		end = f.lineStarts[n]
	}
	seg := f.Text[f.lineStarts[n-1]:end]
	for _, br := range []string{"\r\n", "\n", "\r", "\u2028", "\u2029"} {
		if s, ok := strings.CutSuffix(seg, br); ok {
			return s
		}
	}
	return seg
}

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}
