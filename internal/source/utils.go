package source

import (
	"path/filepath"
	"strings"
)

// runeUnits is the number of UTF-16 code units r occupies.
func runeUnits(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// UTF16Len returns the length of s in UTF-16 code units. Invalid bytes
// count as one unit each.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// buildLineStarts returns the byte offset of every line start. Line
// breaks are "\r\n", a lone '\r', '\n', U+2028 and U+2029, as the
// compiler counts them.
func buildLineStarts(text string) []int {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		case 0xE2:
			if strings.HasPrefix(text[i:], "\u2028") || strings.HasPrefix(text[i:], "\u2029") {
				i += 2
				starts = append(starts, i+1)
			}
		}
	}
	return starts
}

// normalizePath cleans p and uses forward slashes, matching the file names
// the worker reports.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}
