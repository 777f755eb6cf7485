package diag

import "sort"

// HasErrors возвращает true, если есть хотя бы одна диагностика категории Error.
func HasErrors(list []Diagnostic) bool {
	for i := range list {
		if list[i].Category == CategoryError {
			return true
		}
	}
	return false
}

// Count returns how many diagnostics have the given category.
func Count(list []Diagnostic, cat Category) int {
	n := 0
	for i := range list {
		if list[i].Category == cat {
			n++
		}
	}
	return n
}

// Sort orders diagnostics by file, start, category (errors first) and code
// for stable output. File-less diagnostics go last.
func Sort(list []Diagnostic) {
	sort.SliceStable(list, func(i, j int) bool {
		di, dj := list[i], list[j]
		if di.HasFile() != dj.HasFile() {
			return di.HasFile()
		}
		if di.File != dj.File {
			return di.File < dj.File
		}
		if di.Start != dj.Start {
			return di.Start < dj.Start
		}
		if di.Category != dj.Category {
			return di.Category == CategoryError
		}
		return di.Code < dj.Code
	})
}
