package diag

// Position is a 0-based line/character pair as computed by the worker.
type Position struct {
	Line      int `json:"line" msgpack:"line"`
	Character int `json:"character" msgpack:"character"`
}

type Diagnostic struct {
	File     string    `json:"fileName,omitempty" msgpack:"fileName,omitempty"`
	Start    int       `json:"start" msgpack:"start"`
	Length   int       `json:"length,omitempty" msgpack:"length,omitempty"`
	Pos      *Position `json:"pos,omitempty" msgpack:"pos,omitempty"`
	Category Category  `json:"category" msgpack:"category"`
	Code     Code      `json:"code" msgpack:"code"`
	Message  string    `json:"messageText" msgpack:"messageText"`
}

// HasFile reports whether the diagnostic is attributed to a source file.
func (d Diagnostic) HasFile() bool {
	return d.File != ""
}

// New builds a file-less diagnostic.
func New(cat Category, code Code, msg string) Diagnostic {
	return Diagnostic{Category: cat, Code: code, Message: msg}
}

// At builds a diagnostic attributed to file at the given offset and 0-based position.
func At(file string, start, length int, pos Position, cat Category, code Code, msg string) Diagnostic {
	p := pos
	return Diagnostic{
		File:     file,
		Start:    start,
		Length:   length,
		Pos:      &p,
		Category: cat,
		Code:     code,
		Message:  msg,
	}
}
