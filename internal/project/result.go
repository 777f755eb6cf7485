package project

import "kside/internal/diag"

// CompileArg is the argument of the compile and setOptions operations.
type CompileArg struct {
	Options *CompileOptions `json:"options" msgpack:"options"`
}

// CompileResult is what the worker returns for compile.
type CompileResult struct {
	OutFiles    map[string]string `json:"outfiles" msgpack:"outfiles"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}

// DiagnosticsResult is what the worker returns for allDiags.
type DiagnosticsResult struct {
	Diagnostics []diag.Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}
