package wire

// ReadyID is the reserved correlation id of the worker's startup signal.
const ReadyID = "ready"

// Op names a worker operation.
type Op string

const (
	OpCompile    Op = "compile"
	OpSetOptions Op = "setOptions"
	OpAllDiags   Op = "allDiags"
	OpReset      Op = "reset"
)

// Raw is a codec-encoded payload that has not been decoded yet. A nil Raw
// means the field was absent or null.
type Raw []byte

// Request is an inbound request as seen by the worker.
type Request struct {
	ID  string
	Op  Op
	Arg Raw
}

// Response is an inbound response as seen by the editor.
type Response struct {
	ID     string
	Result Raw
}

// ErrorResult is the result shape a worker uses to report a failure.
type ErrorResult struct {
	ErrorMessage string `json:"errorMessage,omitempty" msgpack:"errorMessage,omitempty"`
}
