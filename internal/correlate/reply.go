package correlate

import (
	"errors"
	"fmt"

	"kside/internal/wire"
)

// ErrNoResponse reports a reply that carried no result at all.
var ErrNoResponse = errors.New("no response")

// WorkerError is a failure reported by the worker itself. Message is the
// worker's text, verbatim.
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string {
	return e.Message
}

// ReplyKind tells which variant a Reply holds.
type ReplyKind uint8

const (
	ReplyOK ReplyKind = iota
	ReplyMissing
	ReplyFailed
	ReplyAborted
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyOK:
		return "ok"
	case ReplyMissing:
		return "missing"
	case ReplyFailed:
		return "failed"
	case ReplyAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Reply is the outcome delivered to a pending request.
type Reply struct {
	Kind    ReplyKind
	Payload wire.Raw // ReplyOK
	Message string   // ReplyFailed
	Cause   error    // ReplyAborted
}

// OK wraps a successful payload.
func OK(payload wire.Raw) Reply { return Reply{Kind: ReplyOK, Payload: payload} }

// Missing is a reply with no result.
func Missing() Reply { return Reply{Kind: ReplyMissing} }

// Failed is a worker-reported failure.
func Failed(msg string) Reply { return Reply{Kind: ReplyFailed, Message: msg} }

// Aborted is a request that will never get a worker reply.
func Aborted(cause error) Reply { return Reply{Kind: ReplyAborted, Cause: cause} }

// Err maps the reply to the error its caller sees, nil for ReplyOK.
func (r Reply) Err() error {
	switch r.Kind {
	case ReplyOK:
		return nil
	case ReplyMissing:
		return ErrNoResponse
	case ReplyFailed:
		return &WorkerError{Message: r.Message}
	case ReplyAborted:
		if r.Cause == nil {
			return ErrNoResponse
		}
		return r.Cause
	default:
		return fmt.Errorf("unknown reply kind %d", r.Kind)
	}
}

// FromResponse classifies an inbound worker response. An absent result is
// Missing; a result carrying a non-empty errorMessage is Failed; anything
// else, including results the codec cannot read as an error probe, is OK.
func FromResponse(codec wire.Codec, resp wire.Response) Reply {
	if resp.Result == nil {
		return Missing()
	}
	var probe wire.ErrorResult
	if err := wire.Decode(codec, resp.Result, &probe); err == nil && probe.ErrorMessage != "" {
		return Failed(probe.ErrorMessage)
	}
	return OK(resp.Result)
}
