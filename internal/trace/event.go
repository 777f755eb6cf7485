package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	// ScopeSession covers a whole CLI command.
	ScopeSession Scope = iota + 1
	// ScopeLane covers one turn of a queue lane.
	ScopeLane
	// ScopeRequest covers one correlated worker request.
	ScopeRequest
	// ScopeFile covers per-file work in the worker and the reducer.
	ScopeFile
)

var scopeNames = [...]string{
	ScopeSession: "session",
	ScopeLane:    "lane",
	ScopeRequest: "request",
	ScopeFile:    "file",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // process-wide, increasing
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for a root span
	GID      uint64
	Name     string // "lane:main", "request:compile", ...
	Detail   string
	Attrs    map[string]string
}
