// Package model defines the core record types of the telemetry engine:
// instances, spans, span events, and events, all keyed by a monotonic
// microsecond Timestamp.
package model

import "fmt"

// Timestamp is a non-zero, monotonically increasing microsecond clock value.
// It doubles as the primary key of whatever record was created at that
// instant, so every index in this module is, at bottom, a sorted slice of
// Timestamp.
type Timestamp uint64

// MinTimestamp is the smallest valid Timestamp, used as the open lower bound
// when an index is sliced from its beginning.
const MinTimestamp Timestamp = 1

// MaxTimestamp is the largest representable Timestamp, used as an open upper
// bound when a query does not specify an end.
const MaxTimestamp Timestamp = ^Timestamp(0)

// Add returns ts+n, saturating at MaxTimestamp instead of overflowing.
func (ts Timestamp) Add(n uint64) Timestamp {
	if uint64(MaxTimestamp)-uint64(ts) < n {
		return MaxTimestamp
	}
	return ts + Timestamp(n)
}

// Sub returns ts-n, saturating at MinTimestamp instead of underflowing past
// zero (Timestamp zero is never a valid key).
func (ts Timestamp) Sub(n uint64) Timestamp {
	if uint64(ts) <= n {
		return MinTimestamp
	}
	return ts - Timestamp(n)
}

// InstanceKey is the internal identity of an Instance: the timestamp at
// which it connected.
type InstanceKey = Timestamp

// InstanceID is the external, client-chosen identity of an instance.
type InstanceID uint64

// SpanKey is the internal identity of a Span: the timestamp at which it was
// created.
type SpanKey = Timestamp

// SpanID is the external identity of a span, unique only within its
// instance.
type SpanID uint64

// EventKey is the internal identity of an Event: its own timestamp.
type EventKey = Timestamp

// FullSpanID identifies a span from outside the engine by pairing the
// instance id it belongs to with its span id.
type FullSpanID struct {
	InstanceID InstanceID
	SpanID     SpanID
}

// String renders a FullSpanID in its canonical "<instance-id>-<span-id>"
// wire form.
func (f FullSpanID) String() string {
	return fmt.Sprintf("%d-%d", f.InstanceID, f.SpanID)
}

// ParseFullSpanID parses the "<instance-id>-<span-id>" form used by the
// `stack` filter property.
func ParseFullSpanID(s string) (FullSpanID, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		instancePart, spanPart := s[:i], s[i+1:]
		instanceID, ok := parseUint64(instancePart)
		if !ok {
			continue
		}
		spanID, ok := parseUint64(spanPart)
		if !ok {
			continue
		}
		return FullSpanID{InstanceID: InstanceID(instanceID), SpanID: SpanID(spanID)}, true
	}
	return FullSpanID{}, false
}

func parseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		v = v*10 + uint64(r-'0')
	}
	return v, true
}

// Level is the severity of a span or event, ordered Trace < Debug < Info <
// Warn < Error.
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String renders the canonical uppercase filter-language spelling.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses the canonical uppercase filter-language spelling.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	default:
		return 0, false
	}
}

// Fields is the attribute map attached to instances, spans, and events.
// Values are always strings: the ingress boundary stringifies typed values
// before they ever reach the engine.
type Fields map[string]string

// Clone returns a shallow copy of f, safe to mutate independently.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge copies every key from other into f, overwriting existing keys.
func (f Fields) Merge(other Fields) {
	for k, v := range other {
		f[k] = v
	}
}

// NewInstance is the input to Engine.InsertInstance.
type NewInstance struct {
	ID     InstanceID
	Fields Fields
}

// Instance is a connected client session.
type Instance struct {
	ID             InstanceID
	ConnectedAt    Timestamp
	DisconnectedAt *Timestamp
	Fields         Fields
}

// Key returns the instance's internal identity.
func (i *Instance) Key() InstanceKey { return i.ConnectedAt }

// Duration returns the instance's lifetime in microseconds, if it has
// disconnected.
func (i *Instance) Duration() (uint64, bool) {
	if i.DisconnectedAt == nil {
		return 0, false
	}
	return satSub(uint64(*i.DisconnectedAt), uint64(i.ConnectedAt)), true
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// NewCreateSpanEvent is the Create-kind payload of NewSpanEvent.
type NewCreateSpanEvent struct {
	ParentID *SpanID
	Target   string
	Name     string
	Level    int32
	FileName *string
	FileLine *uint32
	Fields   Fields
}

// NewUpdateSpanEvent is the Update-kind payload of NewSpanEvent.
type NewUpdateSpanEvent struct {
	Fields Fields
}

// NewFollowsSpanEvent is the Follows-kind payload of NewSpanEvent.
type NewFollowsSpanEvent struct {
	Follows SpanID
}

// SpanEventKind discriminates the mutation a span event applies.
type SpanEventKind int

const (
	SpanEventCreate SpanEventKind = iota
	SpanEventUpdate
	SpanEventFollows
	SpanEventEnter
	SpanEventExit
	SpanEventClose
)

// NewSpanEvent is the input to Engine.InsertSpanEvent.
type NewSpanEvent struct {
	InstanceKey InstanceKey
	Timestamp   Timestamp
	SpanID      SpanID
	Kind        SpanEventKind
	Create      *NewCreateSpanEvent
	Update      *NewUpdateSpanEvent
	Follows     *NewFollowsSpanEvent
}

// CreateSpanEvent is the resolved (internal-keyed) form of NewCreateSpanEvent.
type CreateSpanEvent struct {
	ParentKey *SpanKey
	Target    string
	Name      string
	Level     Level
	FileName  *string
	FileLine  *uint32
	Fields    Fields
}

// UpdateSpanEvent is the resolved form of NewUpdateSpanEvent.
type UpdateSpanEvent struct {
	Fields Fields
}

// SpanEvent is an immutable record of one lifecycle transition of a span.
type SpanEvent struct {
	InstanceKey InstanceKey
	Timestamp   Timestamp
	SpanKey     SpanKey
	Kind        SpanEventKind
	Create      *CreateSpanEvent
	Update      *UpdateSpanEvent
	Follows     *SpanKey
}

// Key returns the span event's internal identity.
func (e *SpanEvent) Key() EventKey { return e.Timestamp }

// Span is a named, leveled interval belonging to one instance.
type Span struct {
	InstanceKey InstanceKey
	ID          SpanID
	CreatedAt   Timestamp
	ClosedAt    *Timestamp
	ParentKey   *SpanKey
	Target      string
	Name        string
	Level       Level
	FileName    *string
	FileLine    *uint32
	Fields      Fields
}

// Key returns the span's internal identity.
func (s *Span) Key() SpanKey { return s.CreatedAt }

// Duration returns the span's lifetime in microseconds, if it has closed.
func (s *Span) Duration() (uint64, bool) {
	if s.ClosedAt == nil {
		return 0, false
	}
	return satSub(uint64(*s.ClosedAt), uint64(s.CreatedAt)), true
}

// NewEvent is the input to Engine.InsertEvent.
type NewEvent struct {
	InstanceKey InstanceKey
	Timestamp   Timestamp
	SpanID      *SpanID
	Name        string
	Target      string
	Level       int32
	FileName    *string
	FileLine    *uint32
	Fields      Fields
}

// Event is a point-in-time log record, optionally attached to a span.
type Event struct {
	InstanceKey InstanceKey
	Timestamp   Timestamp
	SpanKey     *SpanKey
	Name        string
	Target      string
	Level       Level
	FileName    *string
	FileLine    *uint32
	Fields      Fields
}

// Key returns the event's internal identity.
func (e *Event) Key() EventKey { return e.Timestamp }

// AttributeKindView describes where a resolved attribute was found.
type AttributeKindView struct {
	Kind       string // "instance", "span", or "inherent"
	InstanceID InstanceID  `json:"instance_id,omitempty"`
	SpanID     *FullSpanID `json:"span_id,omitempty"`
}

// AttributeView is one resolved attribute presented to a caller.
type AttributeView struct {
	Name  string            `json:"name"`
	Value string            `json:"value"`
	Kind  AttributeKindView `json:"kind"`
}

// AncestorView identifies one enclosing span in a presented ancestor chain.
type AncestorView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstanceView is the host-facing projection of an Instance.
type InstanceView struct {
	ID             string           `json:"id"`
	ConnectedAt    Timestamp        `json:"connected_at"`
	DisconnectedAt *Timestamp       `json:"disconnected_at,omitempty"`
	Attributes     []AttributeView  `json:"attributes"`
}

// EventView is the host-facing projection of an Event.
type EventView struct {
	InstanceID string           `json:"instance_id"`
	Ancestors  []AncestorView   `json:"ancestors"`
	Timestamp  Timestamp        `json:"timestamp"`
	Target     string           `json:"target"`
	Name       string           `json:"name"`
	Level      int32            `json:"level"`
	File       *string          `json:"file,omitempty"`
	Attributes []AttributeView  `json:"attributes"`
}

// SpanView is the host-facing projection of a Span.
type SpanView struct {
	ID         string          `json:"id"`
	Ancestors  []AncestorView  `json:"ancestors"`
	CreatedAt  Timestamp       `json:"created_at"`
	ClosedAt   *Timestamp      `json:"closed_at,omitempty"`
	Target     string          `json:"target"`
	Name       string          `json:"name"`
	Level      int32           `json:"level"`
	File       *string         `json:"file,omitempty"`
	Attributes []AttributeView `json:"attributes"`
}

// StatsView summarizes the current contents of the engine.
type StatsView struct {
	Start       *Timestamp `json:"start,omitempty"`
	End         *Timestamp `json:"end,omitempty"`
	TotalSpans  int        `json:"total_spans"`
	TotalEvents int        `json:"total_events"`
}

// FormatFile renders "file:line" for a view, omitting the line when absent.
func FormatFile(name *string, line *uint32) *string {
	if name == nil {
		return nil
	}
	if line == nil {
		s := *name
		return &s
	}
	s := fmt.Sprintf("%s:%d", *name, *line)
	return &s
}
