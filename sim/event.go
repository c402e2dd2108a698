package sim

import "fmt"

// EventType is the stable tag under which events are declared, routed and
// converted. Two events with the same tag are interchangeable for routing.
type EventType string

// Event is anything exchanged between models. The kernel only looks at the tag.
type Event interface {
	Type() EventType
}

// BasicEvent is a general-purpose event carrying an arbitrary payload.
type BasicEvent struct {
	Tag     EventType
	Payload any
}

// Type returns the event's tag.
func (e BasicEvent) Type() EventType { return e.Tag }

func (e BasicEvent) String() string {
	if e.Payload == nil {
		return string(e.Tag)
	}
	return fmt.Sprintf("%s(%v)", e.Tag, e.Payload)
}

// NewEvent builds a BasicEvent.
func NewEvent(tag EventType, payload any) BasicEvent {
	return BasicEvent{Tag: tag, Payload: payload}
}

// retypedEvent presents an existing event under another tag.
type retypedEvent struct {
	Event
	tag EventType
}

func (e retypedEvent) Type() EventType { return e.tag }

func (e retypedEvent) String() string {
	return fmt.Sprintf("%s<-%v", e.tag, e.Event)
}

// Unwrap returns the event as originally emitted.
func (e retypedEvent) Unwrap() Event { return e.Event }

// Retype returns ev seen as an event of tag t. It returns ev itself when the
// tags already match.
func Retype(ev Event, t EventType) Event {
	if ev.Type() == t {
		return ev
	}
	if r, ok := ev.(retypedEvent); ok {
		ev = r.Event
		if ev.Type() == t {
			return ev
		}
	}
	return retypedEvent{Event: ev, tag: t}
}

// Payload extracts the payload of a BasicEvent, looking through Retype wrappers.
func Payload(ev Event) (any, bool) {
	for {
		switch e := ev.(type) {
		case BasicEvent:
			return e.Payload, true
		case *BasicEvent:
			return e.Payload, true
		case retypedEvent:
			ev = e.Event
		default:
			return nil, false
		}
	}
}

// EventConverter transforms an event crossing a model boundary. A nil
// converter is the identity.
type EventConverter func(Event) Event

// Apply runs the converter, treating nil as the identity.
func (c EventConverter) Apply(ev Event) Event {
	if c == nil {
		return ev
	}
	return c(ev)
}

// ComposeConverters returns the converter applying first and then next.
// Along a routing path that is source-to-sink order.
func ComposeConverters(first, next EventConverter) EventConverter {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ev Event) Event { return next(first(ev)) }
}

// convertTo applies c and makes sure the result carries tag t.
func convertTo(c EventConverter, ev Event, t EventType) Event {
	return Retype(c.Apply(ev), t)
}
