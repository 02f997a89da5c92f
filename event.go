package rx

import "fmt"

// EventKind identifies what happened to a combination subscription.
type EventKind int

const (
	// EventSubscribed: a downstream observer subscribed to the combination.
	EventSubscribed EventKind = iota

	// EventSourceSubscribed: the listener for Source subscribed to its source.
	EventSourceSubscribed

	// EventValue: Source pushed a value.
	EventValue

	// EventEmitted: a combined value was forwarded downstream.
	EventEmitted

	// EventSourceCompleted: Source signaled completion.
	EventSourceCompleted

	// EventCompleted: the combination completed downstream.
	EventCompleted

	// EventErrored: the combination failed downstream with Err.
	EventErrored

	// EventCancelled: the downstream subscription was cancelled before a
	// terminal event. Err holds any failure raised while cancelling sources.
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventSubscribed:
		return "subscribed"
	case EventSourceSubscribed:
		return "source-subscribed"
	case EventValue:
		return "value"
	case EventEmitted:
		return "emitted"
	case EventSourceCompleted:
		return "source-completed"
	case EventCompleted:
		return "completed"
	case EventErrored:
		return "errored"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is passed to the hook registered with [WithOnEvent].
type Event struct {
	Kind EventKind

	// Source is the index of the source involved, or -1 when the event
	// concerns the combination as a whole.
	Source int

	Err error
}
