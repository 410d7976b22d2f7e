package shared

// EventSourcedRoot is embedded by aggregates whose state is a fold of their
// event stream. version counts committed events; pending holds the events
// raised since the aggregate was loaded.
type EventSourcedRoot struct {
	id      string
	version int
	pending []DomainEvent
}

func NewEventSourcedRoot(id string) EventSourcedRoot {
	return EventSourcedRoot{id: id}
}

func (a *EventSourcedRoot) GetID() string {
	return a.id
}

// GetVersion is the stream version the aggregate was loaded at. Repositories
// pass it as the expected version when appending.
func (a *EventSourcedRoot) GetVersion() int {
	return a.version
}

// Raise queues event for the next save
func (a *EventSourcedRoot) Raise(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// Replayed counts one historical event folded during a load
func (a *EventSourcedRoot) Replayed() {
	a.version++
}

func (a *EventSourcedRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// MarkCommitted moves the pending events into the committed version. Call it
// only after the append succeeded.
func (a *EventSourcedRoot) MarkCommitted() {
	a.version += len(a.pending)
	a.pending = nil
}
