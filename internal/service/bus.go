package service

import "sync"

// Event represents a resource mutation within a project.
type Event struct {
	ProjectID string `json:"project_id"`
	Resource  string `json:"resource"` // "projects", "layers", "styles", "members"
	Action    string `json:"action"`   // "created", "updated", "deleted"
	ID        string `json:"id"`
}

// allProjects keys subscribers that want every project's events.
const allProjects = ""

// EventBus fans project events out to subscribers. Subscribers register for
// one project (or all of them) and never see events for other projects.
type EventBus struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
	owner  map[chan Event]string
}

func NewEventBus() *EventBus {
	return &EventBus{
		topics: make(map[string]map[chan Event]struct{}),
		owner:  make(map[chan Event]string),
	}
}

// Publish delivers e to the project's subscribers and the catch-all ones.
// Slow subscribers miss events rather than block the publisher. A nil bus
// drops the event.
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	deliver(b.topics[e.ProjectID], e)
	if e.ProjectID != allProjects {
		deliver(b.topics[allProjects], e)
	}
}

func deliver(subs map[chan Event]struct{}, e Event) {
	for ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a buffered channel receiving projectID's events; an
// empty projectID receives every event.
func (b *EventBus) Subscribe(projectID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[projectID]
	if !ok {
		subs = make(map[chan Event]struct{})
		b.topics[projectID] = subs
	}
	subs[ch] = struct{}{}
	b.owner[ch] = projectID
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// channels are ignored.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pid, ok := b.owner[ch]
	if !ok {
		return
	}
	delete(b.owner, ch)
	delete(b.topics[pid], ch)
	if len(b.topics[pid]) == 0 {
		delete(b.topics, pid)
	}
	close(ch)
}

// Subscribers reports how many channels listen on projectID.
func (b *EventBus) Subscribers(projectID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[projectID])
}
