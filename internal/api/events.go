package api

import (
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-homey/internal/bridges/homey"
	"github.com/nerrad567/gray-logic-homey/internal/entity"
	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

// Event stream channels.
const (
	EventEntityStateChanged  = "entity.state_changed"
	EventAdapterStateChanged = "adapter.state_changed"
	EventNotificationRaised  = "notification.raised"
)

var knownChannels = []string{EventEntityStateChanged, EventAdapterStateChanged, EventNotificationRaised}

// Event is one entry on the event stream. AdapterID and EntityID are set
// when the event concerns a single adapter or entity and drive filtering.
type Event struct {
	Channel   string    `json:"channel"`
	AdapterID string    `json:"adapter_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Snapshot  bool      `json:"snapshot,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// EntityStateData is the data of an entity.state_changed event. Snapshot
// events carry the full state and no changes.
type EntityStateData struct {
	Domain  entity.Domain     `json:"domain"`
	Changes entity.Attributes `json:"changes,omitempty"`
	State   entity.Attributes `json:"state"`
}

// AdapterStateData is the data of an adapter.state_changed event.
type AdapterStateData struct {
	State string `json:"state"`
}

func entityStateEvent(change entity.StateChange) Event {
	return Event{
		Channel:   EventEntityStateChanged,
		AdapterID: change.AdapterID,
		EntityID:  change.EntityID,
		Timestamp: change.Timestamp.UTC(),
		Data: EntityStateData{
			Domain:  change.Domain,
			Changes: change.Changes,
			State:   change.State,
		},
	}
}

// entitySnapshotEvent reports the current state of e to a new subscriber.
func entitySnapshotEvent(e entity.Entity) Event {
	state := e.Attributes
	if state == nil {
		state = entity.Attributes{}
	}
	ts := e.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Channel:   EventEntityStateChanged,
		AdapterID: e.AdapterID,
		EntityID:  e.ID,
		Snapshot:  true,
		Timestamp: ts.UTC(),
		Data:      EntityStateData{Domain: e.Domain, State: state},
	}
}

func adapterStateEvent(adapterID string, state homey.ConnectionState) Event {
	return Event{
		Channel:   EventAdapterStateChanged,
		AdapterID: adapterID,
		Timestamp: time.Now().UTC(),
		Data:      AdapterStateData{State: state.String()},
	}
}

func notificationEvent(n notify.Notification) Event {
	return Event{
		Channel:   EventNotificationRaised,
		Timestamp: n.CreatedAt.UTC(),
		Data:      n,
	}
}

// Filter selects the events a client receives. An empty adapter or entity
// set matches every id; events without an id always pass that set.
type Filter struct {
	Channels map[string]struct{}
	Adapters map[string]struct{}
	Entities map[string]struct{}
}

func newFilter() Filter {
	return Filter{Channels: map[string]struct{}{}}
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if _, ok := f.Channels[ev.Channel]; !ok {
		return false
	}
	if !matchID(f.Adapters, ev.AdapterID) {
		return false
	}
	return matchID(f.Entities, ev.EntityID)
}

func matchID(set map[string]struct{}, id string) bool {
	if len(set) == 0 || id == "" {
		return true
	}
	_, ok := set[id]
	return ok
}

// channelList returns the subscribed channels in a stable order.
func (f Filter) channelList() []string {
	out := make([]string, 0, len(f.Channels))
	for ch := range f.Channels {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
