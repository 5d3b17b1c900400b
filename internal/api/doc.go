// Package api implements the HTTP REST API and WebSocket event stream for the
// Homey bridge.
//
// This package provides:
//   - REST endpoints for hub adapters, entities and notifications
//   - Entity commands routed to the owning adapter
//   - A filtered WebSocket event stream of entity, adapter and notification events
//   - Middleware stack (request ID, logging, recovery, body size limit)
//   - Prometheus scrape endpoint on /metrics
//
// # Architecture
//
// The server sits beside the Homey bridge. Reads come from the entity
// registry and the adapters; commands are handed to the bridge, which queues
// them on the adapter's mailbox. Registry listeners, adapter state callbacks
// and the notification center feed the event stream directly, so clients see
// changes without going through MQTT.
//
// # Event stream
//
// Clients connect to /api/v1/ws and send
//
//	{"type":"subscribe","id":"1","channels":["entity.state_changed"],"adapters":["homey-living"]}
//
// Channels are entity.state_changed, adapter.state_changed and
// notification.raised. The optional adapters and entities lists narrow the
// events to those ids and replace any earlier list. Subscribing to
// entity.state_changed first replays the current state of each matching
// entity as events with "snapshot": true. Events arrive as
//
//	{"type":"event","event":{"channel":"entity.state_changed","adapter_id":"homey-living","entity_id":"light.kitchen","timestamp":"...","data":{...}}}
package api
