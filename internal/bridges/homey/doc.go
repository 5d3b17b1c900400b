// Package homey connects Athom Homey hubs to the Gray Logic entity model.
//
// One Adapter owns one WebSocket connection to one hub. Inbound frames are
// decoded into typed messages and dispatched: the hub acknowledging the
// connection, asking which entities are configured, announcing available
// entities, and pushing state deltas. Outbound commands are encoded into
// the hub's command message.
//
// # Architecture
//
//	Homey ←WebSocket→ Adapter (worker goroutine)
//	                    ├── transition   connection state record, pure
//	                    ├── router       envelope decode and dispatch
//	                    ├── Synchronizer deltas → registry attributes
//	                    └── Encode       commands → wire messages
//
// The Adapter runs everything on a single worker goroutine. Host calls
// (Connect, Disconnect, SendCommand) are enqueued on a bounded mailbox and
// never block. The socket reader and the dialer run on their own
// goroutines and report back through the same worker.
//
// # Reconnection
//
// An unexpected close arms a single-shot 2 s timer. After three failed
// attempts the adapter raises one critical "Cannot connect to Homey."
// notification with a Reconnect action and parks Disconnected until the
// user reconnects.
//
// # Bridge
//
// Bridge hosts one Adapter per configured hub, publishes entity state on
// MQTT, routes MQTT commands to the owning adapter and reports health.
package homey
