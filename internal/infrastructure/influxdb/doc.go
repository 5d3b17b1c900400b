// Package influxdb writes entity state history to InfluxDB v2.
//
// Every attribute change synchronized from a Homey hub is recorded as an
// entity_state point tagged with adapter_id, entity_id and domain. The
// integration is optional: Connect returns ErrDisabled when switched off
// and callers run without history.
package influxdb
