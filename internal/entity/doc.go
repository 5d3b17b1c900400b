// Package entity is the registry of entities announced by Homey hubs.
//
// An entity has a Domain (light, blind, media_player, switch, climate),
// an explicit capability set and an attribute map holding its current
// state. Adapters never create entities directly: they hand hub
// announcements to Registry.RegisterAvailable and afterwards only merge
// attribute changes through Registry.UpdateAttributes.
//
// The Registry keeps every entity cached in memory behind an RWMutex and
// persists through a Repository. SQLiteRepository stores capabilities and
// attributes as JSON columns and merges attribute changes in SQL with
// json_patch.
//
// Listeners registered with AddListener are called after every attribute
// change; the MQTT bridge, the API event stream, the Redis cache and
// InfluxDB history all hang off this hook.
package entity
