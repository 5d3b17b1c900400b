// Package mqtt connects the Homey bridge to the site MQTT broker.
//
// The bridge publishes entity state, health and notifications, and
// receives commands for Homey entities. Topics follow the flat scheme
// graylogic/{category}/homey/{id}:
//
//	graylogic/state/homey/{entity_id}      retained entity state
//	graylogic/command/homey/{entity_id}    inbound commands
//	graylogic/health/homey                 retained bridge health
//	graylogic/notify/homey/{id}            adapter notifications
//
// The client reconnects on its own and restores subscriptions after
// every reconnect. A Last Will marks the bridge offline on
// graylogic/system/status if the process dies.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllHomeyCommands(), 1, handleCommand)
package mqtt
