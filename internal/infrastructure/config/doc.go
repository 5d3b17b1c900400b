// Package config handles loading and validating Homey bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HOMEY_BRIDGE_* environment variables
//   - Validation of required fields and the hubs list
//   - Default value handling
//
// Security Considerations:
//   - Hub tokens and broker passwords should be set via environment variables
//     (HOMEY_BRIDGE_HUB_TOKEN_<ID>, HOMEY_BRIDGE_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, hub := range cfg.EnabledHubs() {
//	    fmt.Println(hub.ID, hub.Address)
//	}
package config
