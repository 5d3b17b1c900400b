package mqtt

import (
	"fmt"
	"strings"
)

const (
	// TopicPrefix is the root of every topic the bridge uses.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment for Homey topics.
	Protocol = "homey"
)

// Topics builds the MQTT topics used by the Homey bridge.
//
//	mqtt.Topics{}.HomeyState("light.kitchen")
//	// graylogic/state/homey/light.kitchen
type Topics struct{}

// HomeyState is the retained state topic for one entity.
func (Topics) HomeyState(entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, entityID)
}

// HomeyCommand is the command topic for one entity.
func (Topics) HomeyCommand(entityID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, entityID)
}

// HomeyHealth is the retained bridge health topic.
func (Topics) HomeyHealth() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// HomeyNotification is the topic for a raised notification.
func (Topics) HomeyNotification(notificationID string) string {
	return fmt.Sprintf("%s/notify/%s/%s", TopicPrefix, Protocol, notificationID)
}

// SystemStatus carries the bridge's online/offline status and Last Will.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllHomeyCommands matches commands for every Homey entity.
func (Topics) AllHomeyCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// EntityIDFromCommandTopic extracts the entity id from a command topic.
// It returns false when topic is not a Homey command topic.
func (Topics) EntityIDFromCommandTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, fmt.Sprintf("%s/command/%s/", TopicPrefix, Protocol))
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
