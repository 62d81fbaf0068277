package mqtt

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"homewatt/internal/models"
)

// Commander publishes desired device state to the device's command topic.
// Delivery is best-effort; the engine never waits on it.
type Commander struct {
	client mqtt.Client
}

// NewCommander creates a command publisher on an established client
func NewCommander(client mqtt.Client) *Commander {
	return &Commander{client: client}
}

type commandPayload struct {
	IsActive     bool                `json:"is_active"`
	Status       models.DeviceStatus `json:"status"`
	CurrentPower float64             `json:"current_power"`
	Mode         string              `json:"mode,omitempty"`
}

// PushState publishes the device's desired state. Uses the device's own
// command topic when set, the conventional home-scoped topic otherwise.
func (c *Commander) PushState(d models.Device) {
	topic := d.MQTTTopic
	if topic == "" {
		topic = fmt.Sprintf("homes/%s/devices/%s/set", d.HomeID, d.ID)
	}
	payload, err := json.Marshal(commandPayload{
		IsActive:     d.IsActive,
		Status:       d.Status,
		CurrentPower: d.CurrentPower,
		Mode:         d.Mode,
	})
	if err != nil {
		log.Printf("MQTT: failed to marshal command for device %s: %v", d.ID, err)
		return
	}
	c.client.Publish(topic, 1, false, payload)
}
