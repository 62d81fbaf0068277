package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Event is the envelope published on a home's channel
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// ChannelFor names the pub/sub channel carrying a home's events
func ChannelFor(homeID string) string {
	return fmt.Sprintf("home:%s:events", homeID)
}

// Broadcaster publishes home-scoped events over Redis pub/sub. Fire and
// forget: a failed publish is logged and swallowed, never surfaced to the
// caller.
type Broadcaster struct {
	redis *redis.Client
}

// NewBroadcaster creates a broadcaster on an existing Redis client
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{redis: client}
}

// Publish sends one event to every subscriber of the home's channel
func (b *Broadcaster) Publish(homeID, event string, payload any) {
	msg, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		log.Printf("REALTIME: failed to marshal %s event for home %s: %v", event, homeID, err)
		return
	}
	if err := b.redis.Publish(context.Background(), ChannelFor(homeID), msg).Err(); err != nil {
		log.Printf("REALTIME: publish to home %s failed: %v", homeID, err)
	}
}
