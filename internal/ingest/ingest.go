package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"

	"homewatt/internal/db"
	"homewatt/internal/models"
	"homewatt/internal/utils"
)

const stateTopicFilter = "homes/+/devices/+/state"

// Ingest consumes device telemetry from MQTT, debounces bursts through Redis
// streams, and writes the latest report back to the registry and the live
// cache. This is the reporting loop that reconciles stored device state with
// what the hardware actually does.
type Ingest struct {
	mqttClient  mqtt.Client
	redisClient *redis.Client
	db          *db.DB
	cancel      context.CancelFunc
}

// stateReport is the telemetry payload devices publish
type stateReport struct {
	CurrentPower float64             `json:"current_power"`
	Status       models.DeviceStatus `json:"status"`
}

// NewIngest creates the telemetry pipeline
func NewIngest(mqttClient mqtt.Client, redisClient *redis.Client, database *db.DB) *Ingest {
	return &Ingest{mqttClient: mqttClient, redisClient: redisClient, db: database}
}

// Start subscribes to device state topics and begins draining the streams
func (in *Ingest) Start() error {
	log.Printf("INGEST: subscribing to MQTT topic %s", stateTopicFilter)
	if token := in.mqttClient.Subscribe(stateTopicFilter, 1, in.onDeviceReport); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	ctx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	go in.processStreams(ctx)

	log.Println("INGEST: started")
	return nil
}

// Stop unsubscribes and stops the drain loop
func (in *Ingest) Stop() {
	in.mqttClient.Unsubscribe(stateTopicFilter)
	if in.cancel != nil {
		in.cancel()
	}
	log.Println("INGEST: stopped")
}

// onDeviceReport buffers one telemetry message into the device's stream
func (in *Ingest) onDeviceReport(_ mqtt.Client, msg mqtt.Message) {
	_, deviceID := utils.ParseStateTopic(msg.Topic())
	if deviceID == "" {
		log.Printf("INGEST: ignoring report on unexpected topic %s", msg.Topic())
		return
	}

	var report stateReport
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		log.Printf("INGEST: bad report payload from device %s: %v", deviceID, err)
		return
	}

	streamKey := fmt.Sprintf("stream:device:%s", deviceID)
	err := in.redisClient.XAdd(context.Background(), &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: utils.StreamMaxLen,
		Values: map[string]interface{}{
			"report":    string(msg.Payload()),
			"timestamp": time.Now().UnixNano(),
		},
	}).Err()
	if err != nil {
		log.Printf("INGEST: failed to buffer report for device %s: %v", deviceID, err)
	}
}

// processStreams drains the per-device streams, applying only the newest
// report per debounce window
func (in *Ingest) processStreams(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		keys, err := in.redisClient.Keys(ctx, "stream:device:*").Result()
		if err != nil {
			log.Printf("INGEST: error listing streams: %v", err)
			time.Sleep(utils.DebounceWindow)
			continue
		}
		if len(keys) == 0 {
			time.Sleep(utils.DebounceWindow)
			continue
		}

		ids := make([]string, len(keys))
		for i, key := range keys {
			lastID, err := in.redisClient.Get(ctx, "last_read:"+key).Result()
			if err != nil {
				lastID = "0-0"
			}
			ids[i] = lastID
		}

		streams, err := in.redisClient.XRead(ctx, &redis.XReadArgs{
			Streams: append(keys, ids...),
			Block:   utils.DebounceWindow,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("INGEST: error reading streams: %v", err)
			continue
		}

		for _, stream := range streams {
			if len(stream.Messages) == 0 {
				continue
			}
			deviceID := strings.TrimPrefix(stream.Stream, "stream:device:")
			latest := stream.Messages[len(stream.Messages)-1]
			if raw, ok := reportValue(latest.Values); ok {
				in.applyReport(ctx, deviceID, raw)
			} else {
				log.Printf("INGEST: dropping malformed stream entry %s for device %s", latest.ID, deviceID)
			}
			in.redisClient.Set(ctx, "last_read:"+stream.Stream, latest.ID, 0)
		}
	}
}

// reportValue pulls the raw report out of one stream entry. Entries written
// by other producers may carry anything, so the shape is never assumed.
func reportValue(values map[string]interface{}) (string, bool) {
	raw, ok := values["report"].(string)
	return raw, ok
}

// applyReport persists the debounced report to the live cache and the registry
func (in *Ingest) applyReport(ctx context.Context, deviceID, raw string) {
	var report stateReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		log.Printf("INGEST: bad buffered report for device %s: %v", deviceID, err)
		return
	}

	in.redisClient.Set(ctx, fmt.Sprintf("device:%s", deviceID), raw, time.Hour)

	if err := in.db.UpdateReported(ctx, deviceID, report.CurrentPower, report.Status); err != nil {
		log.Printf("INGEST: failed to store report for device %s: %v", deviceID, err)
	}
}
