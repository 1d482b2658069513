package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"fleettrack/internal/core/model"
)

const (
	topicPrefix    = "fleettrack"
	connectTimeout = 10 * time.Second
)

// MQTTPublisher publishes telemetry as JSON on per-device topics:
//
//	fleettrack/<deviceID>/location
//	fleettrack/<deviceID>/alarm
//
// QoS 0: consumers that need history read the store, the broker only
// carries the live feed.
type MQTTPublisher struct {
	client mqtt.Client
	logger *zap.Logger
}

type locationEvent struct {
	DeviceID   string    `json:"deviceId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`
	Course     float64   `json:"course"`
	Satellites uint8     `json:"satellites"`
	GPSValid   bool      `json:"gpsValid"`
	AlarmType  string    `json:"alarmType,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMQTTPublisher connects to the broker. A connection failure is
// returned so the caller can decide to run without live events.
func NewMQTTPublisher(brokerURL, clientID string, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s failed: %w", brokerURL, err)
	}

	logger.Info("mqtt publisher connected", zap.String("broker", brokerURL))
	return &MQTTPublisher{client: client, logger: logger}, nil
}

func (p *MQTTPublisher) PublishLocation(deviceID string, loc *model.Location) {
	p.publish(fmt.Sprintf("%s/%s/location", topicPrefix, deviceID), deviceID, loc)
}

func (p *MQTTPublisher) PublishAlarm(deviceID string, loc *model.Location) {
	p.publish(fmt.Sprintf("%s/%s/alarm", topicPrefix, deviceID), deviceID, loc)
}

func (p *MQTTPublisher) publish(topic, deviceID string, loc *model.Location) {
	event := locationEvent{
		DeviceID:   deviceID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Speed:      loc.Speed,
		Course:     loc.Course,
		Satellites: loc.Satellites,
		GPSValid:   loc.GPSValid,
		AlarmType:  loc.AlarmType,
		Timestamp:  loc.Timestamp,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal event", zap.Error(err))
		return
	}
	// Fire and forget: token errors surface asynchronously in the
	// paho client's logs, the ingest path does not wait.
	p.client.Publish(topic, 0, false, payload)
}

// CommandSender forwards command text to a device and returns its reply.
// *dispatch.Dispatcher satisfies it.
type CommandSender interface {
	SendRaw(ctx context.Context, deviceID string, text string) (string, error)
}

// ServeCommands subscribes to fleettrack/<deviceID>/command and forwards
// each payload to the device through sender, publishing the device's
// reply (or "ERROR: ..." on failure) on fleettrack/<deviceID>/response.
func (p *MQTTPublisher) ServeCommands(sender CommandSender) error {
	topic := topicPrefix + "/+/command"
	token := p.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		deviceID, ok := deviceIDFromTopic(msg.Topic())
		if !ok {
			return
		}
		// The sender bounds the wait; the paho callback must not block.
		go func() {
			resp, err := sender.SendRaw(context.Background(), deviceID, string(msg.Payload()))
			if err != nil {
				p.logger.Warn("relayed command failed",
					zap.String("deviceId", deviceID), zap.Error(err))
				resp = "ERROR: " + err.Error()
			}
			p.client.Publish(fmt.Sprintf("%s/%s/response", topicPrefix, deviceID), 0, false, []byte(resp))
		}()
	})
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe to %s failed: %w", topic, err)
	}
	p.logger.Info("serving device commands over mqtt", zap.String("topic", topic))
	return nil
}

// deviceIDFromTopic extracts the device id from a
// fleettrack/<deviceID>/command topic.
func deviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicPrefix || parts[1] == "" || parts[2] != "command" {
		return "", false
	}
	return parts[1], true
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
