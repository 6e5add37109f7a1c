// Package events publishes pipeline state changes (hops, squelch
// transitions) to interested listeners.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindHop          Kind = "hop"
	KindRetune       Kind = "retune"
	KindSquelchOpen  Kind = "squelch_open"
	KindSquelchClose Kind = "squelch_close"
	KindStopped      Kind = "stopped"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	Tuner     string    `json:"tuner"`
	Frequency int       `json:"frequency"`
	Level     int       `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(e Event)
	Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
func (NopPublisher) Close()        {}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Close() {}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// MQTTPublisher sends events as JSON to <topic>/<tuner>/<kind>. Publishing
// never blocks the caller; delivery failures are logged.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger zerolog.Logger
}

func NewMQTTPublisher(broker, topic, clientID string, logger zerolog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if clientID == "" {
		clientID = fmt.Sprintf("fmstream_%d", time.Now().UnixNano())
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info().Str("broker", broker).Str("topic", topic).Msg("connected to mqtt broker")

	return &MQTTPublisher{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

func (m *MQTTPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}
	token := m.client.Publish(Topic(m.topic, e), 0, false, data)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			m.logger.Warn().Err(token.Error()).Str("kind", string(e.Kind)).Msg("failed to publish event")
		}
	}()
}

func (m *MQTTPublisher) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}

func Topic(prefix string, e Event) string {
	return fmt.Sprintf("%s/%s/%s", prefix, e.Tuner, e.Kind)
}
