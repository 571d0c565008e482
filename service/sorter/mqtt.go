package sorter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

const publishTimeout = 2 * time.Second

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type mqttService struct {
	params config.MQTTParameters
	client mqtt.Client
	pub    publisher

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

type command struct {
	RunID      string         `json:"runId"`
	Category   model.Category `json:"category"`
	Confidence float32        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewMQTT connects to the broker and publishes one command per accepted item on
// <topic>/<category>.
func NewMQTT(ctx context.Context, params config.MQTTParameters) (IService, error) {
	if params.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}

	svc := &mqttService{
		params:    params,
		published: make(map[string]uint64),
	}

	broker := params.Broker
	if !strings.Contains(broker, "://") {
		broker = fmt.Sprintf("tcp://%s", broker)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(params.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(_ mqtt.Client) {
		svc.setConnected(true)
		lgr.Logger.Info("sorter mqtt connection established",
			slog.String("broker", broker),
			slog.String("client_id", params.ClientID),
		)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		svc.setConnected(false)
		lgr.Logger.Warn("sorter mqtt connection lost, will auto-reconnect",
			slog.String("broker", broker),
			lgr.Err(err),
		)
	}

	svc.client = mqtt.NewClient(opts)
	svc.pub = svc.client

	token := svc.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		svc.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		svc.client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	svc.setConnected(true)
	return svc, nil
}

func newWithPublisher(params config.MQTTParameters, pub publisher) *mqttService {
	return &mqttService{
		params:    params,
		pub:       pub,
		published: make(map[string]uint64),
		connected: true,
	}
}

func (svc *mqttService) topic(c model.Category) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(svc.params.Topic, "/"), c)
}

func (svc *mqttService) Notify(_ context.Context, event model.DetectionEvent) error {
	if !svc.isConnected() {
		svc.countError()
		return fmt.Errorf("mqtt not connected")
	}

	topic := svc.topic(event.Category)
	payload, err := json.Marshal(command{
		RunID:      event.RunID,
		Category:   event.Category,
		Confidence: event.Confidence,
		Timestamp:  event.Timestamp,
	})
	if err != nil {
		svc.countError()
		return fmt.Errorf("failed to marshal sorter command: %w", err)
	}

	token := svc.pub.Publish(topic, svc.params.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		svc.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		svc.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	svc.mu.Lock()
	svc.published[topic]++
	svc.mu.Unlock()

	lgr.Logger.Debug("sorter command published",
		slog.String("topic", topic),
		slog.Int("size", len(payload)),
	)
	return nil
}

func (svc *mqttService) Stats() Stats {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	published := make(map[string]uint64, len(svc.published))
	for k, v := range svc.published {
		published[k] = v
	}

	return Stats{
		Connected: svc.connected,
		Published: published,
		Errors:    svc.errors,
	}
}

func (svc *mqttService) Close() error {
	if svc.client != nil && svc.client.IsConnected() {
		svc.client.Disconnect(250)
		lgr.Logger.Info("sorter mqtt disconnected")
	}
	svc.setConnected(false)
	return nil
}

func (svc *mqttService) setConnected(v bool) {
	svc.mu.Lock()
	svc.connected = v
	svc.mu.Unlock()
}

func (svc *mqttService) isConnected() bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.connected
}

func (svc *mqttService) countError() {
	svc.mu.Lock()
	svc.errors++
	svc.mu.Unlock()
}
