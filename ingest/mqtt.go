// Package ingest feeds sensor readings arriving over MQTT through the same
// inference pipeline as POST /predict and publishes the results.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"occupancy-predictor/models"
)

const (
	qos            = 1
	queueSize      = 256
	enqueueTimeout = time.Second
	publishTimeout = 5 * time.Second
	predictTimeout = 10 * time.Second
)

type Predictor interface {
	Predict(ctx context.Context, roomID string, reading models.SensorReading) (*models.PredictionResult, error)
}

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// ReadingTopic is subscribed to; the room id is its second segment,
	// e.g. sensors/<room_id>/reading.
	ReadingTopic string

	// PredictionTopic has {room_id} replaced on publish.
	PredictionTopic string
}

type message struct {
	topic   string
	payload []byte
}

// Subscriber bridges MQTT sensor messages to the inference service. The
// paho callback only queues messages; a single worker predicts and publishes
// so the client's router is never blocked on a publish token.
type Subscriber struct {
	client    mqtt.Client
	predictor Predictor
	cfg       Config
	publish   func(topic string, payload []byte) error

	messages       chan message
	enqueueTimeout time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// Connect opens the broker connection with auto-reconnect.
func Connect(cfg Config, p Predictor) (*Subscriber, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("mqtt: connection established", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt: connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	s := newSubscriber(cfg, p)
	s.client = client
	s.publish = func(topic string, payload []byte) error {
		token := client.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	}
	return s, nil
}

func newSubscriber(cfg Config, p Predictor) *Subscriber {
	return &Subscriber{
		predictor:      p,
		cfg:            cfg,
		messages:       make(chan message, queueSize),
		enqueueTimeout: enqueueTimeout,
		stop:           make(chan struct{}),
	}
}

// Start launches the worker and subscribes to the reading topic.
func (s *Subscriber) Start() error {
	s.startWorker()
	token := s.client.Subscribe(s.cfg.ReadingTopic, qos, s.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.ReadingTopic, token.Error())
	}
	slog.Info("mqtt: subscribed", "topic", s.cfg.ReadingTopic)
	return nil
}

func (s *Subscriber) startWorker() {
	s.wg.Add(1)
	go s.run()
}

// Close disconnects from the broker and stops the worker. Queued messages
// that have not been processed yet are dropped.
func (s *Subscriber) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
		slog.Info("mqtt: disconnected")
	}
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Subscriber) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.messages:
			if err := s.process(msg.topic, msg.payload); err != nil {
				slog.Warn("mqtt: dropping message", "topic", msg.topic, "err", err)
			}
		}
	}
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	m := message{topic: msg.Topic(), payload: msg.Payload()}
	select {
	case s.messages <- m:
	case <-s.stop:
	case <-time.After(s.enqueueTimeout):
		slog.Warn("mqtt: reading queue full, dropping message", "topic", m.topic)
	}
}

func (s *Subscriber) process(topic string, payload []byte) error {
	req, err := models.DecodePredictionPayload(payload)
	if err != nil {
		return err
	}

	roomID := roomFromTopic(topic)
	if roomID == "" {
		roomID = req.Room()
	}

	ctx, cancel := context.WithTimeout(context.Background(), predictTimeout)
	defer cancel()
	result, err := s.predictor.Predict(ctx, roomID, req.Reading())
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	out := strings.ReplaceAll(s.cfg.PredictionTopic, "{room_id}", roomID)
	if err := s.publish(out, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	slog.Debug("mqtt: prediction published", "topic", out, "prediction", result.Prediction)
	return nil
}

// roomFromTopic extracts the room id from sensors/<room_id>/reading.
func roomFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
