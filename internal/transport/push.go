package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Sink receives raw payloads from a transport
type Sink interface {
	Offer(raw string, source types.Source) error
	PushActivity(connected bool)
}

// PushConfig holds the settings of the MQTT push transport
type PushConfig struct {
	Broker               string
	Username             string
	Key                  string
	Feed                 string
	ClientPrefix         string
	KeepAlive            time.Duration
	ConnectTimeout       time.Duration
	MaxReconnectInterval time.Duration
	// Heartbeat is how often an open connection is reported to the sink
	Heartbeat time.Duration
}

// FeedTopic returns the Adafruit IO topic of a feed
func FeedTopic(username, feed string) string {
	return fmt.Sprintf("%s/feeds/%s", username, feed)
}

// Push subscribes to the feed topic and forwards every message to the sink
type Push struct {
	cfg    PushConfig
	sink   Sink
	logger *slog.Logger
	topic  string
	client mqtt.Client
}

// NewPush creates the push transport. The connection is made by Run.
func NewPush(cfg PushConfig, sink Sink, logger *slog.Logger) *Push {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	p := &Push{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("component", "push"),
		topic:  FeedTopic(cfg.Username, cfg.Feed),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientPrefix, uuid.NewString()[:8]))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Key)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		p.logger.Info("reconnecting to broker")
	})
	p.client = mqtt.NewClient(opts)

	return p
}

// Run connects and keeps the subscription alive until ctx is cancelled
func (p *Push) Run(ctx context.Context) error {
	p.logger.Info("connecting to broker", "broker", p.cfg.Broker, "topic", p.topic)

	// With connect retry enabled the token only completes once connected,
	// so it is not waited on here.
	p.client.Connect()

	ticker := time.NewTicker(p.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			p.sink.PushActivity(false)
			p.logger.Info("disconnected from broker")
			return nil
		case <-ticker.C:
			if p.client.IsConnectionOpen() {
				p.sink.PushActivity(true)
			}
		}
	}
}

func (p *Push) onConnect(client mqtt.Client) {
	p.logger.Info("connected to broker")
	p.sink.PushActivity(true)

	token := client.Subscribe(p.topic, 1, p.handleMessage)
	go func() {
		if !token.WaitTimeout(10 * time.Second) {
			p.logger.Error("subscription timed out", "error", &Error{Transport: "push", Op: "subscribe", Err: fmt.Errorf("timeout on %s", p.topic)})
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Error("subscription failed", "error", &Error{Transport: "push", Op: "subscribe", Err: err})
			return
		}
		p.logger.Info("subscribed", "topic", p.topic)
	}()
}

func (p *Push) onConnectionLost(_ mqtt.Client, err error) {
	p.logger.Warn("connection to broker lost", "error", &Error{Transport: "push", Op: "connection", Err: err})
	p.sink.PushActivity(false)
}

// handleMessage is called by the client for each message on the feed topic
func (p *Push) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())
	p.logger.Debug("message received", "topic", msg.Topic(), "payload", payload)
	// Rejections are logged by the sink
	_ = p.sink.Offer(payload, types.SourcePush)
}
