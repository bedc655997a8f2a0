package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

var ErrNotConnected = errors.New("nats streaming connection is not established")

type NATSClient struct {
	conn stan.Conn
}

type Config struct {
	URL       string
	ClusterID string
	ClientID  string
}

func NewNATSClient(cfg Config) (*NATSClient, error) {
	// Client IDs must be unique per connection within the cluster
	uniqueClientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, uniqueClientID,
		stan.NatsURL(cfg.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			slog.Error("NATS Streaming connection lost", "error", reason)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	slog.Info("Connected to NATS Streaming",
		"url", cfg.URL, "cluster", cfg.ClusterID, "client", uniqueClientID)

	return &NATSClient{conn: conn}, nil
}

func (nc *NATSClient) Publish(subject string, data any) error {
	if nc == nil || nc.conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	slog.Debug("Published message", "subject", subject)
	return nil
}

func (nc *NATSClient) SubscribeQueue(subject, queue string, handler stan.MsgHandler) (stan.Subscription, error) {
	if nc == nil || nc.conn == nil {
		return nil, ErrNotConnected
	}

	sub, err := nc.conn.QueueSubscribe(subject, queue, handler,
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(1))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject, "queue", queue)
	return sub, nil
}

func (nc *NATSClient) Close() error {
	if nc != nil && nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}
