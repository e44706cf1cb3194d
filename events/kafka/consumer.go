package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/broadcast"
)

// MemberUpdateEvent is published by the identity service whenever a guild
// member's display name changes. Since the label carries the point balance,
// an out-of-band label edit is also a balance change and is pushed to this
// user's live listeners.
type MemberUpdateEvent struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// SpinAuditEvent is the audit record published after every completed spin.
type SpinAuditEvent struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	ItemName   string    `json:"item_name"`
	Cost       int64     `json:"cost"`
	NewBalance int64     `json:"new_balance"`
	IsRare     bool      `json:"is_rare"`
	Timestamp  time.Time `json:"timestamp"`
}

// Consumer reads member update events and republishes decoded balance
// changes onto the broadcast hub.
type Consumer struct {
	reader *kafka.Reader
	hub    *broadcast.Hub
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Logger        zerolog.Logger
}

// NewConsumer creates a new Kafka consumer. An empty broker list returns a
// nil consumer, meaning member update ingestion is disabled.
func NewConsumer(config ConsumerConfig, hub *broadcast.Hub) *Consumer {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{
		reader: reader,
		hub:    hub,
		logger: config.Logger.With().Str("component", "kafka-consumer").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins consuming messages
func (c *Consumer) Start() error {
	if c == nil {
		return nil
	}
	c.wg.Add(1)
	go c.consume()
	c.logger.Info().Msg("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c == nil {
		return nil
	}
	c.logger.Info().Msg("Stopping Kafka consumer...")
	c.cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Error closing Kafka reader")
		return err
	}

	c.logger.Info().Msg("Kafka consumer stopped")
	return nil
}

// consume is the main consumer loop
func (c *Consumer) consume() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			msg, err := c.reader.FetchMessage(c.ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				c.logger.Error().Err(err).Msg("Error fetching message from Kafka")
				time.Sleep(time.Second)
				continue
			}

			if err := c.handleMessage(msg); err != nil {
				c.logger.Error().
					Err(err).
					Str("topic", msg.Topic).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Error handling message")
			}

			if err := c.reader.CommitMessages(c.ctx, msg); err != nil {
				c.logger.Error().Err(err).Msg("Error committing message")
			}
		}
	}
}

// handleMessage decodes a member update and fans the new balance out to the
// user's subscribers.
func (c *Consumer) handleMessage(msg kafka.Message) error {
	var event MemberUpdateEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}
	if event.UserID == "" {
		c.logger.Debug().Msg("Skipping member update without user ID")
		return nil
	}

	balance := gacha.ParseBalance(event.DisplayName)
	c.logger.Debug().
		Str("user_id", event.UserID).
		Int64("balance", balance).
		Msg("Member label updated")

	c.hub.Publish(broadcast.Event{
		Type:      broadcast.EventBalanceUpdate,
		Key:       event.UserID,
		UserID:    event.UserID,
		Username:  event.DisplayName,
		Balance:   balance,
		Timestamp: event.Timestamp,
	})
	return nil
}
