package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/config"
	apperrors "github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/events/kafka"
	"github.com/UnKnowSoDev/pianissimo-gacha/httpclient"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/providers"
)

const spinAuditTopic = "spin_results"

// NotifyProvider implements providers.NotifyProvider. It posts a result card
// to the configured announcement channel and emits an audit event to Kafka.
// Both paths are best effort.
type NotifyProvider struct {
	client    *httpclient.Client
	producer  *kafka.Producer
	channelID string
	topic     string
	logger    zerolog.Logger
}

// resultCard is the rich-message payload the notification channel renders.
type resultCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type cardMessage struct {
	Embeds []resultCard `json:"embeds"`
}

const (
	colorNormal = 0x95a5a6
	colorRare   = 0xf1c40f
)

// NewNotifyProvider creates a notify provider. producer may be nil when audit
// publication is disabled.
func NewNotifyProvider(cfg *config.Config, producer *kafka.Producer, logger zerolog.Logger) *NotifyProvider {
	svc := cfg.ExternalServices.NotifyService

	topic := cfg.Kafka.Topics["spin_audit"]
	if topic == "" {
		topic = spinAuditTopic
	}

	token := svc.Token
	if token == "" {
		token = cfg.ExternalServices.IdentityService.Token
	}

	return &NotifyProvider{
		client: httpclient.New(httpclient.Config{
			BaseURL: svc.BaseURL,
			Timeout: svc.Timeout,
			Logger:  logger,
			Headers: map[string]string{
				"Authorization": "Bot " + token,
			},
		}),
		producer:  producer,
		channelID: svc.ChannelID,
		topic:     topic,
		logger:    logger.With().Str("component", "notify_provider").Logger(),
	}
}

// NotifySpin posts the result card and publishes the audit event.
func (p *NotifyProvider) NotifySpin(ctx context.Context, n *providers.SpinNotification) error {
	if err := p.postCard(ctx, n); err != nil {
		// Audit still goes out even when the card does not.
		p.publishAudit(n)
		return err
	}
	p.publishAudit(n)
	return nil
}

func (p *NotifyProvider) postCard(ctx context.Context, n *providers.SpinNotification) error {
	if p.channelID == "" {
		return nil
	}

	card := resultCard{
		Title:       "Gacha Result",
		Description: fmt.Sprintf("%s spent %d points and won: %s", n.Username, n.Cost, n.ItemName),
		Color:       colorNormal,
	}
	if n.IsRare {
		card.Title = "JACKPOT!"
		card.Color = colorRare
	}

	path := fmt.Sprintf("/channels/%s/messages", p.channelID)
	resp, err := p.client.Post(ctx, path, cardMessage{Embeds: []resultCard{card}}, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrNotifyError, "failed to post result card")
	}
	if !resp.IsSuccess() {
		return apperrors.New(apperrors.ErrNotifyError,
			fmt.Sprintf("notify service returned status %d", resp.StatusCode))
	}
	return nil
}

func (p *NotifyProvider) publishAudit(n *providers.SpinNotification) {
	if p.producer == nil {
		return
	}
	event := kafka.SpinAuditEvent{
		UserID:     n.UserID,
		Username:   n.Username,
		ItemName:   n.ItemName,
		Cost:       n.Cost,
		NewBalance: n.NewBalance,
		IsRare:     n.IsRare,
		Timestamp:  n.Timestamp,
	}
	if err := p.producer.SendMessage(p.topic, n.UserID, event); err != nil {
		p.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("Failed to publish spin audit event")
	}
}
