package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/config"
	apperrors "github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
	"github.com/UnKnowSoDev/pianissimo-gacha/httpclient"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/providers"
)

// BalanceProvider implements providers.BalanceProvider against the guild
// membership API of the identity service. A member's point balance lives
// inside their display-name label, so reading a balance is a member fetch and
// writing one is a label rewrite.
type BalanceProvider struct {
	client  *httpclient.Client
	guildID string
	logger  zerolog.Logger
}

// guildMember mirrors the identity service's member payload.
type guildMember struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Nick string `json:"nick"`
}

// effectiveLabel returns the display name the rest of the guild sees.
func (m *guildMember) effectiveLabel() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

// NewBalanceProvider creates a balance provider for the configured guild.
func NewBalanceProvider(cfg *config.Config, logger zerolog.Logger) *BalanceProvider {
	svc := cfg.ExternalServices.IdentityService

	client := httpclient.New(httpclient.Config{
		BaseURL: svc.BaseURL,
		Timeout: svc.Timeout,
		Logger:  logger,
		Headers: map[string]string{
			"Authorization": "Bot " + svc.Token,
		},
	})

	return &BalanceProvider{
		client:  client,
		guildID: svc.GuildID,
		logger:  logger.With().Str("component", "balance_provider").Logger(),
	}
}

// Resolve fetches the member and decodes the balance from their label.
func (p *BalanceProvider) Resolve(ctx context.Context, userID string) (*providers.Identity, error) {
	path := fmt.Sprintf("/guilds/%s/members/%s", p.guildID, userID)

	resp, err := p.client.Get(ctx, path, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrIdentityNotFound, "failed to reach identity service")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.New(apperrors.ErrIdentityNotFound,
			fmt.Sprintf("member %s not found in guild", userID))
	}
	if !resp.IsSuccess() {
		return nil, apperrors.New(apperrors.ErrIdentityNotFound,
			fmt.Sprintf("identity service returned status %d", resp.StatusCode))
	}

	var member guildMember
	if err := resp.Unmarshal(&member); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrIdentityNotFound, "failed to decode member")
	}

	label := member.effectiveLabel()
	return &providers.Identity{
		UserID:  userID,
		Label:   label,
		Balance: gacha.ParseBalance(label),
	}, nil
}

// Apply rewrites the member's label so it carries newBalance. A 403 from the
// identity service means the label is outside this service's permission reach
// and comes back as ApplyRejected, not an error.
func (p *BalanceProvider) Apply(ctx context.Context, userID, currentLabel string, newBalance int64) (*providers.ApplyResult, error) {
	newLabel := gacha.RewriteLabel(currentLabel, newBalance)
	path := fmt.Sprintf("/guilds/%s/members/%s", p.guildID, userID)

	resp, err := p.client.Patch(ctx, path, map[string]string{"nick": newLabel}, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrBalanceUpdateFailed, "failed to reach identity service")
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		p.logger.Warn().
			Str("user_id", userID).
			Msg("Identity service refused label update")
		return &providers.ApplyResult{
			Status: providers.ApplyRejected,
			Reason: "label update refused by identity service",
		}, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.New(apperrors.ErrIdentityNotFound,
			fmt.Sprintf("member %s not found in guild", userID))
	case !resp.IsSuccess():
		return nil, apperrors.New(apperrors.ErrBalanceUpdateFailed,
			fmt.Sprintf("identity service returned status %d", resp.StatusCode))
	}

	return &providers.ApplyResult{
		Status:   providers.ApplyApplied,
		NewLabel: newLabel,
	}, nil
}
