package server

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/db/docstore"
	"github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/broadcast"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/providers"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/userlock"
)

// Spin failure reasons carried inside a non-error outcome.
const (
	ReasonInsufficientPoints = "insufficientPoints"
	ReasonLabelRejected      = "labelUpdateRejected"
)

// SpinService defines the contract for executing a spin flow.
type SpinService interface {
	ExecuteSpin(ctx context.Context, req *SpinServiceRequest) (*SpinOutcome, error)
	GrantPoints(ctx context.Context, req *GrantRequest) (*GrantOutcome, error)
}

// SpinServiceRequest identifies the spinning member.
type SpinServiceRequest struct {
	UserID   string
	Username string
}

// SpinOutcome is the result of a spin attempt. The three defined outcomes
// (insufficient points, rejected label update, success) are all reported
// here rather than as errors; only infrastructure failures become errors.
type SpinOutcome struct {
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	Required   int64  `json:"required"`
	Available  int64  `json:"available"`
	ItemName   string `json:"item,omitempty"`
	NewBalance int64  `json:"newBalance"`
	IsRare     bool   `json:"isRare"`
}

// GrantRequest is an admin-issued balance adjustment. Amount may be negative.
type GrantRequest struct {
	UserID string
	Amount int64
}

// GrantOutcome reports a balance grant. LabelUpdated false means the identity
// service refused the label write; the grant is then recorded as intended but
// the member's visible balance did not change.
type GrantOutcome struct {
	UserID          string `json:"userId"`
	PreviousBalance int64  `json:"previousBalance"`
	NewBalance      int64  `json:"newBalance"`
	LabelUpdated    bool   `json:"labelUpdated"`
	Reason          string `json:"reason,omitempty"`
}

// GachaService orchestrates the full spin flow
//
// Flow: gachaRoutes -> GachaHandler -> GachaService -> providers/store
//
// The service:
// 1. Serializes spins per user
// 2. Resolves the member's balance from their display-name label
// 3. Validates funds against the current cost
// 4. Debits by rewriting the label
// 5. Draws a reward and records history
// 6. Pushes live balance and jackpot events
type GachaService struct {
	store           *docstore.Store
	balanceProvider providers.BalanceProvider
	notifyProvider  providers.NotifyProvider
	hub             *broadcast.Hub
	locker          userlock.Locker
	logger          zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewGachaService creates the default spin service. notifyProvider may be
// nil when no announcement channel is configured.
func NewGachaService(
	store *docstore.Store,
	balanceProvider providers.BalanceProvider,
	notifyProvider providers.NotifyProvider,
	hub *broadcast.Hub,
	locker userlock.Locker,
	logger zerolog.Logger,
) *GachaService {
	return &GachaService{
		store:           store,
		balanceProvider: balanceProvider,
		notifyProvider:  notifyProvider,
		hub:             hub,
		locker:          locker,
		logger:          logger.With().Str("service", "gacha").Logger(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ExecuteSpin runs one paid spin for the requesting member.
//
// Flow:
// 1. Acquire the member's lock
// 2. Resolve identity and balance from the label
// 3. Validate funds against the current cost
// 4. Debit by rewriting the label (a refused write aborts the spin)
// 5. Draw a reward
// 6. Append the history record and persist
// 7. Push balance and jackpot events
// 8. Fire the result notification
func (s *GachaService) ExecuteSpin(ctx context.Context, req *SpinServiceRequest) (*SpinOutcome, error) {
	if req.UserID == "" {
		return nil, errors.New(errors.ErrInvalidRequest, "user ID is required")
	}

	release, err := s.locker.Acquire(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLockError, "failed to acquire spin lock")
	}
	defer release()

	identity, err := s.balanceProvider.Resolve(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	cfg := s.store.Config()
	if len(cfg.Rewards) == 0 || cfg.Rewards.TotalWeight() <= 0 {
		return nil, errors.New(errors.ErrEmptyRewardTable, "reward table is empty")
	}

	if identity.Balance < cfg.CostPerSpin {
		s.logger.Debug().
			Str("user_id", req.UserID).
			Int64("required", cfg.CostPerSpin).
			Int64("available", identity.Balance).
			Msg("Spin refused, not enough points")
		return &SpinOutcome{
			Success:   false,
			Reason:    ReasonInsufficientPoints,
			Required:  cfg.CostPerSpin,
			Available: identity.Balance,
		}, nil
	}

	newBalance := identity.Balance - cfg.CostPerSpin
	applied, err := s.balanceProvider.Apply(ctx, req.UserID, identity.Label, newBalance)
	if err != nil {
		return nil, err
	}
	if applied.Status == providers.ApplyRejected {
		// No points were taken, so nothing is drawn or recorded.
		s.logger.Warn().
			Str("user_id", req.UserID).
			Str("reason", applied.Reason).
			Msg("Spin aborted, label update rejected")
		return &SpinOutcome{
			Success: false,
			Reason:  ReasonLabelRejected,
		}, nil
	}

	// The table is read again here so an admin change between validation and
	// draw is honored by the draw itself.
	reward, err := s.draw()
	if err != nil {
		return nil, err
	}

	record := gacha.HistoryRecord{
		UserID:    req.UserID,
		Username:  req.Username,
		ItemName:  reward.Name,
		Cost:      cfg.CostPerSpin,
		IsRare:    reward.IsRare,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendHistory(record); err != nil {
		// The debit already happened; surface the persistence failure but
		// keep the user's events flowing so their balance display is right.
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to persist spin record")
		s.publishEvents(req, reward, newBalance)
		return nil, err
	}

	s.publishEvents(req, reward, newBalance)
	s.notify(req, reward, cfg.CostPerSpin, newBalance)

	s.logger.Info().
		Str("user_id", req.UserID).
		Str("item", reward.Name).
		Int64("cost", cfg.CostPerSpin).
		Int64("new_balance", newBalance).
		Bool("is_rare", reward.IsRare).
		Msg("Spin completed")

	return &SpinOutcome{
		Success:    true,
		ItemName:   reward.Name,
		NewBalance: newBalance,
		IsRare:     reward.IsRare,
	}, nil
}

// draw picks a reward from the current table.
func (s *GachaService) draw() (gacha.RewardEntry, error) {
	table := s.store.Config().Rewards

	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return table.Draw(s.rng)
}

// publishEvents pushes the member's new balance to their listeners and, for
// rare rewards, one jackpot announcement to everyone.
func (s *GachaService) publishEvents(req *SpinServiceRequest, reward gacha.RewardEntry, newBalance int64) {
	s.hub.Publish(broadcast.Event{
		Type:     broadcast.EventBalanceUpdate,
		Key:      req.UserID,
		UserID:   req.UserID,
		Username: req.Username,
		Balance:  newBalance,
	})

	if reward.IsRare {
		s.hub.Publish(broadcast.Event{
			Type:     broadcast.EventJackpot,
			Key:      broadcast.GlobalKey,
			UserID:   req.UserID,
			Username: req.Username,
			ItemName: reward.Name,
		})
	}
}

// notify fires the result announcement without blocking the response.
func (s *GachaService) notify(req *SpinServiceRequest, reward gacha.RewardEntry, cost, newBalance int64) {
	if s.notifyProvider == nil {
		return
	}

	n := &providers.SpinNotification{
		UserID:     req.UserID,
		Username:   req.Username,
		ItemName:   reward.Name,
		Cost:       cost,
		NewBalance: newBalance,
		IsRare:     reward.IsRare,
		Timestamp:  time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifyProvider.NotifySpin(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("Spin notification failed")
		}
	}()
}

// GrantPoints adjusts a member's balance by Amount under the member's lock.
// Unlike a spin, a refused label write does not abort the grant: the outcome
// reports the refusal so the operator can follow up.
func (s *GachaService) GrantPoints(ctx context.Context, req *GrantRequest) (*GrantOutcome, error) {
	if req.UserID == "" {
		return nil, errors.New(errors.ErrInvalidRequest, "user ID is required")
	}

	release, err := s.locker.Acquire(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLockError, "failed to acquire spin lock")
	}
	defer release()

	identity, err := s.balanceProvider.Resolve(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := identity.Balance + req.Amount
	if newBalance < 0 {
		newBalance = 0
	}

	outcome := &GrantOutcome{
		UserID:          req.UserID,
		PreviousBalance: identity.Balance,
		NewBalance:      newBalance,
	}

	applied, err := s.balanceProvider.Apply(ctx, req.UserID, identity.Label, newBalance)
	if err != nil {
		return nil, err
	}
	if applied.Status == providers.ApplyRejected {
		outcome.LabelUpdated = false
		outcome.Reason = applied.Reason
		s.logger.Warn().
			Str("user_id", req.UserID).
			Str("reason", applied.Reason).
			Msg("Grant applied without label update")
		return outcome, nil
	}
	outcome.LabelUpdated = true

	s.hub.Publish(broadcast.Event{
		Type:    broadcast.EventBalanceUpdate,
		Key:     req.UserID,
		UserID:  req.UserID,
		Balance: newBalance,
	})

	s.logger.Info().
		Str("user_id", req.UserID).
		Int64("amount", req.Amount).
		Int64("new_balance", newBalance).
		Msg("Points granted")

	return outcome, nil
}
