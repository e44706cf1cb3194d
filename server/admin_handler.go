package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
)

// AdminHandler handles configuration mutation and balance grants. All routes
// sit behind the admin-role JWT check.
type AdminHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(app *App) *AdminHandler {
	return &AdminHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "admin").Logger(),
	}
}

// SetCostRequest carries the new per-spin cost.
// @Description Spin cost update payload
type SetCostRequest struct {
	CostPerSpin int64 `json:"costPerSpin" example:"50"`
}

// SetCost godoc
// @Summary      Change the cost of one spin
// @Description  Takes effect on the next spin, in-flight spins keep the cost they validated against
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      SetCostRequest  true  "New cost"
// @Success      200  {object}  BaseResponse{data=gacha.Config}
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /gacha/admin/cost [put]
func (h *AdminHandler) SetCost(c *gin.Context) {
	var req SetCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}
	if req.CostPerSpin <= 0 {
		BadRequest(c, errors.New(errors.ErrInvalidRequest, "cost per spin must be positive"))
		return
	}

	err := h.app.store.MutateConfig(func(cfg *gacha.Config) error {
		cfg.CostPerSpin = req.CostPerSpin
		return nil
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info().Int64("cost_per_spin", req.CostPerSpin).Msg("Spin cost updated")
	OK(c, h.app.store.Config())
}

// UpsertRewardRequest carries one reward table entry.
// @Description Reward upsert payload
type UpsertRewardRequest struct {
	Name   string `json:"name" binding:"required" example:"SSR Grand Prize"`
	Weight int64  `json:"weight" example:"5"`
	IsRare bool   `json:"isRare" example:"true"`
}

// UpsertReward godoc
// @Summary      Add or replace a reward entry
// @Description  An entry with a matching name is replaced in place, otherwise the entry is appended
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      UpsertRewardRequest  true  "Reward entry"
// @Success      200  {object}  BaseResponse{data=RewardListResponse}
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /gacha/admin/rewards [put]
func (h *AdminHandler) UpsertReward(c *gin.Context) {
	var req UpsertRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}
	if req.Weight <= 0 {
		BadRequest(c, errors.New(errors.ErrInvalidRequest, "weight must be positive"))
		return
	}

	var replaced bool
	err := h.app.store.MutateConfig(func(cfg *gacha.Config) error {
		cfg.Rewards, replaced = cfg.Rewards.Upsert(gacha.RewardEntry{
			Name:   req.Name,
			Weight: req.Weight,
			IsRare: req.IsRare,
		})
		return nil
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info().
		Str("name", req.Name).
		Int64("weight", req.Weight).
		Bool("replaced", replaced).
		Msg("Reward entry upserted")

	cfg := h.app.store.Config()
	OK(c, RewardListResponse{
		CostPerSpin: cfg.CostPerSpin,
		Rewards:     cfg.Rewards.Percentages(),
	})
}

// DeleteReward godoc
// @Summary      Remove a reward entry by name
// @Tags         admin
// @Produce      json
// @Param        name  path      string  true  "Reward name"
// @Success      200  {object}  BaseResponse{data=RewardListResponse}
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /gacha/admin/rewards/{name} [delete]
func (h *AdminHandler) DeleteReward(c *gin.Context) {
	name := c.Param("name")

	err := h.app.store.MutateConfig(func(cfg *gacha.Config) error {
		next, removed := cfg.Rewards.Remove(name)
		if !removed {
			// Aborts the mutation, nothing is persisted.
			return errors.New(errors.ErrNotFound, "reward entry not found")
		}
		cfg.Rewards = next
		return nil
	})
	if err != nil {
		if errors.GetCode(err) == errors.ErrNotFound {
			NotFound(c, err)
			return
		}
		HandleAppError(c, err)
		return
	}

	h.logger.Info().Str("name", name).Msg("Reward entry removed")

	cfg := h.app.store.Config()
	OK(c, RewardListResponse{
		CostPerSpin: cfg.CostPerSpin,
		Rewards:     cfg.Rewards.Percentages(),
	})
}

// GrantRequestBody carries an admin balance grant.
// @Description Balance grant payload
type GrantRequestBody struct {
	UserID string `json:"userId" binding:"required" example:"123456789"`
	Amount int64  `json:"amount" binding:"required" example:"100"`
}

// GrantPoints godoc
// @Summary      Adjust a member's point balance
// @Description  Amount may be negative, the balance floors at zero. A refused label write is reported, not treated as failure
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      GrantRequestBody  true  "Grant"
// @Success      200  {object}  BaseResponse{data=GrantOutcome}
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /gacha/admin/grants [post]
func (h *AdminHandler) GrantPoints(c *gin.Context) {
	var req GrantRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}

	outcome, err := h.app.spinService.GrantPoints(c.Request.Context(), &GrantRequest{
		UserID: req.UserID,
		Amount: req.Amount,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Grant failed")
		HandleAppError(c, err)
		return
	}

	OK(c, outcome)
}
