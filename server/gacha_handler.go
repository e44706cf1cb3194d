package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/auth"
	"github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
)

// GachaHandler handles player-facing HTTP requests
//
// Flow: HTTP Request -> gachaRoutes -> GachaHandler -> GachaService
//
// Responsibilities:
// - Extract user info from JWT token
// - Validate request parameters
// - Call GachaService for business logic
// - Format and return HTTP responses
type GachaHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewGachaHandler creates a new gacha handler
func NewGachaHandler(app *App) *GachaHandler {
	return &GachaHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "gacha").Logger(),
	}
}

// extractUser extracts user ID and username from gin context
func (h *GachaHandler) extractUser(c *gin.Context) (string, string, error) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return "", "", errors.New(errors.ErrUnauthorized, "user_id not found in context")
	}
	username, _ := auth.GetUsername(c)
	return userID, username, nil
}

// Spin godoc
// @Summary      Execute a paid spin
// @Description  Debits the spin cost from the member's label balance and draws a weighted reward
// @Tags         gacha
// @Accept       json
// @Produce      json
// @Success      200  {object}  BaseResponse{data=SpinOutcome}
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /gacha/spin [post]
func (h *GachaHandler) Spin(c *gin.Context) {
	userID, username, err := h.extractUser(c)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to extract user")
		Error(c, 401, err)
		return
	}

	outcome, err := h.app.spinService.ExecuteSpin(c.Request.Context(), &SpinServiceRequest{
		UserID:   userID,
		Username: username,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Spin failed")
		HandleAppError(c, err)
		return
	}

	OK(c, outcome)
}

// ListRewards godoc
// @Summary      List reward table with draw percentages
// @Tags         gacha
// @Produce      json
// @Success      200  {object}  BaseResponse{data=RewardListResponse}
// @Security     BearerAuth
// @Router       /gacha/rewards [get]
func (h *GachaHandler) ListRewards(c *gin.Context) {
	cfg := h.app.store.Config()

	OK(c, RewardListResponse{
		CostPerSpin: cfg.CostPerSpin,
		Rewards:     cfg.Rewards.Percentages(),
	})
}

// RewardListResponse pairs the spin cost with the displayed reward table.
// @Description Reward table with display percentages
type RewardListResponse struct {
	CostPerSpin int64                    `json:"costPerSpin"`
	Rewards     []gacha.RewardPercentage `json:"rewards"`
}

// History godoc
// @Summary      List recent spins, newest first
// @Tags         gacha
// @Produce      json
// @Param        limit  query     int  false  "Maximum records to return"  default(10)
// @Success      200  {object}  BaseResponse{data=[]gacha.HistoryRecord}
// @Security     BearerAuth
// @Router       /gacha/history [get]
func (h *GachaHandler) History(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequest(c, errors.New(errors.ErrInvalidRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	OK(c, h.app.store.RecentHistory(limit))
}
