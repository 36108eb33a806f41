package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finwise/api/logger"
)

// PeriodEndRunner is satisfied by sweeper.Sweeper.
type PeriodEndRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// InternalHandler exposes operational endpoints guarded by the internal API
// key. The period-end sweep also runs on a timer; this endpoint exists for
// external schedulers and manual runs.
type InternalHandler struct {
	sweeper PeriodEndRunner
}

func NewInternalHandler(sweeper PeriodEndRunner) *InternalHandler {
	return &InternalHandler{sweeper: sweeper}
}

// RunPeriodEnd downgrades every subscription whose paid period has lapsed.
func (h *InternalHandler) RunPeriodEnd(c *gin.Context) {
	applied, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		logger.Get().Error("period-end sweep failed", zap.Int("applied", applied), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed", "applied": applied})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied})
}
