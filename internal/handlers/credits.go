package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"video-studio/internal/middleware"
	"video-studio/internal/models"
)

type CreditsHandler struct {
	credits CreditStore
}

func NewCreditsHandler(credits CreditStore) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

// GetCurrentUserCredits godoc
// @Summary     Get the caller's video credits
// @Description Returns consumed and available video counts for the authenticated user.
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.CreditBalance
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /api/video-credits/current-user [get]
func (h *CreditsHandler) GetCurrentUserCredits(c *gin.Context) {
	rec, err := h.credits.GetCredits(c.Request.Context(), middleware.UserLogin(c))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "credits not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get credits", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec.Balance())
}
