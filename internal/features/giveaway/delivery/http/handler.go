package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "giveaway-core-backend/internal/common/errors"
	"giveaway-core-backend/internal/common/middleware"
	"giveaway-core-backend/internal/features/giveaway/models"
	"giveaway-core-backend/internal/features/giveaway/service"
)

type GiveawayHandler struct {
	service service.GiveawayService
}

func NewGiveawayHandler(service service.GiveawayService) *GiveawayHandler {
	return &GiveawayHandler{
		service: service,
	}
}

func (h *GiveawayHandler) RegisterRoutes(router *gin.RouterGroup) {
	giveaways := router.Group("/giveaways")
	{
		giveaways.POST("", h.create)
		giveaways.GET("/active/:account_id", h.getActive)
		giveaways.GET("/history/:account_id", h.getHistory)
		giveaways.GET("/by-token/:token", h.getByToken)
		giveaways.GET("/:id", h.get)
		giveaways.GET("/:id/validate", h.validateState)
		giveaways.POST("/:id/publish", h.publish)
		giveaways.PUT("/:id/finish-messages", h.updateFinishMessages)
		giveaways.POST("/:id/finish", h.finish)
		giveaways.GET("/:id/stats", h.getStats)
		giveaways.GET("/:id/logs", h.getLogs)
	}
}

func (h *GiveawayHandler) create(c *gin.Context) {
	var input models.GiveawayCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	giveaway, err := h.service.Create(c.Request.Context(), &input)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "giveaway": giveaway})
}

func (h *GiveawayHandler) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	details, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "giveaway": details})
}

func (h *GiveawayHandler) validateState(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	report, err := h.service.ValidateState(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "validation": report})
}

func (h *GiveawayHandler) getActive(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}

	details, err := h.service.GetActive(c.Request.Context(), accountID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "giveaway": details})
}

func (h *GiveawayHandler) publish(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Publish(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *GiveawayHandler) updateFinishMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input models.FinishMessagesUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request body"))
		return
	}

	if err := h.service.UpdateFinishMessages(c.Request.Context(), id, &input); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *GiveawayHandler) finish(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Finish(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *GiveawayHandler) getHistory(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	history, err := h.service.GetHistory(c.Request.Context(), accountID, page, limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
}

func (h *GiveawayHandler) getStats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (h *GiveawayHandler) getByToken(c *gin.Context) {
	view, err := h.service.GetByResultToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "giveaway": view})
}

func (h *GiveawayHandler) getLogs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.GetLogs(c.Request.Context(), id, queryInt(c, "limit", 0))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "logs": entries})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondError(c, apperrors.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
