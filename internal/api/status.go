package api

import (
	"net/http"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListStatuses supports ?character_id= and ?generation_status= filters
func (h *Handler) ListStatuses(c *gin.Context) {
	filter := repository.StatusFilter{
		CharacterID:      c.Query("character_id"),
		GenerationStatus: models.GenerationStatus(c.Query("generation_status")),
		Page:             page(c),
	}
	statuses, err := h.svc.Statuses.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.svc.Statuses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) CreateStatus(c *gin.Context) {
	var req models.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	status, err := h.svc.Statuses.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, status)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req models.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	status, err := h.svc.Statuses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) DeleteStatus(c *gin.Context) {
	if err := h.svc.Statuses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDefaultStatus makes the status its character's feed entry
func (h *Handler) SetDefaultStatus(c *gin.Context) {
	status, err := h.svc.Statuses.SetDefault(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
