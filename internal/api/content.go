package api

import (
	"net/http"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/service"

	"github.com/gin-gonic/gin"
)

type reorderRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

func listOptions(c *gin.Context) repository.ListOptions {
	return repository.ListOptions{Category: c.Query("category"), Page: page(c)}
}

func (h *Handler) ListPrompts(c *gin.Context) {
	prompts, err := h.svc.Prompts.List(c.Request.Context(), listOptions(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

func (h *Handler) GetPrompt(c *gin.Context) {
	prompt, err := h.svc.Prompts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (h *Handler) CreatePrompt(c *gin.Context) {
	var req models.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	prompt, err := h.svc.Prompts.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, prompt)
}

func (h *Handler) UpdatePrompt(c *gin.Context) {
	var req models.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	prompt, err := h.svc.Prompts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (h *Handler) DeletePrompt(c *gin.Context) {
	if err := h.svc.Prompts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListAssets(c *gin.Context) {
	assets, err := h.svc.Assets.List(c.Request.Context(), listOptions(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) GetAsset(c *gin.Context) {
	asset, err := h.svc.Assets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

// UploadAsset takes a multipart "file" plus "name" and "category" fields
func (h *Handler) UploadAsset(c *gin.Context) {
	file, closer, err := formFile(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closer.Close()

	asset, err := h.svc.Assets.Upload(c.Request.Context(), c.PostForm("name"), c.PostForm("category"), file)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	if err := h.svc.Assets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// registerLooks mounts the look-item routes for one category
func (h *Handler) registerLooks(rg *gin.RouterGroup, svc *service.LookService) {
	looks := &lookHandler{svc: svc}
	rg.GET("", looks.list)
	rg.POST("", looks.create)
	rg.POST("/reorder", looks.reorder)
	rg.GET("/:id", looks.get)
	rg.PUT("/:id", looks.update)
	rg.DELETE("/:id", looks.remove)
	rg.POST("/:id/image", looks.uploadImage)
}

type lookHandler struct {
	svc *service.LookService
}

func (l *lookHandler) list(c *gin.Context) {
	items, err := l.svc.List(c.Request.Context(), page(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (l *lookHandler) get(c *gin.Context) {
	item, err := l.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (l *lookHandler) create(c *gin.Context) {
	var req models.LookItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := l.svc.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (l *lookHandler) update(c *gin.Context) {
	var req models.LookItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := l.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (l *lookHandler) remove(c *gin.Context) {
	if err := l.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (l *lookHandler) reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	items, err := l.svc.Reorder(c.Request.Context(), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (l *lookHandler) uploadImage(c *gin.Context) {
	file, closer, err := formFile(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closer.Close()

	item, err := l.svc.UploadImage(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
