package api

import (
	"net/http"

	"character-studio/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListCharacters(c *gin.Context) {
	characters, err := h.svc.Characters.List(c.Request.Context(), page(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, characters)
}

func (h *Handler) GetCharacter(c *gin.Context) {
	character, err := h.svc.Characters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}

func (h *Handler) CreateCharacter(c *gin.Context) {
	var req models.CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	character, err := h.svc.Characters.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, character)
}

func (h *Handler) UpdateCharacter(c *gin.Context) {
	var req models.CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	character, err := h.svc.Characters.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// DeleteCharacter removes the character and, through the foreign key, its statuses
func (h *Handler) DeleteCharacter(c *gin.Context) {
	if err := h.svc.Characters.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAvatar stores the multipart "file" as the character's avatar
func (h *Handler) UploadAvatar(c *gin.Context) {
	file, closer, err := formFile(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closer.Close()

	character, err := h.svc.Characters.UploadAvatar(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}
