// Package api contains the gin handlers of the admin and consumer API.
package api

import (
	"net/http"

	"character-studio/backend/internal/service"
	"character-studio/backend/internal/ws"
	"character-studio/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Services
	hub *ws.Hub
}

func NewHandler(svc *service.Services, hub *ws.Hub) *Handler {
	return &Handler{svc: svc, hub: hub}
}

// RegisterPublicRoutes mounts the consumer endpoints
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/feed", h.Feed)
	rg.GET("/onboarding", h.OnboardingSteps)
}

// RegisterUserRoutes mounts endpoints for any authenticated user
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
}

// RegisterAdminRoutes mounts the dashboard endpoints. generationLimit guards
// the routes that call the generation gateway.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup, generationLimit gin.HandlerFunc) {
	rg.GET("/dashboard", h.Dashboard)
	rg.GET("/ws", h.Events)

	characters := rg.Group("/characters")
	characters.GET("", h.ListCharacters)
	characters.POST("", h.CreateCharacter)
	characters.GET("/:id", h.GetCharacter)
	characters.PUT("/:id", h.UpdateCharacter)
	characters.DELETE("/:id", h.DeleteCharacter)
	characters.POST("/:id/avatar", h.UploadAvatar)

	statuses := rg.Group("/statuses")
	statuses.GET("", h.ListStatuses)
	statuses.POST("", h.CreateStatus)
	statuses.GET("/:id", h.GetStatus)
	statuses.PUT("/:id", h.UpdateStatus)
	statuses.DELETE("/:id", h.DeleteStatus)
	statuses.POST("/:id/default", h.SetDefaultStatus)

	editor := statuses.Group("/:id/editor")
	editor.GET("", h.GetEditor)
	editor.PATCH("", h.EditWorkingCopy)
	editor.POST("/goto", h.GoToStep)
	editor.POST("/save", h.SaveEditor)
	editor.POST("/generate-text", generationLimit, h.GenerateText)
	editor.POST("/generate-image", generationLimit, h.GenerateStartingImage)
	editor.POST("/starting-image", h.UploadStartingImage)
	editor.POST("/videos/generate", generationLimit, h.GenerateSceneVideo)
	editor.POST("/videos", h.UploadVideo)
	editor.POST("/videos/move", h.MoveVideo)
	editor.DELETE("/videos/:index", h.RemoveVideo)

	prompts := rg.Group("/prompts")
	prompts.GET("", h.ListPrompts)
	prompts.POST("", h.CreatePrompt)
	prompts.GET("/:id", h.GetPrompt)
	prompts.PUT("/:id", h.UpdatePrompt)
	prompts.DELETE("/:id", h.DeletePrompt)

	assets := rg.Group("/assets")
	assets.GET("", h.ListAssets)
	assets.POST("", h.UploadAsset)
	assets.GET("/:id", h.GetAsset)
	assets.DELETE("/:id", h.DeleteAsset)

	h.registerLooks(rg.Group("/templates"), h.svc.Templates)
	h.registerLooks(rg.Group("/transformations"), h.svc.Transformations)

	rg.PUT("/onboarding/:step", h.PutOnboardingStep)
}

// Me returns the caller's token claims
func (h *Handler) Me(c *gin.Context) {
	claims, _ := c.Get("claims")
	jwtClaims, ok := claims.(*jwt.JWTClaims)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userId")})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": jwtClaims.Subject,
		"email":   jwtClaims.Email,
		"role":    jwtClaims.Role,
		"admin":   jwtClaims.HasRole(jwt.RoleAdmin),
	})
}

// Events upgrades to the admin event websocket
func (h *Handler) Events(c *gin.Context) {
	ws.ServeWs(h.hub, c)
}
