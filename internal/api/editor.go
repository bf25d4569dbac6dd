package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"character-studio/backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

type sceneRequest struct {
	SceneIndex *int `json:"scene_index"`
}

type moveRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

type gotoRequest struct {
	Step *int `json:"step" binding:"required"`
}

// editor resolves the session of the :id status, reporting failures itself
func (h *Handler) editor(c *gin.Context) (*workflow.Editor, bool) {
	e, err := h.svc.Statuses.Editor(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return e, true
}

// run executes an editor action and answers with the fresh view
func (h *Handler) run(c *gin.Context, action func(ctx context.Context, e *workflow.Editor) error) {
	e, ok := h.editor(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), e); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

func (h *Handler) GetEditor(c *gin.Context) {
	e, ok := h.editor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

// EditWorkingCopy changes the unsaved working copy. Nothing is persisted.
func (h *Handler) EditWorkingCopy(c *gin.Context) {
	var edit workflow.Edit
	if err := c.ShouldBindJSON(&edit); err != nil {
		badRequest(c, err)
		return
	}

	h.run(c, func(_ context.Context, e *workflow.Editor) error {
		return e.Apply(edit)
	})
}

func (h *Handler) GoToStep(c *gin.Context) {
	var req gotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.GoTo(ctx, *req.Step)
	})
}

func (h *Handler) SaveEditor(c *gin.Context) {
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.Persist(ctx)
	})
}

func (h *Handler) GenerateText(c *gin.Context) {
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.GenerateText(ctx)
	})
}

// GenerateStartingImage uses the given scene, or the first non-empty one
// when scene_index is omitted
func (h *Handler) GenerateStartingImage(c *gin.Context) {
	var req sceneRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	index := -1
	if req.SceneIndex != nil {
		index = *req.SceneIndex
	}
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.GenerateStartingImage(ctx, index)
	})
}

func (h *Handler) UploadStartingImage(c *gin.Context) {
	file, closer, err := formFile(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closer.Close()

	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.UploadStartingImage(ctx, workflow.Upload{
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Body:        file.Body,
		})
	})
}

func (h *Handler) GenerateSceneVideo(c *gin.Context) {
	var req sceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.SceneIndex == nil {
		badRequest(c, errors.New("scene_index is required"))
		return
	}
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.GenerateSceneVideo(ctx, *req.SceneIndex)
	})
}

// UploadVideo appends the multipart "file" to the playlist. An optional
// "duration" form field overrides the default clip length.
func (h *Handler) UploadVideo(c *gin.Context) {
	var duration int
	if raw := c.PostForm("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			badRequest(c, errors.New("duration must be a positive number of seconds"))
			return
		}
		duration = d
	}

	file, closer, err := formFile(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closer.Close()

	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.UploadVideo(ctx, workflow.Upload{
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Body:        file.Body,
			Duration:    duration,
		})
	})
}

func (h *Handler) MoveVideo(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.MoveVideo(ctx, *req.From, *req.To)
	})
}

func (h *Handler) RemoveVideo(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, errors.New("index must be a number"))
		return
	}
	h.run(c, func(ctx context.Context, e *workflow.Editor) error {
		return e.RemoveVideo(ctx, index)
	})
}

// bindOptionalJSON binds a body if one was sent
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}
