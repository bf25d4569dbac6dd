package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Feed lists every character with its default status
func (h *Handler) Feed(c *gin.Context) {
	items, err := h.svc.Feed.Feed(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// OnboardingSteps returns the ordered step configs the app plays
func (h *Handler) OnboardingSteps(c *gin.Context) {
	steps, err := h.svc.Onboarding.Steps(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, steps)
}

func (h *Handler) Dashboard(c *gin.Context) {
	counts, err := h.svc.Dashboard.Counts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// PutOnboardingStep replaces the config of one step. The body is validated
// against the step's schema before it is stored.
func (h *Handler) PutOnboardingStep(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}
	step, err := h.svc.Onboarding.Put(c.Request.Context(), c.Param("step"), raw)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}
