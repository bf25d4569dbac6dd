package api

import (
	"errors"
	"strconv"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/onboarding"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/service"
	"character-studio/backend/internal/workflow"
	apperrors "character-studio/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// toAppError classifies domain errors for the error middleware
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, service.ErrInvalid),
		errors.Is(err, onboarding.ErrInvalidConfig):
		return apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeNotFound, "Resource not found").WithCause(err)
	case errors.Is(err, onboarding.ErrUnknownStep):
		return apperrors.NewNotFoundError(apperrors.CodeNotFound, err.Error())
	case errors.Is(err, workflow.ErrBusy):
		return apperrors.NewConflictError(apperrors.CodeActionInProgress, "This action is already running")
	case errors.Is(err, workflow.ErrSceneGenerated):
		return apperrors.NewConflictError(apperrors.CodeConflict, err.Error())
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflictError(apperrors.CodeConflict, "A record with this id already exists")
	case errors.Is(err, generation.ErrUnavailable):
		return apperrors.NewServiceUnavailableError(apperrors.CodeGenerationUnavailable, "Generation is temporarily unavailable, try again shortly").WithCause(err)
	case errors.Is(err, workflow.ErrGeneration):
		return apperrors.NewBadGatewayError(apperrors.CodeGenerationFailed, err.Error())
	}
	return apperrors.NewInternalServerError(apperrors.CodeInternal, "Something went wrong").WithCause(err)
}

// fail attaches err for the error middleware and stops the chain
func fail(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}

func badRequest(c *gin.Context, err error) {
	c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
	c.Abort()
}

// page reads ?page=, defaulting to the first page
func page(c *gin.Context) int {
	p, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}
