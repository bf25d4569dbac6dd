package api

import (
	"fmt"
	"mime/multipart"

	"character-studio/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// formFile opens the multipart file in field. The caller must close it.
func formFile(c *gin.Context, field string) (service.File, multipart.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.File{}, nil, fmt.Errorf("%s: a file is required", field)
	}
	f, err := header.Open()
	if err != nil {
		return service.File{}, nil, fmt.Errorf("%s: %w", field, err)
	}
	return service.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
	}, f, nil
}
