// Package validator checks JSON requests against the service's OpenAPI contract.
package validator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	apperrors "character-studio/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var embeddedSchema []byte

// Schema returns the built-in OpenAPI document
func Schema() []byte {
	return embeddedSchema
}

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator loads the schema at path, or the embedded one when path is empty
func NewOpenAPIValidator(path string) (*OpenAPIValidator, error) {
	data := embeddedSchema
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read OpenAPI schema %s: %w", path, err)
		}
		data = b
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse OpenAPI schema: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}
	return &OpenAPIValidator{doc: doc, router: router}, nil
}

// Middleware rejects requests that violate the schema. Routes the schema
// does not describe pass through untouched.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         true,
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, "Invalid request").
				WithDetails(describe(err)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// describe flattens validation errors into client-readable lines
func describe(err error) []string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		out := make([]string, 0, len(multi))
		for _, e := range multi {
			out = append(out, describe(e)...)
		}
		return out
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			field := strings.Join(schemaErr.JSONPointer(), ".")
			if field == "" {
				return []string{schemaErr.Reason}
			}
			return []string{field + ": " + schemaErr.Reason}
		}
		if reqErr.Parameter != nil {
			return []string{reqErr.Parameter.Name + ": " + reqErr.Reason}
		}
		if reqErr.Reason != "" {
			return []string{reqErr.Reason}
		}
	}
	return []string{err.Error()}
}
