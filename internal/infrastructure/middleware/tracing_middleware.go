package middleware

import (
	"net/http"

	"emberlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware spans every console API request. Requests that name
// a single endpoint carry its id, so traces can be filtered per unit.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		if id := c.Param("id"); id != "" {
			span.SetAttributes(tracing.EndpointIDKey.String(id))
		} else if from := c.Query("from"); from != "" {
			span.SetAttributes(tracing.EndpointIDKey.String(from))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		if c.Writer.Status() >= http.StatusBadRequest {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}
