package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one sample per finished request.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
}

// Metrics returns a middleware that records request count and latency,
// labelled by the route rule name.
func Metrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		recorder.RecordRequest(c.Request.Method, GetRoute(c), c.Writer.Status(), time.Since(start))
	}
}
