package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Metrics serves a Prometheus exposition handler, typically
// promhttp.HandlerFor on the relay's registry.
func Metrics(h http.Handler) gin.HandlerFunc {
	return gin.WrapH(h)
}
