package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// notFoundHandler answers any unmatched route with a JSON 404, adapted
// from the teacher's router.go NoRoute handler (there it fell back to
// serving an embedded web UI for non-API paths; this server has no web
// UI to serve, so every unmatched route is an API 404).
func notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
}
