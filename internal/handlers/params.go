package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// conversationIDParam parses the :id route segment. On failure it writes
// the 400 response itself and reports ok=false.
func conversationIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}
