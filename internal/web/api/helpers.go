package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"homewatt/internal/automation"
	"homewatt/internal/db"
)

// requireHomeOwned resolves the :homeID parameter and rejects the request
// unless the authenticated user owns the home
func requireHomeOwned(c *gin.Context, database *db.DB) (string, bool) {
	homeID := c.Param("homeID")
	userID := c.GetString("user_id")

	home, err := database.FindHomeByID(c, homeID)
	if errors.Is(err, automation.ErrNotFound) {
		c.JSON(404, gin.H{"error": "Home not found"})
		return "", false
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to fetch home"})
		return "", false
	}
	if home.OwnerID != userID {
		c.JSON(403, gin.H{"error": "Forbidden"})
		return "", false
	}
	return homeID, true
}
