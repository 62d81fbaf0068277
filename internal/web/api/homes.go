package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"homewatt/internal/db"
	coremodels "homewatt/internal/models"
	"homewatt/internal/realtime"
	"homewatt/internal/web/middleware"
	"homewatt/internal/web/models"
)

func RegisterHomeRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, database *db.DB, hub *realtime.Hub) {
	homes := r.Group("/homes")
	homes.Use(middleware.RequireAuth())
	{
		homes.GET("", func(c *gin.Context) {
			userID := c.GetString("user_id")
			list, err := database.FindHomesByOwner(c, userID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch homes"})
				return
			}
			if list == nil {
				list = []coremodels.Home{}
			}
			c.JSON(200, list)
		})

		homes.POST("", func(c *gin.Context) {
			userID := c.GetString("user_id")
			var req models.AddHomeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			home := coremodels.Home{ID: uuid.NewString(), Name: req.Name, OwnerID: userID}
			if err := database.InsertHome(c, &home); err != nil {
				c.JSON(500, gin.H{"error": "Failed to create home"})
				return
			}
			c.JSON(201, home)
		})

		homes.GET("/:homeID/activity", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			entries, err := database.FindActivityByHome(c, homeID, 50)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch activity"})
				return
			}
			if entries == nil {
				entries = []coremodels.HomeActivity{}
			}
			c.JSON(200, entries)
		})

		// Live event stream; the engine's device mutations arrive here.
		homes.GET("/:homeID/events", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			hub.ServeWS(c.Writer, c.Request, homeID)
		})
	}
}
