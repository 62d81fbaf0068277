package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"homewatt/internal/automation"
	"homewatt/internal/db"
	coremodels "homewatt/internal/models"
	"homewatt/internal/web/middleware"
	"homewatt/internal/web/models"
)

func RegisterDeviceRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, database *db.DB, broadcaster automation.Broadcaster, commander automation.Commander) {
	homes := r.Group("/homes")
	homes.Use(middleware.RequireAuth())
	{
		homes.GET("/:homeID/devices", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			devices, err := database.Find(c, homeID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch devices"})
				return
			}
			if devices == nil {
				devices = []coremodels.Device{}
			}
			c.JSON(200, devices)
		})

		homes.POST("/:homeID/devices", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			var req models.AddDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			device := coremodels.Device{
				ID:         uuid.NewString(),
				HomeID:     homeID,
				Name:       req.Name,
				Category:   req.Category,
				Status:     coremodels.StatusOff,
				RatedPower: req.RatedPower,
				Priority:   req.Priority,
				MQTTTopic:  req.MQTTTopic,
			}
			if err := database.InsertDevice(c, &device); err != nil {
				c.JSON(500, gin.H{"error": "Failed to create device"})
				return
			}
			c.JSON(201, device)
		})
	}

	devices := r.Group("/devices")
	devices.Use(middleware.RequireAuth())
	{
		// Manual toggle. Stamps last_manual_control, which the safety
		// pipeline's recent-manual-override check reads for the next 30
		// minutes.
		devices.POST("/:id/toggle", func(c *gin.Context) {
			userID := c.GetString("user_id")

			var req models.ToggleDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			device, err := database.FindDeviceByID(c, c.Param("id"))
			if errors.Is(err, automation.ErrNotFound) {
				c.JSON(404, gin.H{"error": "Device not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}
			home, err := database.FindHomeByID(c, device.HomeID)
			if err != nil || home.OwnerID != userID {
				c.JSON(403, gin.H{"error": "Forbidden"})
				return
			}

			if req.Active {
				device.Status = coremodels.StatusOn
			} else {
				device.Status = coremodels.StatusOff
			}
			device.NormalizeState()
			now := time.Now()
			device.LastManualControl = &now

			if err := database.Save(c, device); err != nil {
				c.JSON(500, gin.H{"error": "Failed to update device"})
				return
			}

			if broadcaster != nil {
				broadcaster.Publish(device.HomeID, automation.EventDeviceStateChanged, automation.DeviceStateEvent{
					DeviceID:     device.ID,
					IsActive:     device.IsActive,
					CurrentPower: device.CurrentPower,
					Status:       device.Status,
				})
			}
			if commander != nil {
				commander.PushState(*device)
			}

			c.JSON(200, device)
		})

		devices.DELETE("/:id", func(c *gin.Context) {
			userID := c.GetString("user_id")

			device, err := database.FindDeviceByID(c, c.Param("id"))
			if errors.Is(err, automation.ErrNotFound) {
				c.JSON(404, gin.H{"error": "Device not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}
			home, err := database.FindHomeByID(c, device.HomeID)
			if err != nil || home.OwnerID != userID {
				c.JSON(403, gin.H{"error": "Forbidden"})
				return
			}

			if err := database.DeleteDevice(c, device.ID); err != nil {
				c.JSON(500, gin.H{"error": "Failed to delete device"})
				return
			}
			c.JSON(200, gin.H{"status": "Device deleted"})
		})
	}
}
