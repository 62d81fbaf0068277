package api

import (
	"homewatt/auth"
	"homewatt/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterAuthRoutes(router *gin.Engine, authModule *auth.AuthModule) {
	r := router.Group("/auth")
	{
		r.POST("/login", func(c *gin.Context) {
			var loginRequest models.LoginRequest
			if err := c.ShouldBindJSON(&loginRequest); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			access, refresh, err := authModule.Login(c, loginRequest.Username, loginRequest.Password)
			if err != nil {
				c.JSON(401, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"token": access, "refresh_token": refresh})
		})

		r.POST("/register", func(c *gin.Context) {
			var registerRequest models.RegisterRequest
			if err := c.ShouldBindJSON(&registerRequest); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			access, refresh, err := authModule.Register(c, registerRequest.Username, registerRequest.Password, registerRequest.Email)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			c.JSON(201, gin.H{"token": access, "refresh_token": refresh})
		})

		r.POST("/refresh", func(c *gin.Context) {
			var refreshRequest models.RefreshRequest
			if err := c.ShouldBindJSON(&refreshRequest); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			access, refresh, err := authModule.Refresh(c, refreshRequest.RefreshToken)
			if err != nil {
				c.JSON(401, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"token": access, "refresh_token": refresh})
		})

		r.POST("/logout", func(c *gin.Context) {
			var refreshRequest models.RefreshRequest
			if err := c.ShouldBindJSON(&refreshRequest); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if err := authModule.Logout(c, refreshRequest.RefreshToken); err != nil {
				c.JSON(500, gin.H{"error": "Failed to log out"})
				return
			}
			c.JSON(200, gin.H{"status": "Logged out"})
		})
	}
}
