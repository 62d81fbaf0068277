package models

import (
	coremodels "homewatt/internal/models"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AddHomeRequest struct {
	Name string `json:"name" binding:"required"`
}

type AddDeviceRequest struct {
	Name       string  `json:"name" binding:"required"`
	Category   string  `json:"category" binding:"required"`
	RatedPower float64 `json:"rated_power"`
	Priority   int     `json:"priority"`
	MQTTTopic  string  `json:"mqtt_topic"`
}

type ToggleDeviceRequest struct {
	Active bool `json:"active"`
}

type AddRuleRequest struct {
	Name        string                  `json:"name" binding:"required"`
	Enabled     bool                    `json:"enabled"`
	Priority    int                     `json:"priority"`
	Trigger     coremodels.Trigger      `json:"trigger" binding:"required"`
	Action      coremodels.Action       `json:"action" binding:"required"`
	Constraints coremodels.Constraints  `json:"constraints"`
	Overrides   coremodels.Overrides    `json:"overrides"`
}

type UpdateRuleRequest struct {
	Name        *string                 `json:"name"`
	Enabled     *bool                   `json:"enabled"`
	Priority    *int                    `json:"priority"`
	Trigger     *coremodels.Trigger     `json:"trigger"`
	Action      *coremodels.Action      `json:"action"`
	Constraints *coremodels.Constraints `json:"constraints"`
	Overrides   *coremodels.Overrides   `json:"overrides"`
}
