package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/services"
	"github.com/taskmate/backend/pkg/response"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(configService *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService}
}

// List returns runtime settings, optionally filtered by ?group=
// GET /api/admin/system-configs
func (h *SystemConfigHandler) List(c *gin.Context) {
	configs, err := h.configService.GetByGroup(c.Query("group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, configs)
}

// Update changes one existing setting
// PUT /api/admin/system-configs/:key
func (h *SystemConfigHandler) Update(c *gin.Context) {
	var req services.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	cfg, err := h.configService.Update(c.Param("key"), &req)
	switch {
	case errors.Is(err, services.ErrConfigNotFound):
		response.NotFound(c, err.Error())
		return
	case services.IsInvalidConfigValue(err):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}
