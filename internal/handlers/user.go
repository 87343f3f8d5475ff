package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/middleware"
	"github.com/taskmate/backend/internal/services"
	"github.com/taskmate/backend/pkg/response"
)

// UserHandler serves profiles and the caller's own views.
type UserHandler struct {
	userService    *services.UserService
	projectService *services.ProjectService
	projector      *services.PreviewProjector
}

func NewUserHandler(userService *services.UserService, projectService *services.ProjectService, projector *services.PreviewProjector) *UserHandler {
	return &UserHandler{
		userService:    userService,
		projectService: projectService,
		projector:      projector,
	}
}

// GetMe returns the caller's profile
// GET /api/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// UpdateMe creates or replaces the caller's profile
// PUT /api/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// GetByID returns another user's profile
// GET /api/users/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id", "invalid user id")
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// MyProjects lists owned and joined projects
// GET /api/me/projects
func (h *UserHandler) MyProjects(c *gin.Context) {
	projects, err := h.projectService.ForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, projects)
}

// MyChats lists the caller's project chats with their latest message
// GET /api/me/chats
func (h *UserHandler) MyChats(c *gin.Context) {
	inbox, err := h.projector.Inbox(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, inbox)
}
