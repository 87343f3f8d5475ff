package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/middleware"
	"github.com/taskmate/backend/internal/services"
	"github.com/taskmate/backend/pkg/response"
)

// MembershipHandler exposes the join-request lifecycle.
type MembershipHandler struct {
	membershipService *services.MembershipService
}

func NewMembershipHandler(membershipService *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

// Submit asks to join a project.
// POST /api/projects/:id/requests
func (h *MembershipHandler) Submit(c *gin.Context) {
	projectID, ok := paramID(c, "id", "invalid project id")
	if !ok {
		return
	}

	var req services.SubmitRequestInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return
		}
	}

	created, err := h.membershipService.SubmitRequest(c.Request.Context(), projectID, middleware.GetUserID(c), req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// ListForProject returns the project's pending requests to its owner.
// GET /api/projects/:id/requests
func (h *MembershipHandler) ListForProject(c *gin.Context) {
	projectID, ok := paramID(c, "id", "invalid project id")
	if !ok {
		return
	}

	reqs, err := h.membershipService.ListProjectRequests(c.Request.Context(), projectID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, reqs)
}

// Decide approves or rejects a pending request.
// PATCH /api/requests/:id
func (h *MembershipHandler) Decide(c *gin.Context) {
	requestID, ok := paramID(c, "id", "invalid request id")
	if !ok {
		return
	}

	var req services.DecideRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	decided, err := h.membershipService.DecideRequest(c.Request.Context(), requestID, middleware.GetUserID(c), req.Action)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, decided)
}

// Withdraw cancels the caller's own pending request.
// DELETE /api/requests/:id
func (h *MembershipHandler) Withdraw(c *gin.Context) {
	requestID, ok := paramID(c, "id", "invalid request id")
	if !ok {
		return
	}

	withdrawn, err := h.membershipService.WithdrawRequest(c.Request.Context(), requestID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, withdrawn)
}

// Sent lists every request the caller has made.
// GET /api/me/requests/sent
func (h *MembershipHandler) Sent(c *gin.Context) {
	reqs, err := h.membershipService.ListSentRequests(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, reqs)
}

// Incoming lists pending requests across the caller's projects.
// GET /api/me/requests/incoming
func (h *MembershipHandler) Incoming(c *gin.Context) {
	groups, err := h.membershipService.ListIncomingRequests(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, groups)
}
