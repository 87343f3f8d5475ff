package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/pkg/logger"
)

// MaxRequestMessageLength bounds the optional note attached to a join request.
const MaxRequestMessageLength = 100

type RequestAction string

const (
	ActionApprove RequestAction = "approve"
	ActionReject  RequestAction = "reject"
)

// MembershipService runs the join-request state machine and enforces the
// team-size cap.
type MembershipService struct {
	gw store.Gateway
}

func NewMembershipService(gw store.Gateway) *MembershipService {
	return &MembershipService{gw: gw}
}

type SubmitRequestInput struct {
	Message *string `json:"message"`
}

type DecideRequestInput struct {
	Action RequestAction `json:"action" binding:"required"`
}

// IncomingRequests groups one owned project with its pending requests.
type IncomingRequests struct {
	Project  models.Project       `json:"project"`
	Requests []models.JoinRequest `json:"requests"`
}

// SubmitRequest creates a PENDING request after checking every precondition,
// in order, before any write.
func (s *MembershipService) SubmitRequest(ctx context.Context, projectID, requesterID uint, message *string) (*models.JoinRequest, error) {
	note, err := normalizeRequestMessage(message)
	if err != nil {
		return nil, err
	}

	project, err := s.gw.GetProject(ctx, projectID)
	if err != nil {
		return nil, mapNotFound(err, ErrProjectNotFound)
	}
	if project.OwnerID == requesterID {
		return nil, ErrOwnRequest
	}

	member, err := s.gw.IsActiveMember(ctx, projectID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member {
		return nil, ErrAlreadyMember
	}

	pending, err := s.gw.HasPendingRequest(ctx, projectID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("check pending request: %w", err)
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	active, err := s.gw.CountActiveMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if !project.HasCapacity(active) {
		return nil, ErrTeamFull
	}

	req := &models.JoinRequest{
		ProjectID: projectID,
		UserID:    requesterID,
		Message:   note,
	}
	if err := s.gw.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicatePending
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	logger.Info().
		Uint("request_id", req.ID).
		Uint("project_id", projectID).
		Uint("user_id", requesterID).
		Msg("join request submitted")
	return req, nil
}

// DecideRequest approves or rejects a PENDING request. Approval re-checks
// capacity inside the gateway transaction; on team-full the request stays
// PENDING.
func (s *MembershipService) DecideRequest(ctx context.Context, requestID, deciderID uint, action RequestAction) (*models.JoinRequest, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, ErrInvalidAction
	}

	req, err := s.gw.GetRequest(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err, ErrRequestNotFound)
	}
	project, err := s.gw.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, mapNotFound(err, ErrProjectNotFound)
	}
	if project.OwnerID != deciderID {
		return nil, ErrNotProjectOwner
	}
	if req.Status != models.RequestPending {
		return nil, ErrRequestProcessed
	}

	var decided *models.JoinRequest
	switch action {
	case ActionApprove:
		decided, _, err = s.gw.ApproveRequest(ctx, requestID)
	case ActionReject:
		decided, err = s.gw.TransitionRequest(ctx, requestID, models.RequestPending, models.RequestRejected)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTeamFull):
			return nil, ErrTeamFull
		case errors.Is(err, store.ErrStaleStatus):
			return nil, ErrRequestProcessed
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrAlreadyMember
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("%s request: %w", action, err)
	}

	logger.Info().
		Uint("request_id", requestID).
		Uint("project_id", project.ID).
		Uint("user_id", req.UserID).
		Str("status", string(decided.Status)).
		Msg("join request decided")
	LogInfo("Membership", titleAction(action),
		fmt.Sprintf("Request %d for project %d %s", requestID, project.ID, strings.ToLower(string(decided.Status))),
		&deciderID, "", "", map[string]interface{}{
			"request_id": requestID,
			"project_id": project.ID,
			"user_id":    req.UserID,
		})
	return decided, nil
}

// WithdrawRequest lets the requester cancel their own PENDING request.
func (s *MembershipService) WithdrawRequest(ctx context.Context, requestID, requesterID uint) (*models.JoinRequest, error) {
	req, err := s.gw.GetRequest(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err, ErrRequestNotFound)
	}
	if req.UserID != requesterID {
		return nil, ErrNotRequester
	}
	if req.Status != models.RequestPending {
		return nil, ErrNotPending
	}

	withdrawn, err := s.gw.TransitionRequest(ctx, requestID, models.RequestPending, models.RequestWithdrawn)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStaleStatus):
			return nil, ErrNotPending
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("withdraw request: %w", err)
	}

	logger.Info().
		Uint("request_id", requestID).
		Uint("project_id", req.ProjectID).
		Uint("user_id", requesterID).
		Msg("join request withdrawn")
	return withdrawn, nil
}

// ListProjectRequests returns the PENDING requests of a project, newest
// first, to its owner.
func (s *MembershipService) ListProjectRequests(ctx context.Context, projectID, callerID uint) ([]models.JoinRequest, error) {
	project, err := s.gw.GetProject(ctx, projectID)
	if err != nil {
		return nil, mapNotFound(err, ErrProjectNotFound)
	}
	if project.OwnerID != callerID {
		return nil, ErrNotProjectOwner
	}
	return s.gw.ListRequests(ctx, store.RequestFilter{
		ProjectIDs: []uint{projectID},
		Status:     models.RequestPending,
		WithUser:   true,
	})
}

// ListSentRequests returns every request the user has made, newest first.
func (s *MembershipService) ListSentRequests(ctx context.Context, userID uint) ([]models.JoinRequest, error) {
	return s.gw.ListRequests(ctx, store.RequestFilter{
		UserID:      userID,
		WithProject: true,
	})
}

// ListIncomingRequests returns the owner's projects that have PENDING
// requests, each with those requests oldest first.
func (s *MembershipService) ListIncomingRequests(ctx context.Context, ownerID uint) ([]IncomingRequests, error) {
	projects, err := s.gw.ProjectsForUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var owned []models.Project
	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		if p.OwnerID == ownerID {
			owned = append(owned, p)
			ids = append(ids, p.ID)
		}
	}
	out := []IncomingRequests{}
	if len(ids) == 0 {
		return out, nil
	}

	reqs, err := s.gw.ListRequests(ctx, store.RequestFilter{
		ProjectIDs:  ids,
		Status:      models.RequestPending,
		OldestFirst: true,
		WithUser:    true,
	})
	if err != nil {
		return nil, err
	}

	byProject := make(map[uint][]models.JoinRequest)
	for _, r := range reqs {
		byProject[r.ProjectID] = append(byProject[r.ProjectID], r)
	}
	for _, p := range owned {
		if pending := byProject[p.ID]; len(pending) > 0 {
			out = append(out, IncomingRequests{Project: p, Requests: pending})
		}
	}
	return out, nil
}

func normalizeRequestMessage(message *string) (*string, error) {
	if message == nil {
		return nil, nil
	}
	if utf8.RuneCountInString(*message) > MaxRequestMessageLength {
		return nil, ErrMessageTooLong
	}
	trimmed := strings.TrimSpace(*message)
	if trimmed == "" {
		return nil, nil
	}
	return &trimmed, nil
}

func titleAction(action RequestAction) string {
	if action == ActionApprove {
		return "Approve"
	}
	return "Reject"
}

func mapNotFound(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}
