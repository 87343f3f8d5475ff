package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/pkg/logger"
)

type ProjectService struct {
	gw        store.Gateway
	projector *PreviewProjector
}

func NewProjectService(gw store.Gateway, projector *PreviewProjector) *ProjectService {
	return &ProjectService{gw: gw, projector: projector}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OwnerID  uint   `form:"owner_id"`
	City     string `form:"city"`
}

type ProjectListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []ProjectView `json:"items"`
}

type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=5000"`
	City        string `json:"city" binding:"max=100"`
	TeamSize    int    `json:"team_size" binding:"required,min=1"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	City        *string `json:"city" binding:"omitempty,max=100"`
	TeamSize    *int    `json:"team_size" binding:"omitempty,min=1"`
}

// ProjectView is a project with its seat usage. MemberCount includes the owner.
type ProjectView struct {
	models.Project
	MemberCount int64               `json:"member_count"`
	Members     []models.Membership `json:"members,omitempty"`
	Role        string              `json:"role,omitempty"`
}

// List returns paginated projects, newest first.
func (s *ProjectService) List(ctx context.Context, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	projects, total, err := s.gw.ListProjects(ctx, store.ProjectFilter{
		OwnerID:  req.OwnerID,
		City:     req.City,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, err
	}
	items, err := s.withCounts(ctx, projects, 0)
	if err != nil {
		return nil, err
	}
	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// GetByID returns the project with its active members.
func (s *ProjectService) GetByID(ctx context.Context, id uint) (*ProjectView, error) {
	project, err := s.gw.GetProject(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrProjectNotFound)
	}
	members, err := s.gw.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProjectView{
		Project:     *project,
		MemberCount: models.MemberCount(int64(len(members))),
		Members:     members,
	}, nil
}

// Create stores a new project owned by ownerID.
func (s *ProjectService) Create(ctx context.Context, ownerID uint, req *CreateProjectRequest) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if req.TeamSize < 1 {
		return nil, ErrInvalidTeamSize
	}

	project := &models.Project{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		City:        strings.TrimSpace(req.City),
		TeamSize:    req.TeamSize,
	}
	if err := s.gw.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	logger.Info().Uint("project_id", project.ID).Uint("user_id", ownerID).Msg("project created")
	return project, nil
}

// Update changes a project's fields. Only the owner may update, and the team
// size can never drop below the current member count.
func (s *ProjectService) Update(ctx context.Context, id, callerID uint, req *UpdateProjectRequest) (*models.Project, error) {
	if err := s.requireOwner(ctx, id, callerID); err != nil {
		return nil, err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, ErrTitleRequired
	}
	if req.TeamSize != nil && *req.TeamSize < 1 {
		return nil, ErrInvalidTeamSize
	}

	project, err := s.gw.UpdateProject(ctx, id, store.ProjectUpdate{
		Title:       trimmed(req.Title),
		Description: trimmed(req.Description),
		City:        trimmed(req.City),
		TeamSize:    req.TeamSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTeamSizeTooSmall):
			return nil, ErrTeamSizeTooSmall
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

// Delete removes the project with its memberships, requests and chat log.
func (s *ProjectService) Delete(ctx context.Context, id, callerID uint) error {
	if err := s.requireOwner(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.gw.DeleteProject(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	if s.projector != nil {
		s.projector.Forget(id)
	}
	logger.Info().Uint("project_id", id).Uint("user_id", callerID).Msg("project deleted")
	return nil
}

// ForUser returns the projects the user owns or is an active member of.
func (s *ProjectService) ForUser(ctx context.Context, userID uint) ([]ProjectView, error) {
	projects, err := s.gw.ProjectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withCounts(ctx, projects, userID)
}

func (s *ProjectService) requireOwner(ctx context.Context, id, callerID uint) error {
	project, err := s.gw.GetProject(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrProjectNotFound)
	}
	if project.OwnerID != callerID {
		return ErrNotProjectOwner
	}
	return nil
}

func (s *ProjectService) withCounts(ctx context.Context, projects []models.Project, viewerID uint) ([]ProjectView, error) {
	ids := make([]uint, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	counts, err := s.gw.CountActiveMembersBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ProjectView, len(projects))
	for i := range projects {
		views[i] = ProjectView{
			Project:     projects[i],
			MemberCount: models.MemberCount(counts[projects[i].ID]),
		}
		if viewerID != 0 {
			views[i].Role = "member"
			if projects[i].OwnerID == viewerID {
				views[i].Role = "owner"
			}
		}
	}
	return views, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
