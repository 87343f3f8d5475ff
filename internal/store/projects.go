package store

import (
	"context"

	"github.com/taskmate/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (g *GormGateway) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := g.db.WithContext(ctx).Preload("Owner").First(&project, id).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (g *GormGateway) ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	query := g.db.WithContext(ctx).Model(&models.Project{})
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Preload("Owner").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (g *GormGateway) CreateProject(ctx context.Context, project *models.Project) error {
	return translate(g.db.WithContext(ctx).Create(project).Error)
}

// UpdateProject applies update under the same project row lock approvals use,
// so a concurrent approval cannot slip past a shrinking team size.
func (g *GormGateway) UpdateProject(ctx context.Context, id uint, update ProjectUpdate) (*models.Project, error) {
	var project models.Project
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, id).Error; err != nil {
			return translate(err)
		}

		changes := map[string]interface{}{}
		if update.Title != nil {
			changes["title"] = *update.Title
		}
		if update.Description != nil {
			changes["description"] = *update.Description
		}
		if update.City != nil {
			changes["city"] = *update.City
		}
		if update.TeamSize != nil && *update.TeamSize != project.TeamSize {
			active, err := lockActiveMembers(tx, id)
			if err != nil {
				return err
			}
			if models.MemberCount(active) > int64(*update.TeamSize) {
				return ErrTeamSizeTooSmall
			}
			changes["team_size"] = *update.TeamSize
		}
		if len(changes) == 0 {
			return nil
		}
		changes["updated_at"] = now()
		if err := tx.Model(&project).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&project, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject removes the project together with its memberships, requests
// and messages.
func (g *GormGateway) DeleteProject(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, id).Error; err != nil {
			return translate(err)
		}
		for _, model := range []interface{}{&models.Message{}, &models.JoinRequest{}, &models.Membership{}} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&project).Error
	})
}

// ProjectsForUser returns projects the user owns or is an active member of.
func (g *GormGateway) ProjectsForUser(ctx context.Context, userID uint) ([]models.Project, error) {
	db := g.db.WithContext(ctx)
	memberOf := db.Model(&models.Membership{}).
		Select("project_id").
		Where("user_id = ? AND status = ?", userID, models.MembershipActive)

	var projects []models.Project
	err := db.Preload("Owner").
		Where("owner_id = ? OR id IN (?)", userID, memberOf).
		Order("created_at DESC").Order("id DESC").
		Find(&projects).Error
	return projects, err
}

func (g *GormGateway) CountActiveMembers(ctx context.Context, projectID uint) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Membership{}).
		Where("project_id = ? AND status = ?", projectID, models.MembershipActive).
		Count(&count).Error
	return count, err
}

func (g *GormGateway) CountActiveMembersBatch(ctx context.Context, projectIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ProjectID uint
		Total     int64
	}
	err := g.db.WithContext(ctx).Model(&models.Membership{}).
		Select("project_id, COUNT(*) AS total").
		Where("project_id IN ? AND status = ?", projectIDs, models.MembershipActive).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ProjectID] = r.Total
	}
	return out, nil
}

func (g *GormGateway) IsActiveMember(ctx context.Context, projectID, userID uint) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Membership{}).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, models.MembershipActive).
		Count(&count).Error
	return count > 0, err
}

func (g *GormGateway) ListMembers(ctx context.Context, projectID uint) ([]models.Membership, error) {
	var members []models.Membership
	err := g.db.WithContext(ctx).Preload("User").
		Where("project_id = ? AND status = ?", projectID, models.MembershipActive).
		Order("created_at ASC").Order("id ASC").
		Find(&members).Error
	return members, err
}

// lockActiveMembers counts active memberships with a locking read. Postgres
// refuses FOR UPDATE on aggregates, so the ids are plucked instead.
func lockActiveMembers(tx *gorm.DB, projectID uint) (int64, error) {
	var ids []uint
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&models.Membership{}).
		Where("project_id = ? AND status = ?", projectID, models.MembershipActive).
		Pluck("id", &ids).Error
	return int64(len(ids)), err
}
