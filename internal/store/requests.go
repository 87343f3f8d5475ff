package store

import (
	"context"

	"github.com/taskmate/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (g *GormGateway) GetRequest(ctx context.Context, id uint) (*models.JoinRequest, error) {
	var req models.JoinRequest
	if err := g.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (g *GormGateway) HasPendingRequest(ctx context.Context, projectID, userID uint) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.JoinRequest{}).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, models.RequestPending).
		Count(&count).Error
	return count > 0, err
}

// CreateRequest inserts a PENDING request. The pending check and the insert
// run under the project row lock, so concurrent submissions for the same
// project serialize on every driver; idx_request_pending backs this up where
// the database supports partial indexes. A duplicate surfaces as ErrDuplicate.
func (g *GormGateway) CreateRequest(ctx context.Context, req *models.JoinRequest) error {
	req.Status = models.RequestPending
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&project, req.ProjectID).Error; err != nil {
			return translate(err)
		}

		var pending int64
		// Read after the lock so MySQL sees requests committed while waiting.
		if err := tx.Model(&models.JoinRequest{}).
			Where("project_id = ? AND user_id = ? AND status = ?", req.ProjectID, req.UserID, models.RequestPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicate
		}
		return translate(tx.Create(req).Error)
	})
}

// TransitionRequest moves a request from one status to another with a
// conditional update, so a stale read never overwrites a terminal state.
func (g *GormGateway) TransitionRequest(ctx context.Context, id uint, from, to models.RequestStatus) (*models.JoinRequest, error) {
	if !models.CanTransition(from, to) {
		return nil, ErrStaleStatus
	}

	db := g.db.WithContext(ctx)
	res := db.Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := g.GetRequest(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleStatus
	}
	return g.GetRequest(ctx, id)
}

// ApproveRequest runs the approval as one transaction: lock the request and
// its project, recount active members, flip PENDING to APPROVED and insert
// the membership. Any failure leaves the request PENDING.
//
// Every read is a locking read so that MySQL does not pin a snapshot before
// the project lock is held. SQLite ignores the locking clause and relies on
// its single writer connection.
func (g *GormGateway) ApproveRequest(ctx context.Context, id uint) (*models.JoinRequest, *models.Membership, error) {
	var (
		req        models.JoinRequest
		membership models.Membership
	)

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, id).Error; err != nil {
			return translate(err)
		}
		if !models.CanTransition(req.Status, models.RequestApproved) {
			return ErrStaleStatus
		}

		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, req.ProjectID).Error; err != nil {
			return translate(err)
		}

		active, err := lockActiveMembers(tx, project.ID)
		if err != nil {
			return err
		}
		if !project.HasCapacity(active) {
			return ErrTeamFull
		}

		ts := now()
		res := tx.Model(&models.JoinRequest{}).
			Where("id = ? AND status = ?", id, models.RequestPending).
			Updates(map[string]interface{}{"status": models.RequestApproved, "updated_at": ts})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}
		req.Status = models.RequestApproved
		req.UpdatedAt = ts

		membership = models.Membership{
			ProjectID: project.ID,
			UserID:    req.UserID,
			Status:    models.MembershipActive,
			CreatedAt: ts,
		}
		return translate(tx.Create(&membership).Error)
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, &membership, nil
}

func (g *GormGateway) ListRequests(ctx context.Context, filter RequestFilter) ([]models.JoinRequest, error) {
	query := g.db.WithContext(ctx).Model(&models.JoinRequest{})
	if len(filter.ProjectIDs) > 0 {
		query = query.Where("project_id IN ?", filter.ProjectIDs)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.WithUser {
		query = query.Preload("User")
	}
	if filter.WithProject {
		query = query.Preload("Project")
	}
	if filter.OldestFirst {
		query = query.Order("created_at ASC").Order("id ASC")
	} else {
		query = query.Order("created_at DESC").Order("id DESC")
	}

	var reqs []models.JoinRequest
	err := query.Find(&reqs).Error
	return reqs, err
}
