package store

import (
	"context"

	"github.com/taskmate/backend/internal/models"
	"gorm.io/gorm/clause"
)

func (g *GormGateway) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := g.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (g *GormGateway) GetUsers(ctx context.Context, ids []uint) (map[uint]*models.User, error) {
	out := make(map[uint]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// UpsertUser inserts the profile or overwrites its mutable fields.
func (g *GormGateway) UpsertUser(ctx context.Context, user *models.User) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "skills", "github_url", "city", "updated_at"}),
	}).Create(user).Error
}
