package store

import (
	"context"

	"github.com/taskmate/backend/internal/models"
)

// AppendMessage stores a message whose ID and CreatedAt were assigned by
// the caller.
func (g *GormGateway) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	return translate(g.db.WithContext(ctx).Create(msg).Error)
}

// ListMessages returns the full log of a project in (created_at, id) order.
func (g *GormGateway) ListMessages(ctx context.Context, projectID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := g.db.WithContext(ctx).Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// LatestMessages returns the newest message per project. A nil or empty
// projectIDs means every project with at least one message.
func (g *GormGateway) LatestMessages(ctx context.Context, projectIDs []uint) (map[uint]models.Message, error) {
	db := g.db.WithContext(ctx)

	latest := db.Model(&models.Message{}).
		Select("project_id, MAX(created_at) AS max_created").
		Group("project_id")
	if len(projectIDs) > 0 {
		latest = latest.Where("project_id IN ?", projectIDs)
	}

	var msgs []models.Message
	err := db.Table("project_messages AS m").
		Select("m.*").
		Joins("JOIN (?) AS latest ON m.project_id = latest.project_id AND m.created_at = latest.max_created", latest).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// Several rows can share the max timestamp; the higher id wins.
	out := make(map[uint]models.Message, len(msgs))
	for i := range msgs {
		cur, ok := out[msgs[i].ProjectID]
		if !ok || msgs[i].After(&cur) {
			out[msgs[i].ProjectID] = msgs[i]
		}
	}
	return out, nil
}
