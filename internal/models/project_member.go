package models

import (
	"time"
)

type MembershipStatus string

const MembershipActive MembershipStatus = "ACTIVE"

// Membership is created only by an approved join request and removed only
// when its project is deleted.
type Membership struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	ProjectID uint             `gorm:"uniqueIndex:idx_project_user;not null" json:"project_id"`
	UserID    uint             `gorm:"uniqueIndex:idx_project_user;index;not null" json:"user_id"`
	User      *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status    MembershipStatus `gorm:"size:20;not null;default:ACTIVE" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Membership) TableName() string { return "project_memberships" }
