package models

import (
	"time"
)

// Project is a team idea posted by its owner. The owner occupies one seat of
// TeamSize without holding a Membership.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"index;not null" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	City        string    `gorm:"size:100" json:"city,omitempty"`
	TeamSize    int       `gorm:"not null;default:1" json:"team_size"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// MemberCount includes the owner seat.
func MemberCount(activeMembers int64) int64 {
	return activeMembers + 1
}

// HasCapacity reports whether one more member fits.
func (p *Project) HasCapacity(activeMembers int64) bool {
	return MemberCount(activeMembers) < int64(p.TeamSize)
}
