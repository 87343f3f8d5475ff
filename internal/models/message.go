package models

import (
	"time"
)

// Message is one entry of a project's append-only chat log. The ID is
// assigned before persistence so the broadcast copy and the stored row match.
type Message struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ClientMessageID string    `gorm:"size:64" json:"client_message_id,omitempty"`
	ProjectID       uint      `gorm:"index:idx_message_project_created,priority:1;not null" json:"project_id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	User            *User     `gorm:"foreignKey:UserID" json:"-"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	CreatedAt       time.Time `gorm:"index:idx_message_project_created,priority:2;autoCreateTime:false" json:"created_at"`
}

func (Message) TableName() string { return "project_messages" }

// After reports whether m sorts after other in log order (created_at, id).
func (m *Message) After(other *Message) bool {
	if other == nil {
		return true
	}
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.After(other.CreatedAt)
	}
	return m.ID > other.ID
}
