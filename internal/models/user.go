package models

import (
	"time"
)

// User is a TaskMate profile. The ID comes from the identity provider's
// token, so rows are created on the first profile write rather than at signup.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Skills    []string  `gorm:"serializer:json;type:text" json:"skills"`
	GithubURL string    `gorm:"size:500" json:"github_url,omitempty"`
	City      string    `gorm:"size:100" json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName falls back to a generic label for users without a profile row.
func (u *User) DisplayName() string {
	if u == nil || u.Name == "" {
		return "Unknown user"
	}
	return u.Name
}
