package models

import (
	"time"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestWithdrawn RequestStatus = "WITHDRAWN"
)

// RequestTransitions lists the allowed next states. Terminal states have none.
var RequestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:   {RequestApproved, RequestRejected, RequestWithdrawn},
	RequestApproved:  nil,
	RequestRejected:  nil,
	RequestWithdrawn: nil,
}

func CanTransition(from, to RequestStatus) bool {
	for _, next := range RequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	next, known := RequestTransitions[s]
	return known && len(next) == 0
}

func (s RequestStatus) Valid() bool {
	_, ok := RequestTransitions[s]
	return ok
}

// JoinRequest is a user's request to join a project. At most one PENDING row
// exists per (project, user); terminal rows are kept as history.
type JoinRequest struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	ProjectID uint          `gorm:"index:idx_request_project_user;not null" json:"project_id"`
	Project   *Project      `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    uint          `gorm:"index:idx_request_project_user;index;not null" json:"user_id"`
	User      *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Message   *string       `gorm:"size:400" json:"message"`
	Status    RequestStatus `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (JoinRequest) TableName() string { return "project_requests" }
