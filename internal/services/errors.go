package services

import (
	"github.com/taskmate/backend/pkg/response"
)

// Domain errors. Each failure has its own message so clients can tell them apart.
var (
	ErrProjectNotFound = response.NewNotFound("project not found")
	ErrRequestNotFound = response.NewNotFound("request not found")
	ErrUserNotFound    = response.NewNotFound("user not found")

	ErrOwnRequest      = response.NewForbidden("cannot request to join your own project")
	ErrNotProjectOwner = response.NewForbidden("only the project owner can perform this action")
	ErrNotRequester    = response.NewForbidden("only the requester can withdraw this request")
	ErrNotParticipant  = response.NewForbidden("only the project owner and members can access this chat")

	ErrAlreadyMember    = response.NewConflict("already a member of this project")
	ErrDuplicatePending = response.NewConflict("a pending request already exists")
	ErrTeamFull         = response.NewConflict("project team is full")
	ErrRequestProcessed = response.NewConflict("request already processed")
	ErrNotPending       = response.NewConflict("only pending requests can be withdrawn")
	ErrTeamSizeTooSmall = response.NewConflict("team size cannot be less than the current member count")

	ErrMessageTooLong  = response.NewBadRequest("message cannot exceed 100 characters")
	ErrInvalidAction   = response.NewBadRequest("invalid action")
	ErrContentRequired = response.NewBadRequest("content is required")
	ErrContentTooLong  = response.NewBadRequest("content is too long")
	ErrInvalidTeamSize = response.NewBadRequest("team size must be at least 1")
	ErrTitleRequired   = response.NewBadRequest("title is required")
)
