// Package store is the persistence gateway for users, projects, memberships,
// join requests and chat messages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/taskmate/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrTeamFull is returned by ApproveRequest when the locked recount
	// leaves no free seat.
	ErrTeamFull = errors.New("team is full")
	// ErrStaleStatus means a conditional status update matched no row.
	ErrStaleStatus = errors.New("status changed concurrently")
	// ErrTeamSizeTooSmall rejects shrinking a project below its member count.
	ErrTeamSizeTooSmall = errors.New("team size below current member count")
)

type ProjectFilter struct {
	OwnerID  uint
	City     string
	Page     int
	PageSize int
}

type RequestFilter struct {
	ProjectIDs  []uint
	UserID      uint
	Status      models.RequestStatus
	OldestFirst bool
	WithUser    bool
	WithProject bool
}

// ProjectUpdate carries optional field changes; nil fields are left alone.
type ProjectUpdate struct {
	Title       *string
	Description *string
	City        *string
	TeamSize    *int
}

// Gateway is the transactional persistence boundary used by the services.
type Gateway interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUsers(ctx context.Context, ids []uint) (map[uint]*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error

	GetProject(ctx context.Context, id uint) (*models.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, int64, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, id uint, update ProjectUpdate) (*models.Project, error)
	DeleteProject(ctx context.Context, id uint) error
	ProjectsForUser(ctx context.Context, userID uint) ([]models.Project, error)
	CountActiveMembers(ctx context.Context, projectID uint) (int64, error)
	CountActiveMembersBatch(ctx context.Context, projectIDs []uint) (map[uint]int64, error)
	IsActiveMember(ctx context.Context, projectID, userID uint) (bool, error)
	ListMembers(ctx context.Context, projectID uint) ([]models.Membership, error)

	GetRequest(ctx context.Context, id uint) (*models.JoinRequest, error)
	HasPendingRequest(ctx context.Context, projectID, userID uint) (bool, error)
	CreateRequest(ctx context.Context, req *models.JoinRequest) error
	TransitionRequest(ctx context.Context, id uint, from, to models.RequestStatus) (*models.JoinRequest, error)
	ApproveRequest(ctx context.Context, id uint) (*models.JoinRequest, *models.Membership, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.JoinRequest, error)

	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, projectID uint) ([]models.Message, error)
	LatestMessages(ctx context.Context, projectIDs []uint) (map[uint]models.Message, error)

	AcquireLock(ctx context.Context, name, key, owner string, ttl time.Duration) (bool, error)
}

// GormGateway implements Gateway on gorm.
type GormGateway struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) DB() *gorm.DB {
	return g.db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}
