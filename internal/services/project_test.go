package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmate/backend/internal/models"
)

func intPtr(n int) *int { return &n }

func TestProjectService_CreateAndGet(t *testing.T) {
	gw := newTestGateway(t)
	svc := NewProjectService(gw, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, &CreateProjectRequest{Title: "   ", TeamSize: 2})
	assert.ErrorIs(t, err, ErrTitleRequired)
	_, err = svc.Create(ctx, 1, &CreateProjectRequest{Title: "Robots", TeamSize: 0})
	assert.ErrorIs(t, err, ErrInvalidTeamSize)

	p, err := svc.Create(ctx, 1, &CreateProjectRequest{Title: "  Robots  ", City: "Oslo", TeamSize: 3})
	require.NoError(t, err)
	assert.Equal(t, "Robots", p.Title)

	view, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.MemberCount)
	assert.Empty(t, view.Members)

	_, err = svc.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectService_ListAndForUser(t *testing.T) {
	gw := newTestGateway(t)
	svc := NewProjectService(gw, nil)
	ctx := context.Background()

	owned := seedProject(t, gw, 1, 3)
	joined := seedProject(t, gw, 2, 3)
	seedProject(t, gw, 3, 3)

	req := &models.JoinRequest{ProjectID: joined.ID, UserID: 1}
	require.NoError(t, gw.CreateRequest(ctx, req))
	_, _, err := gw.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)

	list, err := svc.List(ctx, &ProjectListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 10, list.PageSize)

	mine, err := svc.ForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	roles := map[uint]string{}
	counts := map[uint]int64{}
	for _, v := range mine {
		roles[v.ID] = v.Role
		counts[v.ID] = v.MemberCount
	}
	assert.Equal(t, "owner", roles[owned.ID])
	assert.Equal(t, "member", roles[joined.ID])
	assert.Equal(t, int64(1), counts[owned.ID])
	assert.Equal(t, int64(2), counts[joined.ID])
}

func TestProjectService_Update(t *testing.T) {
	gw := newTestGateway(t)
	svc := NewProjectService(gw, nil)
	ctx := context.Background()
	p := seedProject(t, gw, 1, 3)

	for _, uid := range []uint{2, 3} {
		req := &models.JoinRequest{ProjectID: p.ID, UserID: uid}
		require.NoError(t, gw.CreateRequest(ctx, req))
		_, _, err := gw.ApproveRequest(ctx, req.ID)
		require.NoError(t, err)
	}

	_, err := svc.Update(ctx, p.ID, 2, &UpdateProjectRequest{Title: strPtr("Mine now")})
	assert.ErrorIs(t, err, ErrNotProjectOwner)

	_, err = svc.Update(ctx, p.ID, 1, &UpdateProjectRequest{TeamSize: intPtr(2)})
	assert.ErrorIs(t, err, ErrTeamSizeTooSmall)

	_, err = svc.Update(ctx, p.ID, 1, &UpdateProjectRequest{Title: strPtr(" ")})
	assert.ErrorIs(t, err, ErrTitleRequired)

	updated, err := svc.Update(ctx, p.ID, 1, &UpdateProjectRequest{Title: strPtr(" Renamed "), TeamSize: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 5, updated.TeamSize)

	_, err = svc.Update(ctx, 999, 1, &UpdateProjectRequest{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectService_DeleteForgetsPreview(t *testing.T) {
	gw := newTestGateway(t)
	projector := NewPreviewProjector(gw, time.Minute)
	svc := NewProjectService(gw, projector)
	ctx := context.Background()
	p := seedProject(t, gw, 1, 3)

	projector.Apply(&Preview{ProjectID: p.ID, MessageID: 1, CreatedAt: time.Now().UTC(), Content: "bye"})

	assert.ErrorIs(t, svc.Delete(ctx, p.ID, 2), ErrNotProjectOwner)
	require.NoError(t, svc.Delete(ctx, p.ID, 1))
	assert.Equal(t, 0, projector.Len())

	_, err := svc.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID, 1), ErrProjectNotFound)
}
