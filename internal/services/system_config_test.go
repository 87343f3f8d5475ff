package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/testinfra"
)

func TestSystemConfigService_GetSet(t *testing.T) {
	db := testinfra.NewTestDB(t)
	svc := NewSystemConfigService(db)

	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.Equal(t, "fallback", svc.GetWithDefault("missing", "fallback"))
	assert.Equal(t, 7, svc.GetInt("missing", 7))

	require.NoError(t, svc.Set("banner", "hello"))
	require.NoError(t, svc.Set("banner", "hello again"))

	v, err := svc.Get("banner")
	require.NoError(t, err)
	assert.Equal(t, "hello again", v)

	all, err := svc.GetByGroup("system")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSystemConfigService_UpdateValidatesInt(t *testing.T) {
	db := testinfra.NewTestDB(t)
	require.NoError(t, models.SeedDefaultData(db))
	svc := NewSystemConfigService(db)

	_, err := svc.Update(models.ConfigLogRetentionDays, &UpdateConfigRequest{Value: "soon"})
	assert.True(t, IsInvalidConfigValue(err))

	cfg, err := svc.Update(models.ConfigLogRetentionDays, &UpdateConfigRequest{Value: " 14 "})
	require.NoError(t, err)
	assert.Equal(t, "14", cfg.Value)
	assert.Equal(t, 14, NewSystemLogService(db).GetRetentionDays())

	_, err = svc.Update("unknown", &UpdateConfigRequest{Value: "x"})
	assert.ErrorIs(t, err, ErrConfigNotFound)
}
